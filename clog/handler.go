package clog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// clogHandler 包装 slog.Handler，持有可调整的级别和可落盘的输出。
type clogHandler struct {
	slog.Handler
	levelVar *slog.LevelVar
	syncer   interface{ Sync() error }
}

func (h *clogHandler) flush() {
	if h.syncer != nil {
		_ = h.syncer.Sync()
	}
}

// 构造顺序：writer -> handler options -> json/text/color handler -> clogHandler
func newHandler(config *Config, opts *options) (*clogHandler, error) {
	w, err := resolveWriter(config, opts)
	if err != nil {
		return nil, err
	}

	lvl, _ := ParseLevel(config.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(lvl.slogLevel())

	hopts := &slog.HandlerOptions{
		AddSource:   config.AddSource,
		Level:       levelVar,
		ReplaceAttr: replaceAttr(config.SourceRoot),
	}

	var base slog.Handler
	switch {
	case strings.EqualFold(config.Format, "json"):
		base = slog.NewJSONHandler(w, hopts)
	case config.EnableColor:
		base = &colorHandler{w: w, opts: hopts, sourceRoot: config.SourceRoot, mu: &sync.Mutex{}}
	default:
		base = slog.NewTextHandler(w, hopts)
	}

	h := &clogHandler{Handler: base, levelVar: levelVar}
	if s, ok := w.(interface{ Sync() error }); ok {
		h.syncer = s
	}
	return h, nil
}

func resolveWriter(config *Config, opts *options) (io.Writer, error) {
	switch strings.ToLower(config.Output) {
	case OutputStdout:
		return os.Stdout, nil
	case OutputStderr:
		return os.Stderr, nil
	case OutputRotate:
		return newDailyWriter(config.Dir, config.Prefix, config.MaxAge)
	case outputBuffer:
		if opts.buffer == nil {
			return nil, fmt.Errorf("buffer output requires a buffer option")
		}
		return opts.buffer, nil
	default:
		if dir := filepath.Dir(config.Output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
}

func replaceAttr(sourceRoot string) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			if l, ok := a.Value.Any().(slog.Level); ok {
				a.Value = slog.StringValue(levelName(l))
			}
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
			}
		case slog.SourceKey:
			if src, ok := a.Value.Any().(*slog.Source); ok {
				return slog.String("caller", fmt.Sprintf("%s:%d", trimSourcePath(src.File, sourceRoot), src.Line))
			}
		}
		return a
	}
}

// trimSourcePath 优先相对 sourceRoot，否则保留最后两级路径。
func trimSourcePath(file, sourceRoot string) string {
	if sourceRoot != "" {
		if rel, err := filepath.Rel(sourceRoot, file); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	dir, name := filepath.Split(file)
	return filepath.Join(filepath.Base(dir), name)
}

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiPurple = "\033[35m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
	ansiBgRed  = "\033[41m"
)

// colorHandler 面向终端的彩色文本输出：
//
//	15:04:05.000 INFO  | idgen/snowflake.go:88 > generator created  worker_id=1
type colorHandler struct {
	w          io.Writer
	opts       *slog.HandlerOptions
	sourceRoot string
	attrs      []slog.Attr
	groups     []string
	mu         *sync.Mutex
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var b bytes.Buffer
	b.WriteString(ansiGray + r.Time.Format("15:04:05.000") + ansiReset + " ")
	fmt.Fprintf(&b, "%s%s%-5s%s %s|%s ", ansiBold, levelColor(r.Level), levelName(r.Level), ansiReset, ansiGray, ansiReset)

	if h.opts.AddSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		fmt.Fprintf(&b, "%s%s:%d%s %s>%s ", ansiGray, trimSourcePath(frame.File, h.sourceRoot), frame.Line, ansiReset, ansiCyan, ansiReset)
	}
	b.WriteString(r.Message)

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		appendColorAttr(&b, prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendColorAttr(&b, prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(b.Bytes())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string(nil), h.groups...), name)
	return &c
}

func appendColorAttr(b *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			appendColorAttr(b, key, ga)
		}
		return
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\"=") {
		val = strconv.Quote(val)
	}
	fmt.Fprintf(b, " %s%s%s=%s", ansiCyan, key, ansiReset, val)
}

func levelColor(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug:
		return ansiPurple
	case l <= slog.LevelInfo:
		return ansiGreen
	case l <= slog.LevelWarn:
		return ansiYellow
	case l <= slog.LevelError:
		return ansiRed
	default:
		return ansiBgRed
	}
}
