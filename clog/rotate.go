package clog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// dailyWriter 按 UTC 日期切换文件：<dir>/<prefix>.YYYY-MM-DD。
type dailyWriter struct {
	mu     sync.Mutex
	dir    string
	prefix string
	maxAge int
	now    func() time.Time

	day  string
	file *os.File
}

func newDailyWriter(dir, prefix string, maxAge int) (*dailyWriter, error) {
	return openDailyWriter(dir, prefix, maxAge, func() time.Time { return time.Now().UTC() })
}

func openDailyWriter(dir, prefix string, maxAge int, now func() time.Time) (*dailyWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w := &dailyWriter{
		dir:    dir,
		prefix: prefix,
		maxAge: maxAge,
		now:    now,
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotate(w.now()); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *dailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if now := w.now(); now.Format(dayLayout) != w.day {
		if err := w.rotate(now); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *dailyWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *dailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotate 调用方持有锁。
func (w *dailyWriter) rotate(now time.Time) error {
	day := now.Format(dayLayout)
	f, err := os.OpenFile(w.path(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if w.file != nil {
		_ = w.file.Close()
	}
	w.file, w.day = f, day

	if w.maxAge > 0 {
		w.prune(now)
	}
	return nil
}

func (w *dailyWriter) path(day string) string {
	return filepath.Join(w.dir, w.prefix+"."+day)
}

func (w *dailyWriter) prune(now time.Time) {
	cutoff := now.AddDate(0, 0, -w.maxAge).Format(dayLayout)
	matches, err := filepath.Glob(filepath.Join(w.dir, w.prefix+".*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		day := strings.TrimPrefix(filepath.Base(m), w.prefix+".")
		if _, err := time.Parse(dayLayout, day); err != nil {
			continue
		}
		if day < cutoff {
			_ = os.Remove(m)
		}
	}
}
