package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/xerrors"
)

type loader struct {
	v      *viper.Viper
	cfg    *Config
	logger clog.Logger

	mu      sync.Mutex
	watched map[string]*watchedKey
}

// watchedKey 某个 key 的订阅者及其最近一次取值
type watchedKey struct {
	last any
	subs []chan Event
}

func newLoader(cfg *Config) *loader {
	return &loader{
		v:       viper.New(),
		cfg:     cfg,
		logger:  cfg.Logger.With(clog.String("component", "config")),
		watched: make(map[string]*watchedKey),
	}
}

func (l *loader) Load(_ context.Context) error {
	for k, val := range l.cfg.Defaults {
		l.v.SetDefault(k, val)
	}

	// 环境变量最先设置，确保 AutomaticEnv 覆盖所有 key
	l.v.SetEnvPrefix(l.cfg.EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	l.loadDotEnv()

	if l.cfg.File != "" {
		if _, err := os.Stat(l.cfg.File); err != nil {
			return xerrors.Wrapf(ErrFileNotFound, "%s", l.cfg.File)
		}
		l.v.SetConfigFile(l.cfg.File)
	} else {
		l.v.SetConfigName(l.cfg.Name)
		l.v.SetConfigType(l.cfg.FileType)
		for _, p := range l.cfg.Paths {
			l.v.AddConfigPath(p)
		}
	}

	fileFound := true
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return xerrors.Wrapf(err, "read config %s", l.cfg.Name)
		}
		fileFound = false
		l.logger.Warn("no configuration file found, using env and defaults", clog.Any("paths", l.cfg.Paths))
	}

	if fileFound {
		if err := l.mergeEnvironmentConfig(); err != nil {
			return err
		}
	}

	if err := l.Validate(); err != nil {
		return err
	}

	if fileFound {
		l.v.OnConfigChange(func(e fsnotify.Event) {
			if err := l.mergeEnvironmentConfig(); err != nil {
				l.logger.Error("reload environment config failed", clog.Error(err))
			}
			l.notifyWatches()
		})
		l.v.WatchConfig()
	}
	return nil
}

// loadDotEnv 依次尝试工作目录与搜索路径下的 .env，已存在的环境变量不会被覆盖。
func (l *loader) loadDotEnv() {
	candidates := []string{".env"}
	for _, p := range l.cfg.Paths {
		candidates = append(candidates, filepath.Join(p, ".env"))
	}
	if l.cfg.File != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(l.cfg.File), ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			l.logger.Warn("load .env failed", clog.String("path", path), clog.Error(err))
		}
	}
}

// mergeEnvironmentConfig 合并 <name>.<env>.<ext>，env 取自 <PREFIX>_ENV。
func (l *loader) mergeEnvironmentConfig() error {
	env := os.Getenv(l.cfg.EnvPrefix + "_ENV")
	if env == "" {
		return nil
	}

	base := l.v.ConfigFileUsed()
	ext := filepath.Ext(base)
	envFile := strings.TrimSuffix(base, ext) + "." + env + ext
	data, err := os.ReadFile(envFile)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Debug("no environment config", clog.String("env", env))
		return nil
	}
	if err != nil {
		return xerrors.Wrapf(err, "read environment config %s", envFile)
	}

	// MergeConfig 需要显式类型，避免改写 ConfigFileUsed
	l.v.SetConfigType(strings.TrimPrefix(ext, "."))
	if err := l.v.MergeConfig(strings.NewReader(string(data))); err != nil {
		return xerrors.Wrapf(err, "merge environment config %s", envFile)
	}
	l.logger.Info("environment config merged", clog.String("env", env), clog.String("file", envFile))
	return nil
}

func (l *loader) Get(key string) any { return l.v.Get(key) }

func (l *loader) Unmarshal(v any) error { return l.v.Unmarshal(v) }

func (l *loader) UnmarshalKey(key string, v any) error { return l.v.UnmarshalKey(key, v) }

func (l *loader) Watch(ctx context.Context, key string) (<-chan Event, error) {
	if key == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "config: empty watch key")
	}

	ch := make(chan Event, 10)
	l.mu.Lock()
	w, ok := l.watched[key]
	if !ok {
		w = &watchedKey{last: l.v.Get(key)}
		l.watched[key] = w
	}
	w.subs = append(w.subs, ch)
	l.mu.Unlock()

	context.AfterFunc(ctx, func() { l.unwatch(key, ch) })
	return ch, nil
}

func (l *loader) unwatch(key string, ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.watched[key]
	if !ok {
		return
	}
	if i := slices.Index(w.subs, ch); i >= 0 {
		w.subs = slices.Delete(w.subs, i, i+1)
		close(ch)
	}
	if len(w.subs) == 0 {
		delete(l.watched, key)
	}
}

func (l *loader) Validate() error {
	if len(l.v.AllKeys()) == 0 {
		return xerrors.Wrap(ErrValidationFailed, "configuration is empty")
	}
	return nil
}

// notifyWatches 在文件变更后对比每个被订阅 key 的新旧值，有变化才投递；订阅者阻塞时丢弃事件
func (l *loader) notifyWatches() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.watched {
		current := l.v.Get(key)
		if reflect.DeepEqual(w.last, current) {
			continue
		}
		ev := Event{Key: key, Value: current, OldValue: w.last, Source: "file", Timestamp: now}
		w.last = current
		for _, ch := range w.subs {
			select {
			case ch <- ev:
			default:
				l.logger.Warn("watch channel full, event dropped", clog.String("key", key))
			}
		}
	}
}
