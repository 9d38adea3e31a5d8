package config

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Loader reads the YAML config file and keeps an atomically-swappable,
// always-valid snapshot available via Current. A reload that fails
// validation is logged and discarded; the previous snapshot keeps serving
// requests.
type Loader struct {
	v        *viper.Viper
	path     string
	logger   *zap.Logger
	current  atomic.Pointer[App]
	onChange func(*App)
}

// NewLoader reads path once, validates it, and returns a Loader whose
// Current snapshot is immediately usable. It does not start watching;
// call Watch separately.
func NewLoader(path string, logger *zap.Logger) (*Loader, error) {
	l := &Loader{v: viper.New(), path: path, logger: logger}
	l.setDefaults()
	l.v.SetConfigFile(path)
	l.v.SetConfigType("yaml")

	app, err := l.readAndValidate()
	if err != nil {
		return nil, err
	}
	l.current.Store(app)
	return l, nil
}

// Current returns the active, validated configuration snapshot. Safe for
// concurrent use.
func (l *Loader) Current() *App {
	return l.current.Load()
}

// OnChange registers a callback invoked after every successful reload
// with the newly-active snapshot: from the fsnotify goroutine for
// file-triggered reloads, from the caller's goroutine for direct Reload
// calls.
func (l *Loader) OnChange(fn func(*App)) {
	l.onChange = fn
}

// Reload re-reads the config file, validates it, and swaps it in on
// success. On validation or read failure it returns the error and leaves
// Current() unchanged.
func (l *Loader) Reload() (*App, error) {
	app, err := l.readAndValidate()
	if err != nil {
		return nil, err
	}
	l.current.Store(app)
	if l.onChange != nil {
		l.onChange(app)
	}
	return app, nil
}

// Watch starts watching the config file for changes via fsnotify (through
// viper) and calls Reload on every write, logging but not propagating
// validation failures so a bad edit never crashes the process.
func (l *Loader) Watch() {
	l.v.WatchConfig()
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.logger.Info("config file changed, reloading", zap.String("path", e.Name))
		if _, err := l.Reload(); err != nil {
			l.logger.Error("config reload rejected, keeping previous snapshot", zap.Error(err))
		} else {
			l.logger.Info("config reload applied")
		}
	})
}

func (l *Loader) readAndValidate() (*App, error) {
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", l.path, err)
	}

	var app App
	if err := l.v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if errs := app.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("config: validation failed: %w", errs)
	}

	return &app, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("server.host", "0.0.0.0")
	l.v.SetDefault("server.port", 8000)
	l.v.SetDefault("server.timeout", 180)
	l.v.SetDefault("features.enable_function_calling", true)
	l.v.SetDefault("features.log_level", "INFO")
	l.v.SetDefault("features.convert_developer_to_system", true)
	l.v.SetDefault("features.key_passthrough", false)
	l.v.SetDefault("features.model_passthrough", false)
	l.v.SetDefault("telemetry.enabled", false)
	l.v.SetDefault("telemetry.service_name", "toolify-go")
	l.v.SetDefault("id_map.max_size", 1000)
	l.v.SetDefault("id_map.ttl_seconds", 3600)
	l.v.SetDefault("id_map.cleanup_interval_seconds", 300)
}
