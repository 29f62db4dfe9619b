// Package config loads layered YAML configuration for the engine and CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/halflife/core/datasheet"
	"github.com/adalundhe/halflife/core/query"
	"github.com/adalundhe/halflife/core/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HALFLIFE_"

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// =============================================================================
// Config
// =============================================================================

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Datasheet DatasheetConfig `yaml:"datasheet"`
	Query     query.Config    `yaml:"query"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type DatasheetConfig struct {
	// Dir is the datasheet directory. Empty means the per-user data
	// directory.
	Dir         string        `yaml:"dir"`
	Patterns    []string      `yaml:"patterns" validate:"min=1,dive,required"`
	Concurrency int           `yaml:"concurrency" validate:"gte=1,lte=256"`
	Tolerance   float64       `yaml:"tolerance" validate:"gte=0,lt=1"`
	Debounce    time.Duration `yaml:"debounce" validate:"gte=0"`
}

type MetricsConfig struct {
	// Addr is the listen address for the metrics endpoint. Empty disables it.
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

func DefaultConfig() *Config {
	loader := datasheet.DefaultLoaderConfig()
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Datasheet: DatasheetConfig{
			Patterns:    loader.Patterns,
			Concurrency: loader.Concurrency,
			Tolerance:   loader.Tolerance,
			Debounce:    datasheet.DefaultDebounce,
		},
		Query: query.DefaultConfig(),
	}
}

// LoaderConfig returns the datasheet loader settings.
func (c *Config) LoaderConfig(logger *slog.Logger) datasheet.LoaderConfig {
	return datasheet.LoaderConfig{
		Patterns:    append([]string(nil), c.Datasheet.Patterns...),
		Concurrency: c.Datasheet.Concurrency,
		Tolerance:   c.Datasheet.Tolerance,
		Logger:      logger,
	}
}

// DatasheetDir returns the configured directory, falling back to the
// per-user data directory.
func (c *Config) DatasheetDir(dirs *storage.Dirs) string {
	if c.Datasheet.Dir != "" || dirs == nil {
		return c.Datasheet.Dir
	}
	return dirs.DatasheetDir()
}

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Manager
// =============================================================================

type Manager struct {
	config      atomic.Pointer[Config]
	dirs        *storage.Dirs
	projectRoot string
	file        string
	validate    *validator.Validate
	watchers    []func(*Config)
	watcherMu   sync.RWMutex
}

type ManagerOption func(*Manager)

// WithProjectRoot sets the directory searched for .halflife/. Default ".".
func WithProjectRoot(root string) ManagerOption {
	return func(m *Manager) { m.projectRoot = root }
}

// WithFile adds an explicit config file, applied after the project and
// user files. Unlike those, it must exist.
func WithFile(path string) ManagerOption {
	return func(m *Manager) { m.file = path }
}

func NewManager(dirs *storage.Dirs, opts ...ManagerOption) *Manager {
	m := &Manager{
		dirs:        dirs,
		projectRoot: ".",
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.config.Store(DefaultConfig())
	return m
}

func (m *Manager) Get() *Config {
	return m.config.Load()
}

// Load rebuilds the config from defaults, the project file, the user
// file, the local file, the explicit file and the environment, in that
// order. The result is validated before it replaces the current config.
func (m *Manager) Load() error {
	cfg := DefaultConfig()
	project := storage.ResolveProjectDirs(m.projectRoot)

	if err := loadYAMLFile(project.Config, cfg, false); err != nil {
		return fmt.Errorf("project config: %w", err)
	}
	if m.dirs != nil {
		if err := loadYAMLFile(m.dirs.ConfigDir("config.yaml"), cfg, false); err != nil {
			return fmt.Errorf("user config: %w", err)
		}
	}
	if err := loadYAMLFile(project.Local, cfg, false); err != nil {
		return fmt.Errorf("local config: %w", err)
	}
	if m.file != "" {
		if err := loadYAMLFile(m.file, cfg, true); err != nil {
			return fmt.Errorf("config %s: %w", m.file, err)
		}
	}
	if err := applyEnvironment(cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return m.store(cfg)
}

// Apply merges the non-zero fields of overrides onto the current config.
func (m *Manager) Apply(overrides *Config) error {
	cfg := cloneConfig(m.Get())
	if err := DeepMerge(cfg, overrides); err != nil {
		return err
	}
	return m.store(cfg)
}

func (m *Manager) Validate(cfg *Config) error {
	if err := m.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (m *Manager) store(cfg *Config) error {
	if err := m.Validate(cfg); err != nil {
		return err
	}
	m.config.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

func cloneConfig(cfg *Config) *Config {
	out := *cfg
	out.Datasheet.Patterns = append([]string(nil), cfg.Datasheet.Patterns...)
	return &out
}

func loadYAMLFile(path string, cfg *Config, required bool) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !required {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

type envBinding struct {
	key   string
	apply func(cfg *Config, v string) error
}

var envBindings = []envBinding{
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = strings.ToLower(v); return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = strings.ToLower(v); return nil }},
	{"DATASHEET_DIR", func(c *Config, v string) error { c.Datasheet.Dir = v; return nil }},
	{"DATASHEET_PATTERNS", func(c *Config, v string) error {
		c.Datasheet.Patterns = splitList(v)
		return nil
	}},
	{"DATASHEET_CONCURRENCY", func(c *Config, v string) error { return parseInt(v, &c.Datasheet.Concurrency) }},
	{"DATASHEET_DEBOUNCE", func(c *Config, v string) error { return parseDuration(v, &c.Datasheet.Debounce) }},
	{"QUERY_EPSILON", func(c *Config, v string) error { return parseFloat(v, &c.Query.Epsilon) }},
	{"QUERY_PRECISION_SPAN", func(c *Config, v string) error { return parseFloat(v, &c.Query.PrecisionSpan) }},
	{"QUERY_PARENT_TOLERANCE", func(c *Config, v string) error { return parseFloat(v, &c.Query.ParentTolerance) }},
	{"QUERY_WORKERS", func(c *Config, v string) error { return parseInt(v, &c.Query.Workers) }},
	{"QUERY_QUEUE_SIZE", func(c *Config, v string) error { return parseInt(v, &c.Query.QueueSize) }},
	{"METRICS_ADDR", func(c *Config, v string) error { c.Metrics.Addr = v; return nil }},
}

func applyEnvironment(cfg *Config) error {
	var errs []error
	for _, b := range envBindings {
		v := os.Getenv(EnvPrefix + b.key)
		if v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, b.key, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(s string, dst *int) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseFloat(s string, dst *float64) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func parseDuration(s string, dst *time.Duration) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
