package query

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adalundhe/halflife/core/bateman"
	"github.com/adalundhe/halflife/core/chain"
)

const defaultChainCacheSize = 128

// Config tunes the engine. Zero values take the defaults.
type Config struct {
	// Epsilon is the relative tolerance for equal decay constants.
	Epsilon float64 `yaml:"epsilon" validate:"gte=0,lt=1"`

	// PrecisionSpan is the decay-constant ratio that triggers a
	// precision warning.
	PrecisionSpan float64 `yaml:"precision_span" validate:"gte=0"`

	// ParentTolerance is the absolute branching disagreement tolerated
	// between a parent's and a daughter's datasheets.
	ParentTolerance float64 `yaml:"parent_tolerance" validate:"gte=0,lte=1"`

	Workers        int         `yaml:"workers" validate:"gte=0,lte=1024"`
	QueueSize      int         `yaml:"queue_size" validate:"gte=0"`
	ChainCacheSize int         `yaml:"chain_cache_size" validate:"gte=0"`
	Cache          CacheConfig `yaml:"cache"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Epsilon:         bateman.DefaultEpsilon,
		PrecisionSpan:   bateman.DefaultPrecisionSpan,
		ParentTolerance: chain.DefaultParentTolerance,
		ChainCacheSize:  defaultChainCacheSize,
		Cache:           DefaultCacheConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Epsilon <= 0 {
		c.Epsilon = def.Epsilon
	}
	if c.PrecisionSpan <= 1 {
		c.PrecisionSpan = def.PrecisionSpan
	}
	if c.ParentTolerance <= 0 {
		c.ParentTolerance = def.ParentTolerance
	}
	if c.ChainCacheSize <= 0 {
		c.ChainCacheSize = def.ChainCacheSize
	}
	c.Cache = c.Cache.withDefaults()
	return c
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegisterer registers the engine metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *engineOptions) {
		o.registerer = reg
	}
}
