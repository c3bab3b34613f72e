package config

import (
	"time"

	"github.com/rickgao/kalshi-store/internal/feed"
	"github.com/rickgao/kalshi-store/internal/retry"
	"github.com/rickgao/kalshi-store/internal/store"
)

// IngestorConfig is the root configuration for an ingestor instance.
type IngestorConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Store      store.Config     `yaml:"store"`
	Connection ConnectionConfig `yaml:"connection"`
	Feed       FeedConfig       `yaml:"feed"`
}

// InstanceConfig identifies this ingestor.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// ConnectionConfig holds store connection manager settings.
type ConnectionConfig struct {
	PingTimeout         time.Duration `yaml:"ping_timeout"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	ReconnectBaseDelay  time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay   time.Duration `yaml:"reconnect_max_delay"`
	ReconnectMultiplier float64       `yaml:"reconnect_multiplier"`
	MaxAttempts         int           `yaml:"max_attempts"`
}

// Policy builds the retry policy for the configured reconnect settings.
func (c ConnectionConfig) Policy() (retry.Policy, error) {
	return retry.NewPolicy(c.ReconnectBaseDelay, c.ReconnectMaxDelay, c.ReconnectMultiplier, c.MaxAttempts)
}

// FeedConfig holds market-data feed settings.
type FeedConfig struct {
	URL          string        `yaml:"url"`
	APIKey       string        `yaml:"api_key"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BufferSize   int           `yaml:"buffer_size"`
}

// Client builds the feed client configuration.
func (c FeedConfig) Client() feed.ClientConfig {
	return feed.ClientConfig{
		URL:          c.URL,
		APIKey:       c.APIKey,
		PingTimeout:  c.PingTimeout,
		WriteTimeout: c.WriteTimeout,
		BufferSize:   c.BufferSize,
	}
}
