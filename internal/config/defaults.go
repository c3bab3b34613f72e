package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultStoreHost           = "localhost"
	DefaultStorePort           = 6379
	DefaultStoreDialTimeout    = 5 * time.Second
	DefaultStoreReadTimeout    = 3 * time.Second
	DefaultStoreWriteTimeout   = 3 * time.Second
	DefaultStorePoolSize       = 10
	DefaultPingTimeout         = 5 * time.Second
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultReconnectBaseDelay  = 1 * time.Second
	DefaultReconnectMaxDelay   = 60 * time.Second
	DefaultReconnectMult       = 2.0
	DefaultMaxAttempts         = 3
	DefaultFeedURL             = "wss://api.elections.kalshi.com/trade-api/ws/v2"
	DefaultFeedPingTimeout     = 60 * time.Second
	DefaultFeedWriteTimeout    = 5 * time.Second
	DefaultFeedBufferSize      = 10000
)

func (c *IngestorConfig) applyDefaults() {
	// Store defaults
	if c.Store.Host == "" {
		c.Store.Host = DefaultStoreHost
	}
	if c.Store.Port == 0 {
		c.Store.Port = DefaultStorePort
	}
	if c.Store.DialTimeout == 0 {
		c.Store.DialTimeout = DefaultStoreDialTimeout
	}
	if c.Store.ReadTimeout == 0 {
		c.Store.ReadTimeout = DefaultStoreReadTimeout
	}
	if c.Store.WriteTimeout == 0 {
		c.Store.WriteTimeout = DefaultStoreWriteTimeout
	}
	if c.Store.PoolSize == 0 {
		c.Store.PoolSize = DefaultStorePoolSize
	}

	// Connection defaults
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.HealthCheckInterval == 0 {
		c.Connection.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.ReconnectMultiplier == 0 {
		c.Connection.ReconnectMultiplier = DefaultReconnectMult
	}
	if c.Connection.MaxAttempts == 0 {
		c.Connection.MaxAttempts = DefaultMaxAttempts
	}

	// Feed defaults
	if c.Feed.URL == "" {
		c.Feed.URL = DefaultFeedURL
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultFeedPingTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultFeedWriteTimeout
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}
}
