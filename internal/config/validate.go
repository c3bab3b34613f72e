package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *IngestorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Store.Host == "" {
		return errors.New("store.host is required")
	}
	if c.Store.Port < 1 || c.Store.Port > 65535 {
		return fmt.Errorf("store.port must be between 1 and 65535, got %d", c.Store.Port)
	}
	if c.Store.DB < 0 {
		return fmt.Errorf("store.db must be >= 0, got %d", c.Store.DB)
	}
	if c.Store.PoolSize < 1 {
		return errors.New("store.pool_size must be >= 1")
	}

	if _, err := c.Connection.Policy(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}

	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if c.Feed.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}

	return nil
}
