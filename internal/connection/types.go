package connection

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// Errors
var (
	ErrUnavailable       = errors.New("store connection unavailable")
	ErrInvalidHandle     = errors.New("invalid connection handle")
	ErrHealthCheckFailed = errors.New("connection health check failed")
	ErrShuttingDown      = errors.New("connection manager shutting down")
)

// State describes where the manager is in its connection lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateConnecting    State = "connecting"
	StateReady         State = "ready"
	StateDegraded      State = "degraded"
	StateClosed        State = "closed"
)

// Config configures the connection manager.
type Config struct {
	PingTimeout         time.Duration // Deadline for each health-check ping
	HealthCheckInterval time.Duration // Max age of a verification before a handle is re-pinged
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingTimeout:         5 * time.Second,
		HealthCheckInterval: 30 * time.Second,
	}
}

// IsShutdownErr reports whether err indicates the process is shutting
// down rather than a transient store failure. Shutdown errors are fatal
// to a connect attempt: retrying them only delays exit.
func IsShutdownErr(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, redis.ErrClosed)
}
