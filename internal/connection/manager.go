package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/kalshi-store/internal/retry"
	"github.com/rickgao/kalshi-store/internal/store"
)

// Manager owns the store connection lifecycle: lazy establishment,
// health-checked retries with exponential backoff, and idempotent
// shutdown.
type Manager interface {
	// EnsureConnection returns a healthy connection, establishing one
	// if none exists. The bool reports whether a connection is
	// available; when false, the manager is degraded and callers
	// should treat the store as offline.
	EnsureConnection(ctx context.Context) (store.Conn, bool)

	// Handle returns the current connection without connecting.
	// Returns ErrUnavailable if no healthy connection exists.
	Handle() (store.Conn, error)

	// AttachExternal adopts an externally created connection after
	// verifying it responds to a ping. The previous connection, if
	// any, is closed.
	AttachExternal(ctx context.Context, conn store.Conn) error

	// State returns the current lifecycle state.
	State() State

	// Close releases the current connection. It never fails and may
	// be called any number of times.
	Close()
}

// manager implements the Manager interface.
type manager struct {
	cfg    Config
	dial   store.Dialer
	policy retry.Policy
	logger *slog.Logger

	group singleflight.Group
	sleep func(ctx context.Context, d time.Duration) bool
	now   func() time.Time

	mu             sync.RWMutex
	conn           store.Conn
	state          State
	lastVerifiedAt time.Time
}

// NewManager creates a connection manager around the given dialer.
func NewManager(cfg Config, dial store.Dialer, policy retry.Policy, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = DefaultConfig().PingTimeout
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = DefaultConfig().HealthCheckInterval
	}

	return &manager{
		cfg:    cfg,
		dial:   dial,
		policy: policy,
		logger: logger,
		sleep:  sleepCtx,
		now:    time.Now,
		state:  StateUninitialized,
	}
}

// sleepCtx waits for d or until ctx is done. Returns false when the
// context fired first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// EnsureConnection returns a healthy connection, connecting if needed.
// A Ready handle is reused without a round-trip only while its last
// verification is fresh; a stale handle is re-pinged first. Concurrent
// callers share a single in-flight connect attempt.
func (m *manager) EnsureConnection(ctx context.Context) (store.Conn, bool) {
	m.mu.RLock()
	state, conn, verifiedAt := m.state, m.conn, m.lastVerifiedAt
	m.mu.RUnlock()

	if state == StateClosed {
		return nil, false
	}
	if conn != nil && state == StateReady {
		if m.now().Sub(verifiedAt) < m.cfg.HealthCheckInterval {
			return conn, true
		}
		if m.verify(ctx, conn) {
			return conn, true
		}
		// Stale handle failed its ping; fall through and reconnect.
	}

	v, err, _ := m.group.Do("connect", func() (interface{}, error) {
		// Another caller may have finished while we queued.
		m.mu.RLock()
		if m.conn != nil && m.state == StateReady {
			conn := m.conn
			m.mu.RUnlock()
			return conn, nil
		}
		if m.state == StateClosed {
			m.mu.RUnlock()
			return nil, ErrShuttingDown
		}
		m.mu.RUnlock()

		return m.connectWithRetry(ctx)
	})
	if err != nil {
		return nil, false
	}
	return v.(store.Conn), true
}

// connectWithRetry dials and health-checks candidates under the retry
// policy. Fatal errors abort immediately; transient errors back off
// between attempts, with no sleep after the final one.
func (m *manager) connectWithRetry(ctx context.Context) (store.Conn, error) {
	m.setState(StateConnecting)

	var lastErr error
	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		conn, err := m.tryConnect(ctx)
		if err == nil {
			m.adopt(conn)
			m.logger.Info("store connection established", "attempt", attempt)
			return conn, nil
		}
		lastErr = err

		if IsShutdownErr(err) {
			m.logger.Info("connect aborted, shutting down", "error", err)
			m.setState(StateDegraded)
			return nil, fmt.Errorf("%w: %w", ErrShuttingDown, err)
		}

		m.logger.Warn("store connection attempt failed",
			"attempt", attempt,
			"max_attempts", m.policy.MaxAttempts,
			"error", err,
		)

		if attempt < m.policy.MaxAttempts {
			delay := m.policy.NextDelay(attempt)
			m.logger.Debug("retrying store connection", "delay", delay)
			if !m.sleep(ctx, delay) {
				m.setState(StateDegraded)
				return nil, fmt.Errorf("%w: %w", ErrShuttingDown, ctx.Err())
			}
		}
	}

	m.setState(StateDegraded)
	m.logger.Error("store connection attempts exhausted",
		"attempts", m.policy.MaxAttempts,
		"error", lastErr,
	)
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
}

// tryConnect dials one candidate and pings it under the configured
// deadline. The candidate is closed on any failure.
func (m *manager) tryConnect(ctx context.Context) (store.Conn, error) {
	conn, err := m.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
	err = conn.Ping(pingCtx)
	cancel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrHealthCheckFailed, err)
	}
	return conn, nil
}

// verify re-pings a handle whose last verification has gone stale.
// A failed ping degrades the manager and releases the dead handle so
// the next connect attempt starts clean.
func (m *manager) verify(ctx context.Context, conn store.Conn) bool {
	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
	err := conn.Ping(pingCtx)
	cancel()

	if err == nil {
		m.mu.Lock()
		if m.conn == conn {
			m.lastVerifiedAt = m.now()
		}
		m.mu.Unlock()
		return true
	}

	m.logger.Warn("stale connection failed health check", "error", err)
	m.mu.Lock()
	owned := m.conn == conn && m.state == StateReady
	if owned {
		m.conn = nil
		m.state = StateDegraded
	}
	m.mu.Unlock()
	if owned {
		conn.Close()
	}
	return false
}

// adopt installs conn as the live connection, closing any predecessor.
func (m *manager) adopt(conn store.Conn) {
	m.mu.Lock()
	old := m.conn
	m.conn = conn
	m.state = StateReady
	m.lastVerifiedAt = m.now()
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

func (m *manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Handle returns the live connection without dialing.
func (m *manager) Handle() (store.Conn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil || m.state != StateReady {
		return nil, ErrUnavailable
	}
	return m.conn, nil
}

// AttachExternal adopts an externally created connection after pinging
// it. A closed manager is terminal and refuses adoption.
func (m *manager) AttachExternal(ctx context.Context, conn store.Conn) error {
	if conn == nil {
		return ErrInvalidHandle
	}
	m.mu.RLock()
	closed := m.state == StateClosed
	m.mu.RUnlock()
	if closed {
		return ErrShuttingDown
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
	err := conn.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHealthCheckFailed, err)
	}

	m.adopt(conn)
	m.logger.Info("adopted external store connection")
	return nil
}

// State returns the current lifecycle state.
func (m *manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Close releases the connection. Close errors are logged, never returned.
func (m *manager) Close() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	alreadyClosed := m.state == StateClosed
	m.state = StateClosed
	m.mu.Unlock()

	if alreadyClosed {
		return
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Warn("error closing store connection", "error", err)
		}
	}
	m.logger.Info("connection manager closed")
}
