package connection

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/kalshi-store/internal/retry"
	"github.com/rickgao/kalshi-store/internal/store"
	"github.com/rickgao/kalshi-store/internal/store/storetest"
)

func testPolicy(attempts int) retry.Policy {
	return retry.Policy{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  attempts,
	}
}

// newTestManager wires a manager to a dialer and records sleeps instead
// of performing them.
func newTestManager(dial store.Dialer, attempts int) (*manager, *[]time.Duration) {
	m := NewManager(DefaultConfig(), dial, testPolicy(attempts), nil).(*manager)
	var sleeps []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) bool {
		sleeps = append(sleeps, d)
		return true
	}
	return m, &sleeps
}

func TestEnsureConnection_Success(t *testing.T) {
	fake := storetest.New()
	dial := func(ctx context.Context) (store.Conn, error) { return fake, nil }
	m, sleeps := newTestManager(dial, 3)

	conn, ok := m.EnsureConnection(context.Background())
	if !ok {
		t.Fatal("EnsureConnection returned ok=false")
	}
	if conn != fake {
		t.Error("returned connection is not the dialed one")
	}
	if got := m.State(); got != StateReady {
		t.Errorf("State() = %v, want %v", got, StateReady)
	}
	if fake.Pings != 1 {
		t.Errorf("Pings = %d, want 1", fake.Pings)
	}
	if len(*sleeps) != 0 {
		t.Errorf("slept %d times on first-attempt success", len(*sleeps))
	}
}

func TestEnsureConnection_ReusesExisting(t *testing.T) {
	dials := 0
	fake := storetest.New()
	dial := func(ctx context.Context) (store.Conn, error) {
		dials++
		return fake, nil
	}
	m, _ := newTestManager(dial, 3)

	m.EnsureConnection(context.Background())
	m.EnsureConnection(context.Background())
	m.EnsureConnection(context.Background())

	if dials != 1 {
		t.Errorf("dialed %d times, want 1", dials)
	}
}

func TestEnsureConnection_TransientRetriesThenSucceeds(t *testing.T) {
	attempt := 0
	good := storetest.New()
	dial := func(ctx context.Context) (store.Conn, error) {
		attempt++
		if attempt < 3 {
			bad := storetest.New()
			bad.PingErr = errors.New("connection refused")
			return bad, nil
		}
		return good, nil
	}
	m, sleeps := newTestManager(dial, 3)

	conn, ok := m.EnsureConnection(context.Background())
	if !ok {
		t.Fatal("EnsureConnection returned ok=false")
	}
	if conn != good {
		t.Error("did not return the healthy connection")
	}
	if len(*sleeps) != 2 {
		t.Errorf("slept %d times, want 2", len(*sleeps))
	}
	if (*sleeps)[0] != 10*time.Millisecond || (*sleeps)[1] != 20*time.Millisecond {
		t.Errorf("backoff delays = %v, want [10ms 20ms]", *sleeps)
	}
}

func TestEnsureConnection_ClosesFailedCandidates(t *testing.T) {
	bad := storetest.New()
	bad.PingErr = errors.New("timeout")
	good := storetest.New()

	attempt := 0
	dial := func(ctx context.Context) (store.Conn, error) {
		attempt++
		if attempt == 1 {
			return bad, nil
		}
		return good, nil
	}
	m, _ := newTestManager(dial, 3)

	if _, ok := m.EnsureConnection(context.Background()); !ok {
		t.Fatal("EnsureConnection returned ok=false")
	}
	if !bad.Closed() {
		t.Error("failed candidate was not closed")
	}
	if good.Closed() {
		t.Error("adopted connection was closed")
	}
}

func TestEnsureConnection_ExhaustionDegrades(t *testing.T) {
	pings := 0
	dial := func(ctx context.Context) (store.Conn, error) {
		bad := storetest.New()
		bad.PingErr = errors.New("connection refused")
		pings++
		return bad, nil
	}
	m, sleeps := newTestManager(dial, 3)

	conn, ok := m.EnsureConnection(context.Background())
	if ok || conn != nil {
		t.Fatalf("EnsureConnection = (%v, %v), want (nil, false)", conn, ok)
	}
	if pings != 3 {
		t.Errorf("dialed %d candidates, want 3", pings)
	}
	// No sleep after the final attempt.
	if len(*sleeps) != 2 {
		t.Errorf("slept %d times, want 2", len(*sleeps))
	}
	if got := m.State(); got != StateDegraded {
		t.Errorf("State() = %v, want %v", got, StateDegraded)
	}
}

func TestEnsureConnection_FatalAbortsImmediately(t *testing.T) {
	dials := 0
	dial := func(ctx context.Context) (store.Conn, error) {
		dials++
		bad := storetest.New()
		bad.PingErr = net.ErrClosed
		return bad, nil
	}
	m, sleeps := newTestManager(dial, 3)

	if _, ok := m.EnsureConnection(context.Background()); ok {
		t.Fatal("EnsureConnection succeeded on a fatal error")
	}
	if dials != 1 {
		t.Errorf("dialed %d times after fatal error, want 1", dials)
	}
	if len(*sleeps) != 0 {
		t.Errorf("slept %d times after fatal error, want 0", len(*sleeps))
	}
}

func TestEnsureConnection_ConcurrentCallersShareOneDial(t *testing.T) {
	var dialMu sync.Mutex
	dials := 0
	dial := func(ctx context.Context) (store.Conn, error) {
		dialMu.Lock()
		dials++
		dialMu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return storetest.New(), nil
	}
	m, _ := newTestManager(dial, 3)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.EnsureConnection(context.Background()); !ok {
				t.Error("EnsureConnection returned ok=false")
			}
		}()
	}
	wg.Wait()

	if dials != 1 {
		t.Errorf("dialed %d times under concurrent callers, want 1", dials)
	}
}

func TestHandle(t *testing.T) {
	fake := storetest.New()
	dial := func(ctx context.Context) (store.Conn, error) { return fake, nil }
	m, _ := newTestManager(dial, 3)

	if _, err := m.Handle(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Handle() before connect: err = %v, want ErrUnavailable", err)
	}

	m.EnsureConnection(context.Background())

	conn, err := m.Handle()
	if err != nil {
		t.Fatalf("Handle() after connect: %v", err)
	}
	if conn != fake {
		t.Error("Handle() returned a different connection")
	}

	m.Close()
	if _, err := m.Handle(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Handle() after Close: err = %v, want ErrUnavailable", err)
	}
}

func TestAttachExternal(t *testing.T) {
	m, _ := newTestManager(nil, 3)

	if err := m.AttachExternal(context.Background(), nil); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("AttachExternal(nil): err = %v, want ErrInvalidHandle", err)
	}

	bad := storetest.New()
	bad.PingErr = errors.New("refused")
	if err := m.AttachExternal(context.Background(), bad); !errors.Is(err, ErrHealthCheckFailed) {
		t.Errorf("AttachExternal(unhealthy): err = %v, want ErrHealthCheckFailed", err)
	}
	if _, err := m.Handle(); !errors.Is(err, ErrUnavailable) {
		t.Error("unhealthy external connection was adopted")
	}

	good := storetest.New()
	if err := m.AttachExternal(context.Background(), good); err != nil {
		t.Fatalf("AttachExternal(healthy): %v", err)
	}
	conn, err := m.Handle()
	if err != nil || conn != good {
		t.Errorf("Handle() = (%v, %v), want adopted external connection", conn, err)
	}
}

func TestAttachExternal_ReplacesAndClosesPrevious(t *testing.T) {
	first := storetest.New()
	dial := func(ctx context.Context) (store.Conn, error) { return first, nil }
	m, _ := newTestManager(dial, 3)
	m.EnsureConnection(context.Background())

	second := storetest.New()
	if err := m.AttachExternal(context.Background(), second); err != nil {
		t.Fatalf("AttachExternal: %v", err)
	}
	if !first.Closed() {
		t.Error("previous connection was not closed on replacement")
	}
	conn, _ := m.Handle()
	if conn != second {
		t.Error("Handle() did not return the replacement connection")
	}
}

func TestClose_Idempotent(t *testing.T) {
	fake := storetest.New()
	dial := func(ctx context.Context) (store.Conn, error) { return fake, nil }
	m, _ := newTestManager(dial, 3)
	m.EnsureConnection(context.Background())

	m.Close()
	m.Close()
	m.Close()

	if fake.Closes != 1 {
		t.Errorf("underlying Close called %d times, want 1", fake.Closes)
	}
	if got := m.State(); got != StateClosed {
		t.Errorf("State() = %v, want %v", got, StateClosed)
	}

	// A closed manager never reconnects.
	if _, ok := m.EnsureConnection(context.Background()); ok {
		t.Error("EnsureConnection succeeded after Close")
	}
}

func TestIsShutdownErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"context canceled", context.Canceled, true},
		{"wrapped cancel", context.Cause(canceledCtx()), true},
		{"net closed", net.ErrClosed, true},
		{"plain failure", errors.New("connection refused"), false},
		{"deadline", context.DeadlineExceeded, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsShutdownErr(tt.err); got != tt.want {
				t.Errorf("IsShutdownErr(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func canceledCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestEnsureConnection_StaleHandleReverified(t *testing.T) {
	fake := storetest.New()
	dial := func(ctx context.Context) (store.Conn, error) { return fake, nil }
	m, _ := newTestManager(dial, 3)

	now := time.Now()
	m.now = func() time.Time { return now }

	m.EnsureConnection(context.Background())
	if fake.Pings != 1 {
		t.Fatalf("Pings = %d after connect, want 1", fake.Pings)
	}

	// A freshly verified handle is reused without a round trip.
	m.EnsureConnection(context.Background())
	if fake.Pings != 1 {
		t.Errorf("Pings = %d, fresh handle was re-pinged", fake.Pings)
	}

	// Past the interval the handle is pinged again before reuse.
	now = now.Add(DefaultConfig().HealthCheckInterval + time.Second)
	conn, ok := m.EnsureConnection(context.Background())
	if !ok || conn != fake {
		t.Fatalf("EnsureConnection = (%v, %v), want reused handle", conn, ok)
	}
	if fake.Pings != 2 {
		t.Errorf("Pings = %d, want 2 after staleness", fake.Pings)
	}

	// The re-ping refreshed the verification.
	m.EnsureConnection(context.Background())
	if fake.Pings != 2 {
		t.Errorf("Pings = %d, re-verified handle was pinged again", fake.Pings)
	}
}

func TestEnsureConnection_DeadStaleHandleReconnects(t *testing.T) {
	first := storetest.New()
	second := storetest.New()
	dials := 0
	dial := func(ctx context.Context) (store.Conn, error) {
		dials++
		if dials == 1 {
			return first, nil
		}
		return second, nil
	}
	m, _ := newTestManager(dial, 3)

	now := time.Now()
	m.now = func() time.Time { return now }

	m.EnsureConnection(context.Background())

	// The connection dies while it sits idle past the interval.
	first.PingErr = errors.New("broken pipe")
	now = now.Add(time.Minute)

	conn, ok := m.EnsureConnection(context.Background())
	if !ok {
		t.Fatal("EnsureConnection returned ok=false")
	}
	if conn != second {
		t.Error("dead handle was served instead of a replacement")
	}
	if !first.Closed() {
		t.Error("dead handle was not released")
	}
	if dials != 2 {
		t.Errorf("dialed %d times, want 2", dials)
	}
	if got := m.State(); got != StateReady {
		t.Errorf("State() = %v, want %v", got, StateReady)
	}
}

func TestAttachExternal_ClosedManagerIsTerminal(t *testing.T) {
	m, _ := newTestManager(nil, 3)
	m.Close()

	fake := storetest.New()
	if err := m.AttachExternal(context.Background(), fake); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("AttachExternal after Close: err = %v, want ErrShuttingDown", err)
	}
	if got := m.State(); got != StateClosed {
		t.Errorf("State() = %v, want %v", got, StateClosed)
	}
	if _, err := m.Handle(); !errors.Is(err, ErrUnavailable) {
		t.Error("closed manager handed out a connection")
	}
	if fake.Pings != 0 {
		t.Errorf("Pings = %d, closed manager pinged the offered connection", fake.Pings)
	}
}
