package store

import "context"

// Conn is a live connection to the remote hash-oriented key-value store.
// It exposes the primitives the market store is built on: per-key hash
// maps, scan-by-pattern, and atomic multi-key pipelines.
//
// Implementations must be safe for concurrent use.
type Conn interface {
	// Ping verifies the connection is alive within the context deadline.
	Ping(ctx context.Context) error

	// HGetAll returns all fields of the hash at key. A missing key
	// yields an empty map, not an error.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HMGet returns the requested fields of the hash at key, in order.
	// Missing fields are returned as empty strings.
	HMGet(ctx context.Context, key string, fields ...string) ([]string, error)

	// HSet writes the given fields into the hash at key as one command.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HDel removes fields from the hash at key. Missing fields are ignored.
	HDel(ctx context.Context, key string, fields ...string) error

	// Scan returns all keys matching the glob-style pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)

	// Pipelined executes the operations queued by fn as a single
	// round-trip batch.
	Pipelined(ctx context.Context, fn func(Pipe)) error

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Pipe queues hash operations inside a Pipelined batch.
type Pipe interface {
	HSet(key string, fields map[string]string)
	HDel(key string, fields ...string)
}

// Dialer produces a new candidate store connection. It must not ping;
// health checking is the connection manager's job.
type Dialer func(ctx context.Context) (Conn, error)
