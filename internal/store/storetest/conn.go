// Package storetest provides an in-memory store.Conn for tests.
package storetest

import (
	"context"
	"path"
	"sort"
	"sync"

	"github.com/rickgao/kalshi-store/internal/store"
)

// Conn is an in-memory implementation of store.Conn. Error hooks let
// tests inject failures on individual operations.
type Conn struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	closed bool

	// PingErr, if set, is returned by every Ping call.
	PingErr error
	// WriteErr, if set, is returned by HSet, HDel, and Pipelined.
	WriteErr error
	// ReadErr, if set, is returned by HGetAll, HMGet, and Scan.
	ReadErr error

	// Pings counts Ping calls, including failed ones.
	Pings int
	// Closes counts Close calls.
	Closes int
}

// New returns an empty in-memory connection.
func New() *Conn {
	return &Conn{hashes: make(map[string]map[string]string)}
}

func (c *Conn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Pings++
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.PingErr
}

func (c *Conn) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	out := make(map[string]string, len(c.hashes[key]))
	for k, v := range c.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (c *Conn) HMGet(ctx context.Context, key string, fields ...string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = c.hashes[key][f]
	}
	return out, nil
}

func (c *Conn) HSet(ctx context.Context, key string, fields map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.hset(key, fields)
	return nil
}

func (c *Conn) HDel(ctx context.Context, key string, fields ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.hdel(key, fields)
	return nil
}

func (c *Conn) Scan(ctx context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	var keys []string
	for k := range c.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *Conn) Pipelined(ctx context.Context, fn func(store.Pipe)) error {
	p := &pipe{}
	fn(p)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	for _, op := range p.ops {
		if op.del != nil {
			c.hdel(op.key, op.del)
		} else {
			c.hset(op.key, op.set)
		}
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closes++
	c.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Hash returns a copy of the hash stored at key for assertions.
func (c *Conn) Hash(key string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.hashes[key]))
	for k, v := range c.hashes[key] {
		out[k] = v
	}
	return out
}

// SetHash replaces the hash at key, for test setup.
func (c *Conn) SetHash(key string, fields map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := make(map[string]string, len(fields))
	for k, v := range fields {
		h[k] = v
	}
	c.hashes[key] = h
}

func (c *Conn) hset(key string, fields map[string]string) {
	h := c.hashes[key]
	if h == nil {
		h = make(map[string]string, len(fields))
		c.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
}

func (c *Conn) hdel(key string, fields []string) {
	h := c.hashes[key]
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(c.hashes, key)
	}
}

type pipeOp struct {
	key string
	set map[string]string
	del []string
}

type pipe struct {
	ops []pipeOp
}

func (p *pipe) HSet(key string, fields map[string]string) {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	p.ops = append(p.ops, pipeOp{key: key, set: cp})
}

func (p *pipe) HDel(key string, fields ...string) {
	p.ops = append(p.ops, pipeOp{key: key, del: append([]string(nil), fields...)})
}
