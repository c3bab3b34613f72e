// Package store defines the primitives of the remote hash-oriented
// key-value store (per-key hash maps, scan-by-pattern, pipelined
// multi-field writes) and the Redis implementation behind them.
//
// Higher layers depend on the Conn interface only; the connection
// package owns dialing, health checking, and lifecycle.
package store
