// Package connection implements the store connection lifecycle.
//
// The manager:
//   - Establishes connections lazily on first use
//   - Health-checks every candidate with a bounded ping before adopting it
//   - Retries transient failures with exponential backoff
//   - Aborts immediately on shutdown errors (fatal, never retried)
//   - Degrades to an offline state when attempts are exhausted
package connection
