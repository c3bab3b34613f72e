// Package market is the store facade: typed read/write access to
// market records, subscription tracking, and orderbook reconciliation
// composed behind one type.
package market

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rickgao/kalshi-store/internal/metadata"
	"github.com/rickgao/kalshi-store/internal/orderbook"
	"github.com/rickgao/kalshi-store/internal/schema"
	"github.com/rickgao/kalshi-store/internal/store"
)

// Errors
var (
	ErrInvalidPayload = errors.New("invalid market payload")
)

// Conns supplies the live store connection.
type Conns interface {
	Handle() (store.Conn, error)
}

// Store composes the market-data surfaces over one connection source.
// All methods are safe for concurrent use; per-market write ordering
// under concurrent callers is the caller's responsibility.
type Store struct {
	Reader
	Writer
	Subscriptions SubscriptionTracker
	Orderbooks    *orderbook.Reconciler
}

// New builds the facade. engine may not be nil; logger nil means default.
func New(conns Conns, engine *metadata.Engine, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		Reader:        &reader{conns: conns, engine: engine, logger: logger},
		Writer:        &writer{conns: conns, engine: engine, logger: logger},
		Subscriptions: &subscriptions{conns: conns},
		Orderbooks:    orderbook.NewReconciler(conns, logger),
	}
}

// Book returns a ticker's decoded orderbook with its best levels.
func (s *Store) Book(ctx context.Context, ticker string) (orderbook.Book, error) {
	key, err := schema.BuildKey(ticker)
	if err != nil {
		return orderbook.Book{}, err
	}
	return s.Orderbooks.Book(ctx, key)
}
