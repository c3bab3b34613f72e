package market

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/kalshi-store/internal/metadata"
	"github.com/rickgao/kalshi-store/internal/schema"
)

// Reader provides read access to market records.
type Reader interface {
	// Market returns the stored record for a ticker, re-enriching
	// derivable fields that are still missing. A market with no stored
	// record yields the enriched skeleton, not an error.
	Market(ctx context.Context, ticker string) (map[string]string, error)

	// MarketKeys returns all stored keys for a venue.
	MarketKeys(ctx context.Context, venue schema.Venue) ([]string, error)

	// ExpiryISO resolves a market's expiry from its stored record and
	// ticker, using the metadata fallback chain.
	ExpiryISO(ctx context.Context, ticker string) (string, error)
}

type reader struct {
	conns  Conns
	engine *metadata.Engine
	logger *slog.Logger
}

func (r *reader) Market(ctx context.Context, ticker string) (map[string]string, error) {
	key, err := schema.BuildKey(ticker)
	if err != nil {
		return nil, err
	}
	conn, err := r.conns.Handle()
	if err != nil {
		return nil, err
	}
	stored, err := conn.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read market %s: %w", ticker, err)
	}
	// The store is not assumed to hold a fully-enriched record.
	return r.engine.EnrichFields(ticker, stored)
}

func (r *reader) MarketKeys(ctx context.Context, venue schema.Venue) ([]string, error) {
	conn, err := r.conns.Handle()
	if err != nil {
		return nil, err
	}
	return conn.Scan(ctx, fmt.Sprintf("markets:%s:*", venue))
}

func (r *reader) ExpiryISO(ctx context.Context, ticker string) (string, error) {
	key, err := schema.BuildKey(ticker)
	if err != nil {
		return "", err
	}
	conn, err := r.conns.Handle()
	if err != nil {
		return "", err
	}
	stored, err := conn.HGetAll(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read market %s: %w", ticker, err)
	}
	return r.engine.DeriveExpiryISO(ticker, stored)
}
