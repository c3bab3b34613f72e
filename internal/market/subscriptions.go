package market

import (
	"context"
	"fmt"

	"github.com/rickgao/kalshi-store/internal/schema"
)

// SubscriptionTracker records which markets the feed is subscribed to,
// keyed by ticker in the subscriptions hash.
type SubscriptionTracker interface {
	// Subscribe records a subscription. sid may be empty when the feed
	// has not assigned one yet.
	Subscribe(ctx context.Context, ticker, sid string) error

	// Unsubscribe removes a subscription. Removing an unknown ticker
	// is not an error.
	Unsubscribe(ctx context.Context, ticker string) error

	// Subscribed returns ticker to subscription-id for all active
	// subscriptions.
	Subscribed(ctx context.Context) (map[string]string, error)
}

type subscriptions struct {
	conns Conns
}

func (s *subscriptions) Subscribe(ctx context.Context, ticker, sid string) error {
	desc, err := schema.DescribeTicker(ticker)
	if err != nil {
		return err
	}
	conn, err := s.conns.Handle()
	if err != nil {
		return err
	}
	fields := map[string]string{desc.CanonicalTicker: sid}
	if err := conn.HSet(ctx, schema.SubscriptionsKey, fields); err != nil {
		return fmt.Errorf("subscribe %s: %w", ticker, err)
	}
	return nil
}

func (s *subscriptions) Unsubscribe(ctx context.Context, ticker string) error {
	desc, err := schema.DescribeTicker(ticker)
	if err != nil {
		return err
	}
	conn, err := s.conns.Handle()
	if err != nil {
		return err
	}
	if err := conn.HDel(ctx, schema.SubscriptionsKey, desc.CanonicalTicker); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", ticker, err)
	}
	return nil
}

func (s *subscriptions) Subscribed(ctx context.Context) (map[string]string, error) {
	conn, err := s.conns.Handle()
	if err != nil {
		return nil, err
	}
	return conn.HGetAll(ctx, schema.SubscriptionsKey)
}
