package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rickgao/kalshi-store/internal/market"
	"github.com/rickgao/kalshi-store/internal/orderbook"
	"github.com/rickgao/kalshi-store/internal/retry"
)

// Consumer drives one feed connection and routes its messages into the
// market store: orderbook messages to the reconciler, trades to the
// writer, subscription acknowledgements to the tracker.
//
// Messages for one market are routed on a single loop, so per-market
// write ordering holds as long as one Consumer owns that market.
type Consumer struct {
	cfg    ClientConfig
	store  *market.Store
	policy retry.Policy
	logger *slog.Logger

	newClient func() Client
	cmdID     int64
}

// NewConsumer creates a consumer for the given feed endpoint.
func NewConsumer(cfg ClientConfig, store *market.Store, policy retry.Policy, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{
		cfg:    cfg,
		store:  store,
		policy: policy,
		logger: logger,
	}
	c.newClient = func() Client { return NewClient(cfg, logger) }
	return c
}

// Run connects, subscribes to the tracked markets, and consumes until
// ctx is cancelled. Connection loss triggers reconnect with backoff;
// backoff resets after each successful connect.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		client, err := c.connectWithRetry(ctx)
		if err != nil {
			return err
		}

		if err := c.subscribeTracked(ctx, client); err != nil {
			c.logger.Warn("subscribe after connect failed", "error", err)
		}

		err = c.consume(ctx, client)
		client.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("feed connection lost, reconnecting", "error", err)
	}
}

func (c *Consumer) connectWithRetry(ctx context.Context) (Client, error) {
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		client := c.newClient()
		if err := client.Connect(ctx); err != nil {
			lastErr = err
			client.Close()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.policy.MaxAttempts {
				delay := c.policy.NextDelay(attempt)
				c.logger.Warn("feed connect failed",
					"attempt", attempt, "delay", delay, "error", err)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
			continue
		}
		return client, nil
	}
	return nil, fmt.Errorf("feed connect attempts exhausted: %w", lastErr)
}

// subscribeTracked re-subscribes every market in the subscription
// registry, batching them into one command per channel.
func (c *Consumer) subscribeTracked(ctx context.Context, client Client) error {
	subs, err := c.store.Subscriptions.Subscribed(ctx)
	if err != nil {
		return err
	}

	tickers := make([]string, 0, len(subs))
	for ticker := range subs {
		tickers = append(tickers, ticker)
	}
	if len(tickers) == 0 {
		return nil
	}

	cmd := Command{
		ID:  atomic.AddInt64(&c.cmdID, 1),
		Cmd: "subscribe",
		Params: SubscribeParams{
			Channels:      []string{ChannelOrderbookDelta, ChannelTrade},
			MarketTickers: tickers,
		},
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	c.logger.Info("resubscribing tracked markets", "count", len(tickers))
	return client.Send(data)
}

func (c *Consumer) consume(ctx context.Context, client Client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-client.Errors():
			return err
		case msg, ok := <-client.Messages():
			if !ok {
				return ErrNotConnected
			}
			c.route(ctx, msg.Data)
		}
	}
}

// route handles one feed message. Routing failures are logged, never
// fatal to the consume loop: a bad message must not take down the feed.
func (c *Consumer) route(ctx context.Context, data []byte) {
	var env orderbook.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("unparseable feed message", "error", err)
		return
	}

	switch env.Type {
	case orderbook.TypeSnapshot, orderbook.TypeDelta:
		if err := c.store.Orderbooks.Dispatch(ctx, data); err != nil {
			c.logger.Error("orderbook update failed", "type", env.Type, "error", err)
		}
	case ChannelTrade:
		if err := c.store.UpdateTradeTick(ctx, env.Msg); err != nil {
			c.logger.Error("trade tick update failed", "error", err)
		}
	case "subscribed":
		var sub SubscribedMsg
		if err := json.Unmarshal(env.Msg, &sub); err != nil {
			c.logger.Warn("unparseable subscribed response", "error", err)
			return
		}
		if sub.MarketTicker == "" {
			return
		}
		sid := fmt.Sprintf("%d", sub.SID)
		if err := c.store.Subscriptions.Subscribe(ctx, sub.MarketTicker, sid); err != nil {
			c.logger.Warn("recording subscription failed",
				"ticker", sub.MarketTicker, "error", err)
		}
	case "error":
		c.logger.Warn("feed error message", "msg", string(env.Msg))
	default:
		c.logger.Debug("ignoring feed message", "type", env.Type)
	}
}
