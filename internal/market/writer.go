package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/kalshi-store/internal/metadata"
	"github.com/rickgao/kalshi-store/internal/schema"
)

// Writer provides write access to market records.
type Writer interface {
	// StoreMetadata enriches and persists a market record. Fields
	// already present in the payload win over derived values.
	StoreMetadata(ctx context.Context, ticker string, fields map[string]string) error

	// UpdateTradeTick records the last-trade fields from a trade feed
	// message onto the market's record.
	UpdateTradeTick(ctx context.Context, raw []byte) error

	// UpdateTradePrices records externally computed bid/ask marks.
	UpdateTradePrices(ctx context.Context, ticker, bid, ask string) error
}

type writer struct {
	conns  Conns
	engine *metadata.Engine
	logger *slog.Logger
}

func (w *writer) StoreMetadata(ctx context.Context, ticker string, fields map[string]string) error {
	key, err := schema.BuildKey(ticker)
	if err != nil {
		return err
	}
	enriched, err := w.engine.EnrichFields(ticker, fields)
	if err != nil {
		return err
	}
	conn, err := w.conns.Handle()
	if err != nil {
		return err
	}
	if err := conn.HSet(ctx, key, enriched); err != nil {
		return fmt.Errorf("store metadata %s: %w", ticker, err)
	}
	w.logger.Debug("stored market metadata", "ticker", ticker, "fields", len(enriched))
	return nil
}

// TradeTick is a trade message from the feed. Prices are in cents on
// the YES/NO complement scale.
type TradeTick struct {
	MarketTicker string      `json:"market_ticker"`
	TradeID      string      `json:"trade_id"`
	Side         string      `json:"side"`
	TakerSide    string      `json:"taker_side"`
	YesPrice     json.Number `json:"yes_price"`
	NoPrice      json.Number `json:"no_price"`
	Price        json.Number `json:"price"`
	Count        int64       `json:"count"`
	TS           int64       `json:"ts"`
}

func (w *writer) UpdateTradeTick(ctx context.Context, raw []byte) error {
	var tick TradeTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if tick.MarketTicker == "" {
		return fmt.Errorf("%w: trade tick missing market_ticker", ErrInvalidPayload)
	}
	key, err := schema.BuildKey(tick.MarketTicker)
	if err != nil {
		return err
	}

	yes, no := resolveTradePrices(tick)

	fields := map[string]string{
		"last_trade_side":  tick.Side,
		"last_trade_count": strconv.FormatInt(tick.Count, 10),
		"last_trade_id":    tick.TradeID,
	}
	if fields["last_trade_id"] == "" {
		fields["last_trade_id"] = uuid.NewString()
	}
	if tick.TS != 0 {
		fields["last_trade_timestamp"] = time.Unix(tick.TS, 0).UTC().Format(time.RFC3339)
	}
	if tick.TakerSide != "" {
		fields["last_trade_taker_side"] = tick.TakerSide
	}
	if tick.Price.String() != "" {
		fields["last_trade_raw_price"] = tick.Price.String()
	}
	if yes != "" {
		fields["last_trade_yes_price"] = yes
		fields["last_price"] = yes
	}
	if no != "" {
		fields["last_trade_no_price"] = no
	}

	conn, err := w.conns.Handle()
	if err != nil {
		return err
	}
	if err := conn.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("update trade tick %s: %w", tick.MarketTicker, err)
	}
	return nil
}

func (w *writer) UpdateTradePrices(ctx context.Context, ticker, bid, ask string) error {
	if bid == "" || ask == "" {
		return nil
	}
	key, err := schema.BuildKey(ticker)
	if err != nil {
		return err
	}
	conn, err := w.conns.Handle()
	if err != nil {
		return err
	}
	fields := map[string]string{
		"trade_bid": bid,
		"trade_ask": ask,
	}
	if err := conn.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("update trade prices %s: %w", ticker, err)
	}
	return nil
}

// resolveTradePrices fills whichever of the YES/NO prices is missing
// using the complement 100 - price. A raw price is interpreted through
// the trade side.
func resolveTradePrices(tick TradeTick) (yes, no string) {
	yes = tick.YesPrice.String()
	no = tick.NoPrice.String()

	side := tick.Side
	if side == "" {
		side = tick.TakerSide
	}

	if yes == "" && tick.Price.String() != "" {
		if raw, err := decimal.NewFromString(tick.Price.String()); err == nil {
			switch side {
			case "yes":
				yes = raw.String()
			case "no":
				yes = decimal.NewFromInt(100).Sub(raw).String()
			}
		}
	}

	if yes != "" && no == "" {
		if y, err := decimal.NewFromString(yes); err == nil {
			no = decimal.NewFromInt(100).Sub(y).String()
		}
	}
	if no != "" && yes == "" {
		if n, err := decimal.NewFromString(no); err == nil {
			yes = decimal.NewFromInt(100).Sub(n).String()
		}
	}
	return yes, no
}
