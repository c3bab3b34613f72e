package orderbook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/kalshi-store/internal/schema"
	"github.com/rickgao/kalshi-store/internal/store"
)

// Conns supplies the live store connection.
type Conns interface {
	Handle() (store.Conn, error)
}

// Reconciler applies orderbook snapshots and deltas to market records.
// Validation is strict and runs before any store write: a corrupted
// message never partially mutates the stored book.
//
// Per-market ordering of concurrently dispatched messages is not
// guaranteed here; callers needing strict ordering must serialize
// dispatch per market key.
type Reconciler struct {
	conns  Conns
	logger *slog.Logger
	now    func() time.Time
}

// NewReconciler creates a reconciler over the given connection source.
func NewReconciler(conns Conns, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{conns: conns, logger: logger, now: time.Now}
}

// Dispatch routes a raw feed message to the snapshot or delta handler.
// An unrecognized message type is logged and reported as an error
// without panicking the ingestion loop.
func (r *Reconciler) Dispatch(ctx context.Context, message []byte) error {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownMessageType, err)
	}

	var payload Payload
	switch env.Type {
	case TypeSnapshot, TypeDelta:
		if err := json.Unmarshal(env.Msg, &payload); err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptedBook, err)
		}
	default:
		r.logger.Warn("unrecognized orderbook message type", "type", env.Type)
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}

	key, err := schema.BuildKey(payload.MarketTicker)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedBook, err)
	}

	if env.Type == TypeSnapshot {
		return r.ApplySnapshot(ctx, key, payload)
	}
	return r.ApplyDelta(ctx, key, payload)
}

// ApplySnapshot replaces both stored sides of the book wholesale.
// YES levels become bids; NO levels become asks via 100 - price.
func (r *Reconciler) ApplySnapshot(ctx context.Context, marketKey string, payload Payload) error {
	bidLevels, err := parseLevels(payload.Yes, false, false)
	if err != nil {
		return err
	}
	askLevels, err := parseLevels(payload.No, true, false)
	if err != nil {
		return err
	}

	bids := buildSide(bidLevels)
	asks := buildSide(askLevels)
	return r.writeBook(ctx, marketKey, bids, asks)
}

// ApplyDelta merges levels into the stored book: size zero removes a
// price level, positive size upserts it. A market with no stored book
// gets one created lazily.
func (r *Reconciler) ApplyDelta(ctx context.Context, marketKey string, payload Payload) error {
	bidLevels, err := parseLevels(payload.Yes, false, true)
	if err != nil {
		return err
	}
	askLevels, err := parseLevels(payload.No, true, true)
	if err != nil {
		return err
	}

	conn, err := r.conns.Handle()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	stored, err := conn.HMGet(ctx, marketKey, "yes_bids", "yes_asks")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	bids, err := decodeSide(stored[0])
	if err != nil {
		return err
	}
	asks, err := decodeSide(stored[1])
	if err != nil {
		return err
	}

	mergeSide(bids, bidLevels)
	mergeSide(asks, askLevels)
	return r.writeBook(ctx, marketKey, bids, asks)
}

// Book reads and decodes a market's stored book. A market with no
// stored book yields empty sides.
func (r *Reconciler) Book(ctx context.Context, marketKey string) (Book, error) {
	conn, err := r.conns.Handle()
	if err != nil {
		return Book{}, err
	}
	stored, err := conn.HMGet(ctx, marketKey, "yes_bids", "yes_asks")
	if err != nil {
		return Book{}, fmt.Errorf("read book %s: %w", marketKey, err)
	}

	bids, err := decodeSide(stored[0])
	if err != nil {
		return Book{}, err
	}
	asks, err := decodeSide(stored[1])
	if err != nil {
		return Book{}, err
	}

	book := Book{Bids: bids, Asks: asks}
	if price, size, ok := bestLevel(bids, true); ok {
		book.BestBid, book.BestBidSize = price, size
	}
	if price, size, ok := bestLevel(asks, false); ok {
		book.BestAsk, book.BestAskSize = price, size
	}
	return book, nil
}

// writeBook persists both sides and their top-of-book scalars as one
// store command.
func (r *Reconciler) writeBook(ctx context.Context, marketKey string, bids, asks sideMap) error {
	fields := map[string]string{
		"yes_bids":              encodeSide(bids),
		"yes_asks":              encodeSide(asks),
		"last_orderbook_update": r.now().UTC().Format(time.RFC3339),
	}
	setTopOfBook(fields, "yes_bid", "yes_bid_size", bids, true)
	setTopOfBook(fields, "yes_ask", "yes_ask_size", asks, false)

	if fields["yes_bid"] == "" || fields["yes_ask"] == "" {
		// One-sided or empty books are a legitimate market state.
		r.logger.Debug("illiquid book", "key", marketKey,
			"bids", len(bids), "asks", len(asks))
	}

	conn, err := r.conns.Handle()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	err = conn.Pipelined(ctx, func(p store.Pipe) {
		p.HSet(marketKey, fields)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return nil
}

func setTopOfBook(fields map[string]string, priceField, sizeField string, side sideMap, isBid bool) {
	price, size, ok := bestLevel(side, isBid)
	if !ok {
		fields[priceField] = ""
		fields[sizeField] = ""
		return
	}
	fields[priceField] = price
	fields[sizeField] = fmt.Sprintf("%d", size)
}
