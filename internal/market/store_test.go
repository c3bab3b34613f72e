package market

import (
	"context"
	"errors"
	"testing"

	"github.com/rickgao/kalshi-store/internal/metadata"
	"github.com/rickgao/kalshi-store/internal/schema"
	"github.com/rickgao/kalshi-store/internal/store"
	"github.com/rickgao/kalshi-store/internal/store/storetest"
)

type staticConns struct {
	conn store.Conn
}

func (s staticConns) Handle() (store.Conn, error) { return s.conn, nil }

func newTestStore() (*Store, *storetest.Conn) {
	fake := storetest.New()
	engine := metadata.NewEngine(metadata.NewStaticStationResolver(nil), nil)
	return New(staticConns{conn: fake}, engine, nil), fake
}

const (
	testTicker = "KXHIGHPHIL-25AUG31-B80.5"
	testKey    = "markets:kalshi:weather:KXHIGHPHIL-25AUG31-B80.5"
)

func TestStoreMetadata_PersistsEnrichedRecord(t *testing.T) {
	s, fake := newTestStore()

	fields := map[string]string{"close_time": "2025-08-31T20:00:00Z", "status": "active"}
	if err := s.StoreMetadata(context.Background(), testTicker, fields); err != nil {
		t.Fatalf("StoreMetadata: %v", err)
	}

	h := fake.Hash(testKey)
	if h["status"] != "active" {
		t.Errorf("status = %q, want caller value preserved", h["status"])
	}
	if h["strike_type"] != "less" || h["cap_strike"] != "80.5" {
		t.Errorf("strike fields = (%s, %s), want derived less/80.5", h["strike_type"], h["cap_strike"])
	}
	if h["weather_station"] != "KPHL" {
		t.Errorf("weather_station = %q, want KPHL", h["weather_station"])
	}
	if h["yes_bids"] != "{}" {
		t.Errorf("yes_bids = %q, want placeholder", h["yes_bids"])
	}
}

func TestMarket_ReenrichesOnRead(t *testing.T) {
	s, fake := newTestStore()
	// A partially-written record: no strike fields, no status.
	fake.SetHash(testKey, map[string]string{"close_time": "2025-08-31T20:00:00Z"})

	got, err := s.Market(context.Background(), testTicker)
	if err != nil {
		t.Fatalf("Market: %v", err)
	}
	if got["status"] != "open" {
		t.Errorf("status = %q, want derived default open", got["status"])
	}
	if got["strike_type"] != "less" {
		t.Errorf("strike_type = %q, want derived less", got["strike_type"])
	}
	if got["close_time"] != "2025-08-31T20:00:00Z" {
		t.Errorf("close_time = %q, want stored value untouched", got["close_time"])
	}
}

func TestMarketKeys(t *testing.T) {
	s, fake := newTestStore()
	fake.SetHash(testKey, map[string]string{"status": "open"})
	fake.SetHash("markets:deribit:future:btc:2025-06-27", map[string]string{"status": "open"})

	keys, err := s.MarketKeys(context.Background(), schema.VenueKalshi)
	if err != nil {
		t.Fatalf("MarketKeys: %v", err)
	}
	if len(keys) != 1 || keys[0] != testKey {
		t.Errorf("MarketKeys = %v, want only the kalshi key", keys)
	}
}

func TestExpiryISO_UsesStoredRecordFirst(t *testing.T) {
	s, fake := newTestStore()
	fake.SetHash(testKey, map[string]string{"close_time": "2025-08-31T20:00:00Z"})

	got, err := s.ExpiryISO(context.Background(), testTicker)
	if err != nil {
		t.Fatalf("ExpiryISO: %v", err)
	}
	if got != "2025-08-31T20:00:00+00:00" {
		t.Errorf("ExpiryISO = %q, want stored close_time normalized", got)
	}
}

func TestExpiryISO_FallsBackToTicker(t *testing.T) {
	s, _ := newTestStore()

	got, err := s.ExpiryISO(context.Background(), testTicker)
	if err != nil {
		t.Fatalf("ExpiryISO: %v", err)
	}
	if got != "2025-08-31T00:00:00+00:00" {
		t.Errorf("ExpiryISO = %q, want token-derived midnight", got)
	}
}

func TestUpdateTradeTick(t *testing.T) {
	s, fake := newTestStore()

	raw := []byte(`{
		"market_ticker": "KXHIGHPHIL-25AUG31-B80.5",
		"trade_id": "t-123",
		"side": "yes",
		"yes_price": 42,
		"count": 7,
		"ts": 1756209600
	}`)
	if err := s.UpdateTradeTick(context.Background(), raw); err != nil {
		t.Fatalf("UpdateTradeTick: %v", err)
	}

	h := fake.Hash(testKey)
	if h["last_trade_yes_price"] != "42" || h["last_price"] != "42" {
		t.Errorf("yes price = (%s, %s), want 42", h["last_trade_yes_price"], h["last_price"])
	}
	if h["last_trade_no_price"] != "58" {
		t.Errorf("last_trade_no_price = %q, want complement 58", h["last_trade_no_price"])
	}
	if h["last_trade_count"] != "7" {
		t.Errorf("last_trade_count = %q, want 7", h["last_trade_count"])
	}
	if h["last_trade_id"] != "t-123" {
		t.Errorf("last_trade_id = %q, want t-123", h["last_trade_id"])
	}
	if h["last_trade_timestamp"] != "2025-08-26T12:00:00Z" {
		t.Errorf("last_trade_timestamp = %q", h["last_trade_timestamp"])
	}
}

func TestUpdateTradeTick_RawPriceNoSide(t *testing.T) {
	s, fake := newTestStore()

	raw := []byte(`{
		"market_ticker": "KXHIGHPHIL-25AUG31-B80.5",
		"taker_side": "no",
		"price": 30,
		"count": 1
	}`)
	if err := s.UpdateTradeTick(context.Background(), raw); err != nil {
		t.Fatalf("UpdateTradeTick: %v", err)
	}

	h := fake.Hash(testKey)
	if h["last_trade_yes_price"] != "70" {
		t.Errorf("last_trade_yes_price = %q, want 70 via complement", h["last_trade_yes_price"])
	}
	if h["last_trade_id"] == "" {
		t.Error("last_trade_id missing, want generated id")
	}
}

func TestUpdateTradeTick_MissingTicker(t *testing.T) {
	s, _ := newTestStore()

	err := s.UpdateTradeTick(context.Background(), []byte(`{"side":"yes"}`))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("err = %v, want ErrInvalidPayload", err)
	}
}

func TestSubscriptions(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	if err := s.Subscriptions.Subscribe(ctx, "kxhighphil-25aug31-b80.5", "sid-1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := s.Subscriptions.Subscribe(ctx, "KXBTCD-25AUG31-T110000", ""); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	subs, err := s.Subscriptions.Subscribed(ctx)
	if err != nil {
		t.Fatalf("Subscribed: %v", err)
	}
	if subs[testTicker] != "sid-1" {
		t.Errorf("subs[%s] = %q, want sid-1 under canonical ticker", testTicker, subs[testTicker])
	}
	if _, ok := subs["KXBTCD-25AUG31-T110000"]; !ok {
		t.Error("second subscription missing")
	}

	if err := s.Subscriptions.Unsubscribe(ctx, testTicker); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	subs, _ = s.Subscriptions.Subscribed(ctx)
	if _, ok := subs[testTicker]; ok {
		t.Error("subscription still present after Unsubscribe")
	}

	// Unsubscribing an unknown ticker is a no-op.
	if err := s.Subscriptions.Unsubscribe(ctx, "KXNEVERSEEN"); err != nil {
		t.Errorf("Unsubscribe unknown: %v", err)
	}
}

func TestBook(t *testing.T) {
	s, fake := newTestStore()
	fake.SetHash(testKey, map[string]string{
		"yes_bids": `{"40":10}`,
		"yes_asks": `{"70":5}`,
	})

	book, err := s.Book(context.Background(), testTicker)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if book.BestBid != "40" || book.BestAsk != "70" {
		t.Errorf("best levels = (%s, %s), want (40, 70)", book.BestBid, book.BestAsk)
	}

	if _, err := s.Book(context.Background(), ""); err == nil {
		t.Error("Book with empty ticker succeeded, want error")
	}
}
