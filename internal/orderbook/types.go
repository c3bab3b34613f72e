package orderbook

import (
	"encoding/json"
	"errors"
)

// Errors
var (
	ErrCorruptedBook      = errors.New("corrupted orderbook payload")
	ErrStoreWrite         = errors.New("store write failed")
	ErrUnknownMessageType = errors.New("unknown orderbook message type")
)

// Message types on the wire.
const (
	TypeSnapshot = "orderbook_snapshot"
	TypeDelta    = "orderbook_delta"
)

// Envelope is the outer framing of an orderbook feed message.
type Envelope struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

// Payload carries the two observed sides of a book. Each level is a
// 2-element (price, size) array. NO-side levels are converted to
// YES-side asks via price' = 100 - price before storage.
type Payload struct {
	MarketTicker string          `json:"market_ticker"`
	Yes          [][]json.Number `json:"yes"`
	No           [][]json.Number `json:"no"`
}

// Book is the decoded two-sided state of a stored orderbook. Prices are
// normalized decimal strings keyed by the YES side.
type Book struct {
	Bids        map[string]int64
	Asks        map[string]int64
	BestBid     string
	BestBidSize int64
	BestAsk     string
	BestAskSize int64
}
