package feed

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("feed not connected")
	ErrStaleConnection = errors.New("feed connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("feed client already closed")
)

// Channels carried by the market-data feed.
const (
	ChannelOrderbookDelta = "orderbook_delta"
	ChannelTrade          = "trade"
	ChannelTicker         = "ticker"
)

// RawMessage wraps feed bytes with the local receive timestamp.
type RawMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// Command is a feed command sent to the server.
type Command struct {
	ID     int64       `json:"id"`
	Cmd    string      `json:"cmd"`
	Params interface{} `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers,omitempty"`
}

// Response is a command response from the server.
type Response struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

// SubscribedMsg is the content of a "subscribed" response.
type SubscribedMsg struct {
	SID          int64  `json:"sid"`
	Channel      string `json:"channel"`
	MarketTicker string `json:"market_ticker"`
}

// ClientConfig configures a feed client.
type ClientConfig struct {
	URL          string        // Feed URL (wss://...)
	APIKey       string        // Bearer token, empty disables auth
	PingTimeout  time.Duration // Max silence before the connection is stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}
