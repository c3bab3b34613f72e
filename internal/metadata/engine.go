// Package metadata fills gaps in partial market payloads so downstream
// consumers always see a fully-populated record.
package metadata

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/kalshi-store/internal/schema"
)

// Errors
var (
	ErrExpiryUnderivable = errors.New("expiry not derivable from ticker or metadata")
	ErrStaleTimestamp    = errors.New("timestamp field is not in the future")
)

// StationResolver maps a market ticker to a weather station code.
// Consumed read-only; a nil resolver disables station enrichment.
type StationResolver interface {
	ExtractStation(ticker string) (string, bool)
}

// Engine derives missing metadata fields from tickers and partial
// payloads. Safe for concurrent use.
type Engine struct {
	stations StationResolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a derivation engine. stations may be nil.
func NewEngine(stations StationResolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		stations: stations,
		logger:   logger,
		now:      time.Now,
	}
}

// expiry field candidates, in priority order
var expiryFields = []string{"close_time", "expiration_time", "expected_expiration_time"}

// DeriveExpiryISO resolves a market's expiry as an ISO-8601 string with
// a +00:00 offset. The fallback chain, first success wins:
//
//  1. An explicit close_time/expiration_time field, normalized.
//  2. The descriptor's expiry token parsed as a calendar date.
//  3. Any dash-delimited ticker segment parsed as a calendar date.
//  4. A raw Unix-seconds timestamp field, only if strictly in the future.
func (e *Engine) DeriveExpiryISO(ticker string, meta map[string]string) (string, error) {
	for _, field := range expiryFields {
		if raw := strings.TrimSpace(meta[field]); raw != "" {
			if iso, ok := normalizeISO(raw); ok {
				return iso, nil
			}
			e.logger.Debug("unparseable expiry field", "ticker", ticker, "field", field, "value", raw)
		}
	}

	desc, err := schema.DescribeTicker(ticker)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExpiryUnderivable, err)
	}
	if desc.ExpiryToken != "" {
		if t, err := schema.ParseKalshiDateToken(desc.ExpiryToken); err == nil {
			return isoMidnight(t), nil
		}
	}

	for _, seg := range strings.Split(desc.CanonicalTicker, "-") {
		if !strings.ContainsAny(seg, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			continue
		}
		if t, err := schema.ParseKalshiDateToken(seg); err == nil {
			return isoMidnight(t), nil
		}
	}

	if raw := strings.TrimSpace(meta["timestamp"]); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			t := time.Unix(secs, 0).UTC()
			if !t.After(e.now()) {
				return "", fmt.Errorf("%w: %s", ErrStaleTimestamp, t.Format(time.RFC3339))
			}
			return toOffsetISO(t), nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrExpiryUnderivable, ticker)
}

// EnrichFields returns a copy of meta with derivable fields filled in.
// Present, non-empty fields are never overwritten.
func (e *Engine) EnrichFields(ticker string, meta map[string]string) (map[string]string, error) {
	desc, err := schema.DescribeTicker(ticker)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(meta)+12)
	for k, v := range meta {
		out[k] = v
	}

	setDefault(out, "ticker", desc.CanonicalTicker)
	setDefault(out, "category", string(desc.Category))
	setDefault(out, "underlying", desc.Underlying)
	setDefault(out, "expiry_token", desc.ExpiryToken)
	setDefault(out, "status", "open")

	if fields, ok := schema.DeriveStrikeFields(ticker); ok {
		setDefault(out, "strike_type", fields.Type)
		setDefault(out, "floor_strike", fields.Floor)
		setDefault(out, "cap_strike", fields.Cap)
		setDefault(out, "strike", fields.Representative)
	}

	for _, field := range []string{"yes_bids", "yes_asks", "no_bids", "no_asks"} {
		setDefault(out, field, "{}")
	}

	if e.stations != nil {
		if station, ok := e.stations.ExtractStation(desc.CanonicalTicker); ok {
			setDefault(out, "weather_station", station)
		}
	}

	return out, nil
}

func setDefault(meta map[string]string, field, value string) {
	if value == "" {
		return
	}
	if existing, ok := meta[field]; ok && existing != "" {
		return
	}
	meta[field] = value
}

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// normalizeISO parses a timestamp string in any accepted form and
// re-renders it with an explicit +00:00 offset. Numeric strings are
// treated as Unix seconds.
func normalizeISO(raw string) (string, bool) {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return toOffsetISO(time.Unix(secs, 0).UTC()), true
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return toOffsetISO(t.UTC()), true
		}
	}
	return "", false
}

func isoMidnight(t time.Time) string {
	return toOffsetISO(t.UTC())
}

// toOffsetISO renders t in RFC 3339 with +00:00 instead of Z.
func toOffsetISO(t time.Time) string {
	return strings.Replace(t.Format(time.RFC3339), "Z", "+00:00", 1)
}
