package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors
var (
	ErrEmptyTicker     = errors.New("empty ticker")
	ErrUnknownCategory = errors.New("unknown market category")
	ErrKeyMismatch     = errors.New("key does not match canonical form")
)

// SubscriptionsKey is the hash tracking active Kalshi subscriptions.
const SubscriptionsKey = "kalshi:subscriptions"

// Venue identifies which exchange a market belongs to.
type Venue string

const (
	VenueKalshi  Venue = "kalshi"
	VenueDeribit Venue = "deribit"
)

// Category is the high-level Kalshi market category used for namespacing.
type Category string

const (
	CategoryBinary  Category = "binary"
	CategoryRange   Category = "range"
	CategoryWeather Category = "weather"
	CategoryMacro   Category = "macro"
	CategoryCustom  Category = "custom"
)

// InstrumentType is the Deribit instrument kind.
type InstrumentType string

const (
	InstrumentOption InstrumentType = "option"
	InstrumentFuture InstrumentType = "future"
	InstrumentSpot   InstrumentType = "spot"
)

// Descriptor is the parsed, immutable representation of a market.
// Kalshi markets populate Category; Deribit markets populate
// InstrumentType and the instrument-specific fields.
type Descriptor struct {
	StorageKey      string
	Venue           Venue
	Category        Category
	InstrumentType  InstrumentType
	CanonicalTicker string
	Underlying      string
	ExpiryToken     string
	ExpiryISO       string
	Strike          string
	OptionKind      string // "c" or "p"
	QuoteCurrency   string
}

// categoryPrefixes maps ticker prefixes to categories. Ordered longest
// first so the most specific prefix wins.
var categoryPrefixes = []struct {
	prefix   string
	category Category
}{
	{"KXPAYROLL", CategoryMacro},
	{"KXHIGH", CategoryWeather},
	{"KXSNOW", CategoryWeather},
	{"KXRAIN", CategoryWeather},
	{"KXLOW", CategoryWeather},
	{"KXCPI", CategoryMacro},
	{"KXFED", CategoryMacro},
	{"KXGDP", CategoryMacro},
	{"KXBTC", CategoryRange},
	{"KXETH", CategoryRange},
	{"KX", CategoryBinary},
}

var validCategories = map[Category]bool{
	CategoryBinary:  true,
	CategoryRange:   true,
	CategoryWeather: true,
	CategoryMacro:   true,
	CategoryCustom:  true,
}

// deribitCurrencies are the base currencies recognized as Deribit
// instruments. A dash-delimited ticker whose first segment is one of
// these is classified as Deribit, not Kalshi.
var deribitCurrencies = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "XRP": true,
	"USDC": true, "USDT": true, "EURR": true, "STETH": true,
	"MATIC": true, "ADA": true, "PAXG": true,
}

// DescribeTicker classifies a ticker and returns its parsed descriptor.
// Classification is total for non-empty input: tickers matching no known
// form degrade to the Kalshi custom category rather than erroring.
func DescribeTicker(ticker string) (Descriptor, error) {
	canonical := strings.ToUpper(strings.TrimSpace(ticker))
	if canonical == "" {
		return Descriptor{}, ErrEmptyTicker
	}

	if d, ok := describeDeribit(canonical); ok {
		return d, nil
	}
	return describeKalshi(canonical), nil
}

// BuildKey returns the storage key for a ticker.
func BuildKey(ticker string) (string, error) {
	d, err := DescribeTicker(ticker)
	if err != nil {
		return "", err
	}
	return d.StorageKey, nil
}

// ParseKey validates a storage key structurally and returns its
// descriptor. The key must match the canonical form produced by
// BuildKey; stale or hand-constructed keys fail with ErrKeyMismatch.
func ParseKey(key string) (Descriptor, error) {
	segments := strings.Split(key, ":")
	if len(segments) < 4 || segments[0] != "markets" {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrKeyMismatch, key)
	}

	switch segments[1] {
	case string(VenueKalshi):
		return parseKalshiKey(key, segments)
	case string(VenueDeribit):
		return parseDeribitKey(key, segments)
	}
	return Descriptor{}, fmt.Errorf("%w: %q", ErrKeyMismatch, key)
}

func describeKalshi(canonical string) Descriptor {
	category := CategoryCustom
	for _, entry := range categoryPrefixes {
		if strings.HasPrefix(canonical, entry.prefix) {
			category = entry.category
			break
		}
	}

	var underlying, expiryToken string
	if category != CategoryCustom {
		parts := strings.Split(canonical, "-")
		if len(parts) >= 2 {
			underlying = parts[0]
			if _, err := ParseKalshiDateToken(parts[1]); err == nil {
				expiryToken = parts[1]
			}
		}
	}

	return Descriptor{
		StorageKey:      fmt.Sprintf("markets:kalshi:%s:%s", category, canonical),
		Venue:           VenueKalshi,
		Category:        category,
		CanonicalTicker: canonical,
		Underlying:      underlying,
		ExpiryToken:     expiryToken,
	}
}

func describeDeribit(canonical string) (Descriptor, bool) {
	// Spot pairs use an underscore: BTC_USDC.
	if ccy, quote, ok := strings.Cut(canonical, "_"); ok {
		if deribitCurrencies[ccy] && quote != "" && !strings.Contains(quote, "_") {
			return Descriptor{
				StorageKey: fmt.Sprintf("markets:deribit:spot:%s:%s",
					strings.ToLower(ccy), strings.ToLower(quote)),
				Venue:           VenueDeribit,
				InstrumentType:  InstrumentSpot,
				CanonicalTicker: canonical,
				Underlying:      ccy,
				QuoteCurrency:   quote,
			}, true
		}
		return Descriptor{}, false
	}

	parts := strings.Split(canonical, "-")
	if !deribitCurrencies[parts[0]] {
		return Descriptor{}, false
	}

	switch len(parts) {
	case 2:
		expiry, err := ParseDeribitDateToken(parts[1])
		if err != nil {
			return Descriptor{}, false
		}
		return deribitFuture(parts[0], expiry), true
	case 4:
		expiry, err := ParseDeribitDateToken(parts[1])
		if err != nil {
			return Descriptor{}, false
		}
		kind := strings.ToLower(parts[3])
		if kind != "c" && kind != "p" {
			return Descriptor{}, false
		}
		return deribitOption(parts[0], expiry, parts[2], kind), true
	}
	return Descriptor{}, false
}

func deribitFuture(ccy string, expiry time.Time) Descriptor {
	token := DeribitDateToken(expiry)
	iso := ExpiryISO(expiry)
	return Descriptor{
		StorageKey:      fmt.Sprintf("markets:deribit:future:%s:%s", strings.ToLower(ccy), iso),
		Venue:           VenueDeribit,
		InstrumentType:  InstrumentFuture,
		CanonicalTicker: ccy + "-" + token,
		Underlying:      ccy,
		ExpiryToken:     token,
		ExpiryISO:       iso,
	}
}

func deribitOption(ccy string, expiry time.Time, strike, kind string) Descriptor {
	token := DeribitDateToken(expiry)
	iso := ExpiryISO(expiry)
	return Descriptor{
		StorageKey: fmt.Sprintf("markets:deribit:option:%s:%s:%s:%s",
			strings.ToLower(ccy), iso, strings.ToLower(strike), kind),
		Venue:           VenueDeribit,
		InstrumentType:  InstrumentOption,
		CanonicalTicker: fmt.Sprintf("%s-%s-%s-%s", ccy, token, strike, strings.ToUpper(kind)),
		Underlying:      ccy,
		ExpiryToken:     token,
		ExpiryISO:       iso,
		Strike:          strike,
		OptionKind:      kind,
	}
}

func parseKalshiKey(key string, segments []string) (Descriptor, error) {
	if len(segments) != 4 {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrKeyMismatch, key)
	}
	category := Category(segments[2])
	if !validCategories[category] {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownCategory, segments[2])
	}

	d := describeKalshi(strings.ToUpper(segments[3]))
	if d.StorageKey != key {
		return Descriptor{}, fmt.Errorf("%w: %q normalizes to %q", ErrKeyMismatch, key, d.StorageKey)
	}
	return d, nil
}

func parseDeribitKey(key string, segments []string) (Descriptor, error) {
	var ticker string
	switch InstrumentType(segments[2]) {
	case InstrumentOption:
		if len(segments) != 7 {
			return Descriptor{}, fmt.Errorf("%w: %q", ErrKeyMismatch, key)
		}
		expiry, err := time.Parse("2006-01-02", segments[4])
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: %q", ErrKeyMismatch, key)
		}
		ticker = fmt.Sprintf("%s-%s-%s-%s",
			strings.ToUpper(segments[3]), DeribitDateToken(expiry),
			strings.ToUpper(segments[5]), strings.ToUpper(segments[6]))
	case InstrumentFuture:
		if len(segments) != 5 {
			return Descriptor{}, fmt.Errorf("%w: %q", ErrKeyMismatch, key)
		}
		expiry, err := time.Parse("2006-01-02", segments[4])
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: %q", ErrKeyMismatch, key)
		}
		ticker = strings.ToUpper(segments[3]) + "-" + DeribitDateToken(expiry)
	case InstrumentSpot:
		if len(segments) != 5 {
			return Descriptor{}, fmt.Errorf("%w: %q", ErrKeyMismatch, key)
		}
		ticker = strings.ToUpper(segments[3]) + "_" + strings.ToUpper(segments[4])
	default:
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownCategory, segments[2])
	}

	d, ok := describeDeribit(ticker)
	if !ok || d.StorageKey != key {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrKeyMismatch, key)
	}
	return d, nil
}
