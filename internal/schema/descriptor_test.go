package schema

import (
	"errors"
	"testing"
)

func TestDescribeTicker_KalshiCategories(t *testing.T) {
	tests := []struct {
		ticker   string
		category Category
		key      string
	}{
		{"KXHIGHPHIL-25AUG31-B80.5", CategoryWeather, "markets:kalshi:weather:KXHIGHPHIL-25AUG31-B80.5"},
		{"KXLOWDEN-25DEC01-T10", CategoryWeather, "markets:kalshi:weather:KXLOWDEN-25DEC01-T10"},
		{"KXSNOWNYC-26JAN15-T6", CategoryWeather, "markets:kalshi:weather:KXSNOWNYC-26JAN15-T6"},
		{"KXCPIYOY-25SEP30-T3.5", CategoryMacro, "markets:kalshi:macro:KXCPIYOY-25SEP30-T3.5"},
		{"KXFEDDECISION-25SEP17", CategoryMacro, "markets:kalshi:macro:KXFEDDECISION-25SEP17"},
		{"KXPAYROLLS-25OCT03-T150", CategoryMacro, "markets:kalshi:macro:KXPAYROLLS-25OCT03-T150"},
		{"KXBTCD-25AUG31-B110000T115000", CategoryRange, "markets:kalshi:range:KXBTCD-25AUG31-B110000T115000"},
		{"KXETHD-25AUG31-T4500", CategoryRange, "markets:kalshi:range:KXETHD-25AUG31-T4500"},
		{"KXPRESPARTY-28NOV07", CategoryBinary, "markets:kalshi:binary:KXPRESPARTY-28NOV07"},
		{"SOMETHINGELSE-25AUG31", CategoryCustom, "markets:kalshi:custom:SOMETHINGELSE-25AUG31"},
	}

	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			d, err := DescribeTicker(tt.ticker)
			if err != nil {
				t.Fatalf("DescribeTicker(%q): %v", tt.ticker, err)
			}
			if d.Category != tt.category {
				t.Errorf("Category = %v, want %v", d.Category, tt.category)
			}
			if d.StorageKey != tt.key {
				t.Errorf("StorageKey = %q, want %q", d.StorageKey, tt.key)
			}
			if d.Venue != VenueKalshi {
				t.Errorf("Venue = %v, want kalshi", d.Venue)
			}
		})
	}
}

func TestDescribeTicker_KalshiSegments(t *testing.T) {
	d, err := DescribeTicker("kxhighphil-25aug31-b80.5")
	if err != nil {
		t.Fatal(err)
	}
	if d.CanonicalTicker != "KXHIGHPHIL-25AUG31-B80.5" {
		t.Errorf("CanonicalTicker = %q, want uppercased form", d.CanonicalTicker)
	}
	if d.Underlying != "KXHIGHPHIL" {
		t.Errorf("Underlying = %q, want KXHIGHPHIL", d.Underlying)
	}
	if d.ExpiryToken != "25AUG31" {
		t.Errorf("ExpiryToken = %q, want 25AUG31", d.ExpiryToken)
	}
}

func TestDescribeTicker_CustomHasNoUnderlying(t *testing.T) {
	d, err := DescribeTicker("MYSTERY-25AUG31-T5")
	if err != nil {
		t.Fatal(err)
	}
	if d.Category != CategoryCustom {
		t.Fatalf("Category = %v, want custom", d.Category)
	}
	if d.Underlying != "" || d.ExpiryToken != "" {
		t.Errorf("custom market carries underlying=%q expiry=%q, want empty", d.Underlying, d.ExpiryToken)
	}
}

func TestDescribeTicker_EmptyInput(t *testing.T) {
	for _, ticker := range []string{"", "   ", "\t"} {
		if _, err := DescribeTicker(ticker); !errors.Is(err, ErrEmptyTicker) {
			t.Errorf("DescribeTicker(%q): err = %v, want ErrEmptyTicker", ticker, err)
		}
	}
}

func TestDescribeTicker_Deribit(t *testing.T) {
	tests := []struct {
		ticker string
		itype  InstrumentType
		key    string
	}{
		{"BTC-27JUN25-100000-C", InstrumentOption, "markets:deribit:option:btc:2025-06-27:100000:c"},
		{"ETH-26SEP25-4500-P", InstrumentOption, "markets:deribit:option:eth:2025-09-26:4500:p"},
		{"BTC-27JUN25", InstrumentFuture, "markets:deribit:future:btc:2025-06-27"},
		{"ETH-4JUL25", InstrumentFuture, "markets:deribit:future:eth:2025-07-04"},
		{"BTC_USDC", InstrumentSpot, "markets:deribit:spot:btc:usdc"},
		{"STETH_ETH", InstrumentSpot, "markets:deribit:spot:steth:eth"},
	}

	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			d, err := DescribeTicker(tt.ticker)
			if err != nil {
				t.Fatalf("DescribeTicker(%q): %v", tt.ticker, err)
			}
			if d.Venue != VenueDeribit {
				t.Errorf("Venue = %v, want deribit", d.Venue)
			}
			if d.InstrumentType != tt.itype {
				t.Errorf("InstrumentType = %v, want %v", d.InstrumentType, tt.itype)
			}
			if d.StorageKey != tt.key {
				t.Errorf("StorageKey = %q, want %q", d.StorageKey, tt.key)
			}
		})
	}
}

func TestDescribeTicker_DeribitTokensZeroPadded(t *testing.T) {
	// Single-digit day tokens normalize to the zero-padded canonical form.
	d, err := DescribeTicker("ETH-4JUL25")
	if err != nil {
		t.Fatal(err)
	}
	if d.ExpiryToken != "04JUL25" {
		t.Errorf("ExpiryToken = %q, want 04JUL25", d.ExpiryToken)
	}
	if d.CanonicalTicker != "ETH-04JUL25" {
		t.Errorf("CanonicalTicker = %q, want ETH-04JUL25", d.CanonicalTicker)
	}
}

func TestRoundTrip(t *testing.T) {
	tickers := []string{
		"KXHIGHPHIL-25AUG31-B80.5",
		"KXBTCD-25AUG31-B110000T115000",
		"KXCPIYOY-25SEP30-T3.5",
		"KXPRESPARTY-28NOV07",
		"RANDOMSERIES-ABC-42",
		"BTC-27JUN25-100000-C",
		"BTC-27JUN25",
		"BTC_USDC",
	}

	for _, ticker := range tickers {
		t.Run(ticker, func(t *testing.T) {
			key, err := BuildKey(ticker)
			if err != nil {
				t.Fatalf("BuildKey(%q): %v", ticker, err)
			}
			d, err := ParseKey(key)
			if err != nil {
				t.Fatalf("ParseKey(%q): %v", key, err)
			}
			want, _ := DescribeTicker(ticker)
			if d.CanonicalTicker != want.CanonicalTicker {
				t.Errorf("round-trip ticker = %q, want %q", d.CanonicalTicker, want.CanonicalTicker)
			}
			if d.StorageKey != key {
				t.Errorf("round-trip key = %q, want %q", d.StorageKey, key)
			}
		})
	}
}

func TestBuildKey_Totality(t *testing.T) {
	// Any non-empty input yields a key; unsupported forms degrade to custom.
	for _, ticker := range []string{"X", "???", "ZZZ-1-2-3-4-5", "lowercase"} {
		key, err := BuildKey(ticker)
		if err != nil {
			t.Errorf("BuildKey(%q): %v, want success", ticker, err)
		}
		if key == "" {
			t.Errorf("BuildKey(%q) returned empty key", ticker)
		}
	}
}

func TestParseKey_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want error
	}{
		{"wrong namespace", "cache:kalshi:binary:KXFOO", ErrKeyMismatch},
		{"unknown category", "markets:kalshi:sports:KXFOO", ErrUnknownCategory},
		{"wrong arity kalshi", "markets:kalshi:binary", ErrKeyMismatch},
		{"extra segment kalshi", "markets:kalshi:binary:KXFOO:extra", ErrKeyMismatch},
		{"category mismatch", "markets:kalshi:binary:KXHIGHPHIL-25AUG31-B80.5", ErrKeyMismatch},
		{"unknown instrument", "markets:deribit:swap:btc:2025-06-27", ErrUnknownCategory},
		{"option wrong arity", "markets:deribit:option:btc:2025-06-27:100000", ErrKeyMismatch},
		{"future bad date", "markets:deribit:future:btc:27JUN25", ErrKeyMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseKey(tt.key); !errors.Is(err, tt.want) {
				t.Errorf("ParseKey(%q): err = %v, want %v", tt.key, err, tt.want)
			}
		})
	}
}
