package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidInstrument reports a Deribit instrument payload that cannot
// be keyed.
var ErrInvalidInstrument = errors.New("invalid instrument payload")

// Instrument is a Deribit instrument catalog entry, as returned by the
// public/get_instruments endpoint.
type Instrument struct {
	InstrumentName      string  `json:"instrument_name"`
	Kind                string  `json:"kind"`
	BaseCurrency        string  `json:"base_currency"`
	QuoteCurrency       string  `json:"quote_currency"`
	ExpirationTimestamp int64   `json:"expiration_timestamp"` // milliseconds
	Strike              float64 `json:"strike"`
	OptionType          string  `json:"option_type"` // "call" or "put"
}

// DescribeInstrument builds a descriptor from an instrument payload
// rather than from its ticker. Strikes are rendered with trailing zeros
// collapsed so payload-derived and ticker-derived keys agree.
func DescribeInstrument(inst Instrument) (Descriptor, error) {
	ccy := strings.ToUpper(inst.BaseCurrency)
	if ccy == "" {
		ccy, _, _ = strings.Cut(strings.ToUpper(inst.InstrumentName), "-")
	}
	if ccy == "" {
		return Descriptor{}, fmt.Errorf("%w: no base currency", ErrInvalidInstrument)
	}

	switch strings.ToLower(inst.Kind) {
	case "option":
		expiry, err := instrumentExpiry(inst)
		if err != nil {
			return Descriptor{}, err
		}
		var kind string
		switch strings.ToLower(inst.OptionType) {
		case "call":
			kind = "c"
		case "put":
			kind = "p"
		default:
			return Descriptor{}, fmt.Errorf("%w: option type %q", ErrInvalidInstrument, inst.OptionType)
		}
		strike := decimal.NewFromFloat(inst.Strike).String()
		return deribitOption(ccy, expiry, strike, kind), nil

	case "future":
		expiry, err := instrumentExpiry(inst)
		if err != nil {
			return Descriptor{}, err
		}
		return deribitFuture(ccy, expiry), nil

	case "spot":
		quote := strings.ToUpper(inst.QuoteCurrency)
		if quote == "" {
			_, quote, _ = strings.Cut(strings.ToUpper(inst.InstrumentName), "_")
		}
		if quote == "" {
			return Descriptor{}, fmt.Errorf("%w: no quote currency", ErrInvalidInstrument)
		}
		return Descriptor{
			StorageKey: fmt.Sprintf("markets:deribit:spot:%s:%s",
				strings.ToLower(ccy), strings.ToLower(quote)),
			Venue:           VenueDeribit,
			InstrumentType:  InstrumentSpot,
			CanonicalTicker: ccy + "_" + quote,
			Underlying:      ccy,
			QuoteCurrency:   quote,
		}, nil
	}
	return Descriptor{}, fmt.Errorf("%w: kind %q", ErrInvalidInstrument, inst.Kind)
}

func instrumentExpiry(inst Instrument) (time.Time, error) {
	if inst.ExpirationTimestamp <= 0 {
		return time.Time{}, fmt.Errorf("%w: no expiration timestamp", ErrInvalidInstrument)
	}
	return time.UnixMilli(inst.ExpirationTimestamp).UTC(), nil
}
