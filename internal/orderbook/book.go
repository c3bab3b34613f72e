package orderbook

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// level is one validated price level.
type level struct {
	price decimal.Decimal
	size  int64
}

// parseLevels validates raw levels and returns them with normalized
// prices. Each level must be a 2-element numeric (price, size) pair;
// anything else fails with ErrCorruptedBook. invert applies the
// NO-to-YES conversion price' = 100 - price.
//
// keepZeros controls the zero-size policy: snapshots drop them, deltas
// keep them as removal markers. Negative sizes are dropped either way.
func parseLevels(raw [][]json.Number, invert, keepZeros bool) ([]level, error) {
	levels := make([]level, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: level has %d elements, want 2", ErrCorruptedBook, len(pair))
		}
		price, err := decimal.NewFromString(pair[0].String())
		if err != nil {
			return nil, fmt.Errorf("%w: bad price %q", ErrCorruptedBook, pair[0])
		}
		size, err := pair[1].Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: bad size %q", ErrCorruptedBook, pair[1])
		}
		if size < 0 || (size == 0 && !keepZeros) {
			continue
		}
		if invert {
			price = hundred.Sub(price)
		}
		levels = append(levels, level{price: price, size: size})
	}
	return levels, nil
}

// sideMap is a book side keyed by normalized price string.
type sideMap map[string]int64

// decodeSide parses a stored JSON side object, normalizing price keys
// so equivalent decimals compare equal.
func decodeSide(raw string) (sideMap, error) {
	if raw == "" || raw == "{}" {
		return sideMap{}, nil
	}
	var fields map[string]int64
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedBook, err)
	}
	side := make(sideMap, len(fields))
	for price, size := range fields {
		d, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("%w: bad stored price %q", ErrCorruptedBook, price)
		}
		side[d.String()] = size
	}
	return side, nil
}

// encodeSide renders a side as its stored JSON object form.
func encodeSide(side sideMap) string {
	data, _ := json.Marshal(side)
	return string(data)
}

// buildSide collects snapshot levels into a fresh side map.
func buildSide(levels []level) sideMap {
	side := make(sideMap, len(levels))
	for _, lv := range levels {
		side[lv.price.String()] = lv.size
	}
	return side
}

// mergeSide applies delta levels: zero size removes the price level,
// positive size upserts it.
func mergeSide(side sideMap, levels []level) {
	for _, lv := range levels {
		key := lv.price.String()
		if lv.size == 0 {
			delete(side, key)
			continue
		}
		side[key] = lv.size
	}
}

// bestLevel returns the top of a side: highest price for bids, lowest
// for asks. ok is false when the side is empty.
func bestLevel(side sideMap, isBid bool) (price string, size int64, ok bool) {
	prices := make([]decimal.Decimal, 0, len(side))
	for p := range side {
		d, err := decimal.NewFromString(p)
		if err != nil {
			continue
		}
		prices = append(prices, d)
	}
	if len(prices) == 0 {
		return "", 0, false
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })

	var best decimal.Decimal
	if isBid {
		best = prices[len(prices)-1]
	} else {
		best = prices[0]
	}
	key := best.String()
	return key, side[key], true
}
