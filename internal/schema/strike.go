package schema

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// StrikeFields is the strike information derivable from a ticker alone.
// Bounds are decimal strings; Cap may be "inf" for greater markets.
type StrikeFields struct {
	Type           string // "greater", "less", or "between"
	Floor          string
	Cap            string
	Representative string
}

var (
	betweenSegmentRe = regexp.MustCompile(`^B(\d+(?:\.\d+)?)T(\d+(?:\.\d+)?)$`)
	strikeSegmentRe  = regexp.MustCompile(`^([BT]?)(\d+(?:\.\d+)?)$`)
)

// DeriveStrikeFields extracts strike information from the trailing
// segment of a Kalshi ticker. Segment grammar: T<x> is a greater market
// with floor x, B<x> a less market with cap x, B<x>T<y> a between
// market with bounds [x, y], and a bare number defaults to greater.
// Keyword segments (ABOVE, GREATER, BELOW, LESS, BETWEEN) elsewhere in
// the ticker override the prefix-derived type.
//
// The second return is false when the ticker carries no strike segment.
func DeriveStrikeFields(ticker string) (StrikeFields, bool) {
	tokens := tokenize(ticker)
	if len(tokens) == 0 {
		return StrikeFields{}, false
	}
	last := tokens[len(tokens)-1]

	if m := betweenSegmentRe.FindStringSubmatch(last); m != nil {
		return betweenFields(m[1], m[2]), true
	}

	m := strikeSegmentRe.FindStringSubmatch(last)
	if m == nil {
		return StrikeFields{}, false
	}
	prefix, value := m[1], m[2]
	if _, err := decimal.NewFromString(value); err != nil {
		return StrikeFields{}, false
	}

	strikeType := typeFromKeyword(tokens)
	if strikeType == "" {
		switch prefix {
		case "B":
			strikeType = "less"
		default: // "T" or bare numeric
			strikeType = "greater"
		}
	}

	switch strikeType {
	case "less":
		return StrikeFields{Type: "less", Floor: "0", Cap: value, Representative: value}, true
	case "between":
		// Keyword said between but the segment carries one bound;
		// leave the bounds blank rather than guessing.
		return StrikeFields{Type: "between", Representative: value}, true
	default:
		return StrikeFields{Type: "greater", Floor: value, Cap: "inf", Representative: value}, true
	}
}

func betweenFields(floor, cap string) StrikeFields {
	fields := StrikeFields{Type: "between", Floor: floor, Cap: cap}
	f, errF := decimal.NewFromString(floor)
	c, errC := decimal.NewFromString(cap)
	if errF == nil && errC == nil {
		fields.Representative = decimal.Avg(f, c).String()
	}
	return fields
}

func tokenize(ticker string) []string {
	var tokens []string
	for _, seg := range strings.Split(strings.ToUpper(ticker), "-") {
		if seg != "" {
			tokens = append(tokens, seg)
		}
	}
	return tokens
}

// typeFromKeyword resolves keyword tokens anywhere in the ticker.
// BETWEEN wins over the directional keywords regardless of position.
func typeFromKeyword(tokens []string) string {
	has := func(words ...string) bool {
		for _, tok := range tokens {
			for _, w := range words {
				if tok == w {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has("BETWEEN"):
		return "between"
	case has("BELOW", "LESS"):
		return "less"
	case has("ABOVE", "GREATER"):
		return "greater"
	}
	return ""
}
