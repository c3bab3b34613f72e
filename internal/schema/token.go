package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	kalshiTokenRe  = regexp.MustCompile(`^(\d{2})([A-Z]{3})(\d{2})$`)
	deribitTokenRe = regexp.MustCompile(`^(\d{1,2})([A-Z]{3})(\d{2})$`)
)

var monthNumbers = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// ParseKalshiDateToken parses a Kalshi expiry token of the form YYMMMDD
// (e.g. 25AUG31 is 2025-08-31). The returned time is midnight UTC.
func ParseKalshiDateToken(token string) (time.Time, error) {
	m := kalshiTokenRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(token)))
	if m == nil {
		return time.Time{}, fmt.Errorf("not a date token: %q", token)
	}
	month, ok := monthNumbers[m[2]]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month in token: %q", token)
	}
	year, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[3])
	return calendarDate(2000+year, month, day, token)
}

// ParseDeribitDateToken parses a Deribit expiry token of the form DMMMYY
// or DDMMMYY (e.g. 27JUN25 or 4JUL25). The returned time is midnight UTC.
func ParseDeribitDateToken(token string) (time.Time, error) {
	m := deribitTokenRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(token)))
	if m == nil {
		return time.Time{}, fmt.Errorf("not a date token: %q", token)
	}
	month, ok := monthNumbers[m[2]]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month in token: %q", token)
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	return calendarDate(2000+year, month, day, token)
}

func calendarDate(year int, month time.Month, day int, token string) (time.Time, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (Feb 30 becomes Mar 2);
	// a token that does not survive the round trip is not a real date.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, fmt.Errorf("invalid calendar date in token: %q", token)
	}
	return t, nil
}

// DeribitDateToken formats t as a canonical zero-padded Deribit expiry
// token (e.g. 27JUN25).
func DeribitDateToken(t time.Time) string {
	return strings.ToUpper(t.UTC().Format("02Jan06"))
}

// ExpiryISO formats t as the calendar-date segment used in Deribit keys.
func ExpiryISO(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
