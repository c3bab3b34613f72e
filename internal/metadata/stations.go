package metadata

import "strings"

// weatherPrefixes are the series prefixes carrying a city code.
var weatherPrefixes = []string{"KXHIGH", "KXLOW", "KXSNOW", "KXRAIN"}

// cityStations maps ticker city codes to ICAO station identifiers.
var cityStations = map[string]string{
	"PHIL": "KPHL",
	"NY":   "KNYC",
	"NYC":  "KNYC",
	"CHI":  "KMDW",
	"DEN":  "KDEN",
	"MIA":  "KMIA",
	"AUS":  "KAUS",
	"LAX":  "KLAX",
	"SEA":  "KSEA",
	"HOU":  "KHOU",
	"PHX":  "KPHX",
	"DC":   "KDCA",
}

// StaticStationResolver resolves weather stations from the city code
// embedded in weather-series tickers (KXHIGHPHIL, KXSNOWNYC, ...).
type StaticStationResolver struct {
	stations map[string]string
}

// NewStaticStationResolver returns a resolver over the built-in city
// table. extra entries override or extend it.
func NewStaticStationResolver(extra map[string]string) *StaticStationResolver {
	stations := make(map[string]string, len(cityStations)+len(extra))
	for k, v := range cityStations {
		stations[k] = v
	}
	for k, v := range extra {
		stations[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	return &StaticStationResolver{stations: stations}
}

// ExtractStation returns the ICAO code for a weather-series ticker.
func (r *StaticStationResolver) ExtractStation(ticker string) (string, bool) {
	series, _, _ := strings.Cut(strings.ToUpper(ticker), "-")
	for _, prefix := range weatherPrefixes {
		if !strings.HasPrefix(series, prefix) {
			continue
		}
		city := strings.TrimPrefix(series, prefix)
		station, ok := r.stations[city]
		return station, ok
	}
	return "", false
}
