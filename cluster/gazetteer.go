package cluster

import "strings"

// Gazetteer resolves a location to approximate coordinates.
type Gazetteer interface {
	Lookup(city, state, country string) (Coordinates, bool)
}

// NamedPlace matches a city whose name contains Keyword.
type NamedPlace struct {
	Keyword     string
	Coordinates Coordinates
}

// PlaceTable is a static gazetteer keyed by state code: named cities first,
// then the state itself, then the country. It has no notion of a home
// region, so any configured home state geocodes the same way.
type PlaceTable struct {
	Cities    map[string][]NamedPlace
	States    map[string]Coordinates
	Countries map[string]Coordinates
}

var honolulu = Coordinates{Lat: 21.3099, Lng: -157.8581}

// DefaultGazetteer covers the conference's home state and its most common
// mainland and international origins.
var DefaultGazetteer = &PlaceTable{
	Cities: map[string][]NamedPlace{
		"HI": {
			{"honolulu", honolulu},
			{"kailua", Coordinates{Lat: 21.4022, Lng: -157.7394}},
			{"kaneohe", Coordinates{Lat: 21.4180, Lng: -157.8029}},
			{"pearl", Coordinates{Lat: 21.3891, Lng: -157.9750}},
			{"hilo", Coordinates{Lat: 19.7074, Lng: -155.0885}},
			{"kahului", Coordinates{Lat: 20.8893, Lng: -156.4729}},
			{"lihue", Coordinates{Lat: 21.9811, Lng: -159.3711}},
		},
	},
	States: map[string]Coordinates{
		"HI": honolulu,
		"CA": {Lat: 37.7749, Lng: -122.4194},
		"NY": {Lat: 40.7128, Lng: -74.0060},
		"TX": {Lat: 32.7767, Lng: -96.7970},
		"WA": {Lat: 47.6062, Lng: -122.3321},
		"FL": {Lat: 25.7617, Lng: -80.1918},
		"IL": {Lat: 41.8781, Lng: -87.6298},
		"OR": {Lat: 45.5152, Lng: -122.6784},
	},
	Countries: map[string]Coordinates{
		"canada":         {Lat: 45.4215, Lng: -75.6972},
		"uk":             {Lat: 51.5074, Lng: -0.1278},
		"united kingdom": {Lat: 51.5074, Lng: -0.1278},
		"japan":          {Lat: 35.6762, Lng: 139.6503},
		"australia":      {Lat: -33.8688, Lng: 151.2093},
		"singapore":      {Lat: 1.3521, Lng: 103.8198},
		"germany":        {Lat: 52.5200, Lng: 13.4050},
		"france":         {Lat: 48.8566, Lng: 2.3522},
	},
}

// Lookup tries the state tables for US rows and rows with no country.
func (t *PlaceTable) Lookup(city, state, country string) (Coordinates, bool) {
	us := IsUnitedStates(country)
	if us || isUnknown(country) {
		code := StateCode(state)
		lower := strings.ToLower(city)
		for _, p := range t.Cities[code] {
			if strings.Contains(lower, p.Keyword) {
				return p.Coordinates, true
			}
		}
		if c, ok := t.States[code]; ok {
			return c, true
		}
		if us {
			return Coordinates{}, false
		}
	}

	if c, ok := t.Countries[strings.ToLower(strings.TrimSpace(country))]; ok {
		return c, true
	}
	return Coordinates{}, false
}

// stateNames maps full state names seen in the feed to postal codes.
var stateNames = map[string]string{
	"hawaii":     "HI",
	"california": "CA",
	"new york":   "NY",
	"texas":      "TX",
	"washington": "WA",
	"florida":    "FL",
	"illinois":   "IL",
	"oregon":     "OR",
}

// StateCode returns the postal code for a state given either way.
func StateCode(state string) string {
	state = strings.TrimSpace(state)
	if code, ok := stateNames[strings.ToLower(state)]; ok {
		return code
	}
	return strings.ToUpper(state)
}

func isUnknown(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "Unknown")
}

// Region is the conference's home region. Country may be empty to match any.
type Region struct {
	State   string `json:"state" yaml:"state"`
	Country string `json:"country" yaml:"country"`
}

// Contains reports whether a state/country pair lies inside the region.
func (r Region) Contains(state, country string) bool {
	if r.State == "" || !sameState(state, r.State) {
		return false
	}
	if r.Country == "" || isUnknown(country) {
		return true
	}
	return sameCountry(country, r.Country)
}

// Domestic reports whether country is the region's country.
func (r Region) Domestic(country string) bool {
	if r.Country == "" {
		return false
	}
	return sameCountry(country, r.Country)
}

func sameState(a, b string) bool {
	a, b = StateCode(a), StateCode(b)
	return a != "" && a == b
}

func sameCountry(a, b string) bool {
	if IsUnitedStates(a) && IsUnitedStates(b) {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// IsUnitedStates accepts the spellings found in the roster feed.
func IsUnitedStates(country string) bool {
	switch strings.ToLower(strings.TrimSpace(country)) {
	case "usa", "us", "u.s.", "u.s.a.", "united states", "united states of america":
		return true
	}
	return false
}
