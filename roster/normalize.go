// Package roster turns raw attendee rows into normalized attendees with
// role groups and industry categories assigned.
package roster

import (
	"log"
	"sort"
	"strings"
)

// Column headers of the attendee feed.
const (
	ColRole        = "Role / Job Title"
	ColCity        = "City"
	ColState       = "State / Province"
	ColCountry     = "Country"
	ColIndustry    = "Industry"
	ColConfirmTime = "CONFIRM_TIME"
	ColLastChanged = "LAST_CHANGED"
)

const (
	Unknown         = "Unknown"
	UnknownLocation = "Unknown Location"
)

// RawRow is one feed row keyed by column header.
type RawRow map[string]string

// Attendee is a normalized roster entry. It is immutable once produced.
type Attendee struct {
	ID               int    `json:"id"`
	Role             string `json:"role"`
	City             string `json:"city"`
	State            string `json:"state"`
	Country          string `json:"country"`
	Industry         string `json:"industry"`
	FullLocation     string `json:"fullLocation"`
	RoleGroup        string `json:"roleGroup"`
	IndustryCategory string `json:"industryCategory"`
	ConfirmTime      string `json:"confirmTime,omitempty"`
	LastChanged      string `json:"lastChanged,omitempty"`
}

// LocationKey groups attendees geographically.
func (a Attendee) LocationKey() string {
	return a.City + "|" + a.State + "|" + a.Country
}

// FilterOptions enumerates the values a filter UI can offer.
type FilterOptions struct {
	Industries []string `json:"industries"`
	Locations  []string `json:"locations"`
	Roles      []string `json:"roles"`
}

// Normalizer cleans rows and remembers the distinct category values it produced.
type Normalizer struct {
	RoleRules     RuleSet
	IndustryRules RuleSet
	Log           bool

	industries map[string]struct{}
	locations  map[string]struct{}
	roles      map[string]struct{}
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		RoleRules:     RoleRules,
		IndustryRules: IndustryRules,
		industries:    make(map[string]struct{}),
		locations:     make(map[string]struct{}),
		roles:         make(map[string]struct{}),
	}
}

// Normalize converts rows to attendees. Rows without a role or an industry
// are dropped without error; an attendee's ID is its row index.
func (n *Normalizer) Normalize(rows []RawRow) []Attendee {
	attendees := make([]Attendee, 0, len(rows))
	dropped := 0

	for i, row := range rows {
		role := cleanString(row[ColRole])
		industry := cleanString(row[ColIndustry])
		if role == "" || industry == "" {
			dropped++
			continue
		}

		city := cleanString(row[ColCity])
		state := cleanString(row[ColState])
		country := cleanString(row[ColCountry])

		a := Attendee{
			ID:               i,
			Role:             role,
			City:             orUnknown(city),
			State:            orUnknown(state),
			Country:          orUnknown(country),
			Industry:         industry,
			FullLocation:     buildLocation(city, state, country),
			RoleGroup:        n.RoleRules.Categorize(role),
			IndustryCategory: n.IndustryRules.Categorize(industry),
			ConfirmTime:      cleanString(row[ColConfirmTime]),
			LastChanged:      cleanString(row[ColLastChanged]),
		}

		n.industries[a.IndustryCategory] = struct{}{}
		n.locations[a.FullLocation] = struct{}{}
		n.roles[a.RoleGroup] = struct{}{}

		attendees = append(attendees, a)
	}

	if n.Log && dropped > 0 {
		log.Printf("roster: dropped %d of %d rows missing role or industry", dropped, len(rows))
	}
	return attendees
}

// FilterOptions returns the sorted distinct values seen by every Normalize call so far.
func (n *Normalizer) FilterOptions() FilterOptions {
	return FilterOptions{
		Industries: sortedKeys(n.industries),
		Locations:  sortedKeys(n.locations),
		Roles:      sortedKeys(n.roles),
	}
}

// CollectFilterOptions rebuilds filter options from attendees that were
// normalized elsewhere, such as ones restored from a snapshot.
func CollectFilterOptions(attendees []Attendee) FilterOptions {
	n := NewNormalizer()
	for _, a := range attendees {
		n.industries[a.IndustryCategory] = struct{}{}
		n.locations[a.FullLocation] = struct{}{}
		n.roles[a.RoleGroup] = struct{}{}
	}
	return n.FilterOptions()
}

func cleanString(s string) string {
	s = strings.TrimSpace(s)
	if s == "-" {
		return ""
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

func buildLocation(city, state, country string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{city, state, country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return UnknownLocation
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
