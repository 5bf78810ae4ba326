package cluster

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"

	"web/communityglobe/roster"
)

// Mixed labels an aggregate whose members disagree.
const Mixed = "Mixed"

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the coordinates as an orb point (lng, lat).
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// UnknownCoordinates is where unresolved locations are placed. Points placed
// there carry Located == false.
var UnknownCoordinates = Coordinates{Lat: 0, Lng: 0}

// GeoPoint is a renderable unit: one attendee or a cluster of co-located attendees.
// Renderers must treat it as read-only.
type GeoPoint struct {
	ID               string            `json:"id"`
	LocationKey      string            `json:"locationKey"`
	Coordinates      Coordinates       `json:"coordinates"`
	Located          bool              `json:"located"`
	IsCluster        bool              `json:"isCluster"`
	Expanded         bool              `json:"expanded,omitempty"`
	MemberCount      int               `json:"memberCount"`
	Members          []roster.Attendee `json:"members"`
	Industries       []string          `json:"industries"`
	Roles            []string          `json:"roles"`
	Locations        []string          `json:"locations"` // distinct member FullLocations
	IndustryCategory string            `json:"industryCategory"`
	RoleGroup        string            `json:"roleGroup"`
	Role             string            `json:"role"`
	City             string            `json:"city"`
	State            string            `json:"state"`
	Country          string            `json:"country"`
	FullLocation     string            `json:"fullLocation"`
}

func newIndividual(id string, a roster.Attendee, coords Coordinates, located bool) GeoPoint {
	return GeoPoint{
		ID:               id,
		LocationKey:      a.LocationKey(),
		Coordinates:      coords,
		Located:          located,
		MemberCount:      1,
		Members:          []roster.Attendee{a},
		Industries:       []string{a.IndustryCategory},
		Roles:            []string{a.RoleGroup},
		Locations:        []string{a.FullLocation},
		IndustryCategory: a.IndustryCategory,
		RoleGroup:        a.RoleGroup,
		Role:             a.Role,
		City:             a.City,
		State:            a.State,
		Country:          a.Country,
		FullLocation:     a.FullLocation,
	}
}

// newCluster aggregates members sharing one location key. Labels survive only
// when every member agrees on them.
func newCluster(id string, members []roster.Attendee, coords Coordinates, located bool) GeoPoint {
	rep := members[0]
	industries := distinct(members, func(a roster.Attendee) string { return a.IndustryCategory })
	roles := distinct(members, func(a roster.Attendee) string { return a.RoleGroup })
	locations := distinct(members, func(a roster.Attendee) string { return a.FullLocation })

	owned := make([]roster.Attendee, len(members))
	copy(owned, members)

	return GeoPoint{
		ID:               id,
		LocationKey:      rep.LocationKey(),
		Coordinates:      coords,
		Located:          located,
		IsCluster:        true,
		MemberCount:      len(members),
		Members:          owned,
		Industries:       industries,
		Roles:            roles,
		Locations:        locations,
		IndustryCategory: unanimous(industries),
		RoleGroup:        unanimous(roles),
		Role:             fmt.Sprintf("%d members", len(members)),
		City:             rep.City,
		State:            rep.State,
		Country:          rep.Country,
		FullLocation:     rep.FullLocation,
	}
}

func pointID(a roster.Attendee) string {
	return fmt.Sprintf("point_%d", a.ID)
}

func expandedID(a roster.Attendee) string {
	return fmt.Sprintf("expanded_%d", a.ID)
}

func distinct(members []roster.Attendee, field func(roster.Attendee) string) []string {
	seen := make(map[string]struct{}, len(members))
	var out []string
	for _, m := range members {
		v := field(m)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func unanimous(values []string) string {
	if len(values) == 1 {
		return values[0]
	}
	return Mixed
}

// SortByImportance orders points by member count, largest first, keeping the
// existing order between equal counts.
func SortByImportance(points []GeoPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].MemberCount > points[j].MemberCount
	})
}

// Find returns the index of the point with the given id, or -1.
func Find(points []GeoPoint, id string) int {
	for i := range points {
		if points[i].ID == id {
			return i
		}
	}
	return -1
}
