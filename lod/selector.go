// Package lod picks the GeoPoints worth drawing for a camera distance and a
// filter selection.
package lod

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"web/communityglobe/cluster"
)

// All is the filter value meaning "no restriction".
const All = "all"

// Region restricts points relative to the home region.
type Region string

const (
	RegionGlobal        Region = "global"
	RegionHome          Region = "home"
	RegionDomestic      Region = "domestic"
	RegionInternational Region = "international"
)

// ParseRegion accepts the region names plus the legacy "hawaii" and
// "mainland" aliases. Empty means global.
func ParseRegion(s string) (Region, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(RegionGlobal), All:
		return RegionGlobal, nil
	case string(RegionHome), "hawaii":
		return RegionHome, nil
	case string(RegionDomestic), "mainland":
		return RegionDomestic, nil
	case string(RegionInternational):
		return RegionInternational, nil
	}
	return "", fmt.Errorf("unknown region %q", s)
}

// Filters are ANDed together. An empty list, or one containing All, accepts everything.
type Filters struct {
	Industries []string `json:"industries,omitempty"`
	Locations  []string `json:"locations,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	Region     Region   `json:"region,omitempty"`
}

// Band keeps clusters with at least MinMembers members while the camera is
// no further than MaxDistance.
type Band struct {
	Name        string  `json:"name" yaml:"name"`
	MaxDistance float64 `json:"maxDistance" yaml:"max_distance"`
	MinMembers  int     `json:"minMembers" yaml:"min_members"`
}

// DefaultBands are tuned for a globe of radius 100.
var DefaultBands = []Band{
	{Name: "very-near", MaxDistance: 50, MinMembers: 1},
	{Name: "near", MaxDistance: 100, MinMembers: 2},
	{Name: "mid", MaxDistance: 150, MinMembers: 3},
	{Name: "far", MaxDistance: 300, MinMembers: 5},
	{Name: "very-far", MaxDistance: math.Inf(1), MinMembers: 10},
}

const DefaultMaxRenderPoints = 2000

type Options struct {
	Bands           []Band
	MaxRenderPoints int
	Adaptive        bool
	HomeRegion      cluster.Region
}

func DefaultOptions() Options {
	return Options{
		Bands:           DefaultBands,
		MaxRenderPoints: DefaultMaxRenderPoints,
		Adaptive:        true,
		HomeRegion:      cluster.Region{State: "HI", Country: "USA"},
	}
}

var (
	ErrNoBands       = errors.New("at least one LOD band is required")
	ErrBandOrder     = errors.New("LOD bands must be sorted by increasing distance")
	ErrBandThreshold = errors.New("LOD band thresholds must not decrease with distance")
)

// Selector is stateless apart from its options; Select may be called concurrently.
type Selector struct {
	options Options
}

// NewSelector validates the bands. Unset fields take their defaults; a
// non-positive MaxRenderPoints means DefaultMaxRenderPoints.
func NewSelector(options Options) (*Selector, error) {
	if options.Bands == nil {
		options.Bands = DefaultBands
	}
	if options.MaxRenderPoints <= 0 {
		options.MaxRenderPoints = DefaultMaxRenderPoints
	}
	if options.HomeRegion == (cluster.Region{}) {
		options.HomeRegion = cluster.Region{State: "HI", Country: "USA"}
	}

	if len(options.Bands) == 0 {
		return nil, ErrNoBands
	}
	for i := 1; i < len(options.Bands); i++ {
		prev, cur := options.Bands[i-1], options.Bands[i]
		if cur.MaxDistance <= prev.MaxDistance {
			return nil, fmt.Errorf("%w: %s (%g) after %s (%g)", ErrBandOrder, cur.Name, cur.MaxDistance, prev.Name, prev.MaxDistance)
		}
		if cur.MinMembers < prev.MinMembers {
			return nil, fmt.Errorf("%w: %s (%d) after %s (%d)", ErrBandThreshold, cur.Name, cur.MinMembers, prev.Name, prev.MinMembers)
		}
	}

	bands := make([]Band, len(options.Bands))
	copy(bands, options.Bands)
	options.Bands = bands

	return &Selector{options: options}, nil
}

func (s *Selector) Options() Options {
	return s.options
}

// Band returns the band covering distance. Distances past the last band use it.
func (s *Selector) Band(distance float64) Band {
	for _, b := range s.options.Bands {
		if distance <= b.MaxDistance {
			return b
		}
	}
	return s.options.Bands[len(s.options.Bands)-1]
}

// Select filters points, drops clusters too small for the distance band and
// caps the result at MaxRenderPoints, largest first. Individual points are
// never dropped by the band. The input slice is not modified.
func (s *Selector) Select(points []cluster.GeoPoint, distance float64, filters Filters) []cluster.GeoPoint {
	minMembers := 1
	if s.options.Adaptive {
		minMembers = s.Band(distance).MinMembers
	}

	industries := newAcceptSet(filters.Industries)
	locations := newAcceptSet(filters.Locations)
	roles := newAcceptSet(filters.Roles)

	out := make([]cluster.GeoPoint, 0, len(points))
	for _, p := range points {
		if !anyAccepted(industries, p.Industries) ||
			!anyAccepted(locations, pointLocations(p)) ||
			!anyAccepted(roles, p.Roles) ||
			!s.inRegion(p, filters.Region) {
			continue
		}
		if p.IsCluster && p.MemberCount < minMembers {
			continue
		}
		out = append(out, p)
	}

	cluster.SortByImportance(out)
	if len(out) > s.options.MaxRenderPoints {
		out = out[:s.options.MaxRenderPoints]
	}
	return out
}

func (s *Selector) inRegion(p cluster.GeoPoint, region Region) bool {
	home := s.options.HomeRegion
	switch region {
	case RegionHome:
		return home.Contains(p.State, p.Country)
	case RegionDomestic:
		return home.Domestic(p.Country) && !home.Contains(p.State, p.Country)
	case RegionInternational:
		return !home.Domestic(p.Country)
	default:
		return true
	}
}

// acceptSet is nil when unrestricted.
type acceptSet map[string]struct{}

func newAcceptSet(values []string) acceptSet {
	if len(values) == 0 {
		return nil
	}
	set := make(acceptSet, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if strings.EqualFold(v, All) {
			return nil
		}
		if v != "" {
			set[v] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// anyAccepted reports whether any label of a point passes. For clusters the
// labels are the distinct values of its members.
func anyAccepted(s acceptSet, labels []string) bool {
	if s == nil {
		return true
	}
	for _, l := range labels {
		if _, ok := s[l]; ok {
			return true
		}
	}
	return false
}

// pointLocations falls back to FullLocation for points built without a
// Locations set.
func pointLocations(p cluster.GeoPoint) []string {
	if len(p.Locations) > 0 {
		return p.Locations
	}
	return []string{p.FullLocation}
}
