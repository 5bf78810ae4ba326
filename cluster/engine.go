// Package cluster groups normalized attendees into renderable GeoPoints by
// location key, resolves their coordinates, and supports drilling into a cluster.
package cluster

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"

	"web/communityglobe/roster"
)

var (
	ErrPointNotFound = errors.New("point not found")
	ErrNotCluster    = errors.New("point is not a cluster")
)

// Policy decides which location keys may be clustered.
type Policy string

const (
	// PolicyHomeRegion clusters only keys inside the home region; everyone
	// else is rendered individually whatever the head count.
	PolicyHomeRegion Policy = "home-region"
	// PolicyEverywhere clusters every key with two or more attendees.
	PolicyEverywhere Policy = "everywhere"
)

type Options struct {
	Policy        Policy
	HomeRegion    Region
	JitterDegrees float64 // full width of the per-key jitter box
	SpreadDegrees float64 // offset step between co-located individual points
	Seed          int64
	Log           bool
}

// Engine runs clustering passes. It owns the coordinate cache and the set of
// location keys that were drilled into.
type Engine struct {
	Options   Options
	cache     *CoordinateCache
	gazetteer Gazetteer

	mu     sync.RWMutex
	pinned map[string]struct{}
}

// NewEngine fills in defaults for unset options. A nil cache or gazetteer is
// replaced by a fresh cache and DefaultGazetteer.
func NewEngine(options Options, cache *CoordinateCache, gazetteer Gazetteer) *Engine {
	if options.Policy == "" {
		options.Policy = PolicyHomeRegion
	}
	if options.HomeRegion == (Region{}) {
		options.HomeRegion = Region{State: "HI", Country: "USA"}
	}
	if options.JitterDegrees <= 0 {
		options.JitterDegrees = 0.1
	}
	if options.SpreadDegrees <= 0 {
		options.SpreadDegrees = 0.01
	}
	if cache == nil {
		cache = NewCoordinateCache()
	}
	if gazetteer == nil {
		gazetteer = DefaultGazetteer
	}

	return &Engine{
		Options:   options,
		cache:     cache,
		gazetteer: gazetteer,
		pinned:    make(map[string]struct{}),
	}
}

func (e *Engine) Cache() *CoordinateCache {
	return e.cache
}

// Cluster builds the GeoPoints for one pass, largest first. Every attendee
// ends up in exactly one point.
func (e *Engine) Cluster(attendees []roster.Attendee) []GeoPoint {
	var order []string
	groups := make(map[string][]roster.Attendee)
	for _, a := range attendees {
		key := a.LocationKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], a)
	}

	points := make([]GeoPoint, 0, len(order))
	clusterID := 0
	unresolved := 0

	for _, key := range order {
		members := groups[key]
		loc := e.resolve(members[0])
		if !loc.Located {
			unresolved++
		}

		if len(members) > 1 && e.clusterable(members[0]) {
			points = append(points, newCluster(fmt.Sprintf("cluster_%d", clusterID), members, loc.Coordinates, loc.Located))
			clusterID++
			continue
		}

		pinned := e.IsPinned(key)
		for i, m := range members {
			coords := e.spread(loc, i)
			if pinned {
				p := newIndividual(expandedID(m), m, coords, loc.Located)
				p.Expanded = true
				points = append(points, p)
				continue
			}
			points = append(points, newIndividual(pointID(m), m, coords, loc.Located))
		}
	}

	SortByImportance(points)

	if e.Options.Log {
		log.Printf("cluster: %d attendees -> %d points (%d clusters, %d unresolved locations)",
			len(attendees), len(points), clusterID, unresolved)
	}
	return points
}

// Expand replaces the cluster with the given id by one point per member. The
// cluster's location key is pinned, so later passes keep it expanded. The
// input slice is not modified.
func (e *Engine) Expand(points []GeoPoint, id string) ([]GeoPoint, error) {
	idx := Find(points, id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPointNotFound, id)
	}
	target := points[idx]
	if !target.IsCluster {
		return nil, fmt.Errorf("%w: %s", ErrNotCluster, id)
	}

	e.Pin(target.LocationKey)

	loc := CachedLocation{Coordinates: target.Coordinates, Located: target.Located}
	out := make([]GeoPoint, 0, len(points)-1+len(target.Members))
	out = append(out, points[:idx]...)
	out = append(out, points[idx+1:]...)
	for i, m := range target.Members {
		p := newIndividual(expandedID(m), m, e.spread(loc, i), target.Located)
		p.Expanded = true
		out = append(out, p)
	}
	SortByImportance(out)

	if e.Options.Log {
		log.Printf("cluster: expanded %s into %d points", id, len(target.Members))
	}
	return out, nil
}

// Pin marks location keys as expanded.
func (e *Engine) Pin(keys ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range keys {
		e.pinned[k] = struct{}{}
	}
}

func (e *Engine) IsPinned(key string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.pinned[key]
	return ok
}

// Pinned returns the expanded location keys in sorted order.
func (e *Engine) Pinned() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := make([]string, 0, len(e.pinned))
	for k := range e.pinned {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *Engine) clusterable(a roster.Attendee) bool {
	if e.IsPinned(a.LocationKey()) {
		return false
	}
	switch e.Options.Policy {
	case PolicyEverywhere:
		return true
	default:
		return e.Options.HomeRegion.Contains(a.State, a.Country)
	}
}

// resolve returns the cached position of the attendee's location key,
// resolving and jittering it on first use. Misses land on UnknownCoordinates
// without jitter.
func (e *Engine) resolve(a roster.Attendee) CachedLocation {
	key := a.LocationKey()
	if loc, ok := e.cache.Get(key); ok {
		return loc
	}

	coords, ok := e.gazetteer.Lookup(a.City, a.State, a.Country)
	if !ok {
		if e.Options.Log {
			log.Printf("cluster: no coordinates for %q, using unknown sentinel", key)
		}
		return e.cache.Put(key, CachedLocation{Coordinates: UnknownCoordinates})
	}

	r := rand.New(rand.NewSource(e.Options.Seed ^ int64(hashKey(key))))
	coords.Lat += (r.Float64() - 0.5) * e.Options.JitterDegrees
	coords.Lng += (r.Float64() - 0.5) * e.Options.JitterDegrees

	return e.cache.Put(key, CachedLocation{Coordinates: coords, Located: true})
}

// spread offsets the i-th individual point at a shared location on a
// sunflower spiral so co-located points do not overlap. The first point and
// unresolved locations keep the base coordinates.
func (e *Engine) spread(loc CachedLocation, i int) Coordinates {
	if i == 0 || !loc.Located {
		return loc.Coordinates
	}
	const goldenAngle = 2.399963229728653
	radius := e.Options.SpreadDegrees * math.Sqrt(float64(i))
	angle := float64(i) * goldenAngle
	return Coordinates{
		Lat: loc.Coordinates.Lat + radius*math.Sin(angle),
		Lng: loc.Coordinates.Lng + radius*math.Cos(angle),
	}
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}
