// Package viewport turns a stream of camera and filter changes into
// rebuild or patch calls on a renderer.
package viewport

import (
	"fmt"
	"math"

	"web/communityglobe/cluster"
)

type Decision int

const (
	NoChange Decision = iota
	Patch
	Rebuild
)

func (d Decision) String() string {
	switch d {
	case Patch:
		return "patch"
	case Rebuild:
		return "rebuild"
	default:
		return "no-change"
	}
}

// MarshalText lets decisions appear by name in JSON.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Decision) UnmarshalText(text []byte) error {
	switch string(text) {
	case "no-change":
		*d = NoChange
	case "patch":
		*d = Patch
	case "rebuild":
		*d = Rebuild
	default:
		return fmt.Errorf("unknown decision %q", text)
	}
	return nil
}

// Thresholds bound how far the rendered set may drift before a patch is no
// longer good enough.
type Thresholds struct {
	CountSlack    int     `yaml:"count_slack"`
	DistanceSlack float64 `yaml:"distance_slack"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{CountSlack: 10, DistanceSlack: 20}
}

// Decide compares the set built at previousDistance with a candidate for
// newDistance. A rebuild is required when the sizes differ by more than
// CountSlack, the camera moved more than DistanceSlack, the leading point
// changed, or the candidate holds a point the previous build never created.
func Decide(previous, candidate []cluster.GeoPoint, previousDistance, newDistance float64, th Thresholds) Decision {
	if len(previous) == 0 && len(candidate) == 0 {
		return NoChange
	}
	if len(previous) == 0 || len(candidate) == 0 {
		return Rebuild
	}

	sizeDelta := len(candidate) - len(previous)
	if sizeDelta < 0 {
		sizeDelta = -sizeDelta
	}
	if sizeDelta > th.CountSlack {
		return Rebuild
	}
	if math.Abs(newDistance-previousDistance) > th.DistanceSlack {
		return Rebuild
	}
	if previous[0].ID != candidate[0].ID {
		return Rebuild
	}

	built := make(map[string]struct{}, len(previous))
	for _, p := range previous {
		built[p.ID] = struct{}{}
	}
	for _, p := range candidate {
		if _, ok := built[p.ID]; !ok {
			return Rebuild
		}
	}

	if newDistance == previousDistance && sameIDs(previous, candidate) {
		return NoChange
	}
	return Patch
}

func sameIDs(a, b []cluster.GeoPoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
