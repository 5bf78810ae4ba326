package viewport

import (
	"math"

	"web/communityglobe/cluster"
)

// Rendering tiers.
const (
	TierPoint        = "point"
	TierCluster      = "cluster"
	TierLargeCluster = "large-cluster"
)

const smallClusterMax = 5

// Tier groups a point by how heavy its marker is.
func Tier(p cluster.GeoPoint) string {
	switch {
	case !p.IsCluster:
		return TierPoint
	case p.MemberCount <= smallClusterMax:
		return TierCluster
	default:
		return TierLargeCluster
	}
}

// Scale is the marker size for p at distance. Markers grow with member count
// and are enlarged when far away and shrunk when close.
func Scale(p cluster.GeoPoint, distance float64) float64 {
	n := float64(p.MemberCount)
	var scale float64
	switch Tier(p) {
	case TierPoint:
		scale = 1.0
	case TierCluster:
		scale = 1.2 + 0.1*n
	default:
		scale = 1.5 + math.Min(0.05*n, 2)
	}

	switch {
	case distance > 200:
		scale *= 1.5
	case distance < 80:
		scale *= 0.8
	}
	return scale
}

// Scales maps every point id to its Scale.
func Scales(points []cluster.GeoPoint, distance float64) map[string]float64 {
	out := make(map[string]float64, len(points))
	for _, p := range points {
		out[p.ID] = Scale(p, distance)
	}
	return out
}
