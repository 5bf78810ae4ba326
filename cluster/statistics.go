package cluster

import (
	"fmt"
	"sort"

	"web/communityglobe/roster"
)

const topN = 10

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Performance compares the raw roster with what a pass asks the renderer to draw.
type Performance struct {
	OriginalPoints   int     `json:"originalPoints"`
	RenderPoints     int     `json:"renderPoints"`
	CompressionRatio float64 `json:"compressionRatio"` // percent of points saved by clustering
	CacheEntries     int     `json:"cacheEntries"`
	MaxRenderPoints  int     `json:"maxRenderPoints"`
	AdaptiveDetail   bool    `json:"adaptiveDetail"`
}

type Statistics struct {
	Total         int             `json:"total"`
	TotalClusters int             `json:"totalClusters"`
	ByIndustry    map[string]int  `json:"byIndustry"`
	ByRole        map[string]int  `json:"byRole"`
	ByLocation    map[string]int  `json:"byLocation"`
	ByCountry     map[string]int  `json:"byCountry"`
	TopCountries  []CategoryCount `json:"topCountries"`
	TopIndustries []CategoryCount `json:"topIndustries"`
	TopRoles      []CategoryCount `json:"topRoles"`
	Performance   Performance     `json:"performance"`
}

// ComputeStatistics counts attendees by category and compares them with the
// points of a clustering pass. points may be nil when nothing was clustered.
func ComputeStatistics(attendees []roster.Attendee, points []GeoPoint) Statistics {
	stats := Statistics{
		Total:         len(attendees),
		TotalClusters: len(points),
		ByIndustry:    make(map[string]int),
		ByRole:        make(map[string]int),
		ByLocation:    make(map[string]int),
		ByCountry:     make(map[string]int),
	}

	for _, a := range attendees {
		stats.ByIndustry[a.IndustryCategory]++
		stats.ByRole[a.RoleGroup]++
		stats.ByLocation[a.FullLocation]++
		stats.ByCountry[a.Country]++
	}

	stats.TopCountries = top(stats.ByCountry, topN)
	stats.TopIndustries = top(stats.ByIndustry, topN)
	stats.TopRoles = top(stats.ByRole, topN)

	stats.Performance = Performance{
		OriginalPoints: len(attendees),
		RenderPoints:   len(points),
	}
	if len(attendees) > 0 {
		saved := float64(len(attendees)-len(points)) / float64(len(attendees)) * 100
		stats.Performance.CompressionRatio = saved
	}
	return stats
}

// top returns the n largest counts, ties broken by name.
func top(counts map[string]int, n int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, CategoryCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Summary is a compact view of a set of points, such as one rendered frame.
type Summary struct {
	TotalMembers         int                `json:"totalMembers"`
	NumClusters          int                `json:"numClusters"`
	NumSinglePoints      int                `json:"numSinglePoints"`
	IndustryDistribution map[string]float64 `json:"industryDistribution"`
	MostCommonRole       string             `json:"mostCommonRole"`
}

func Summarize(points []GeoPoint) Summary {
	summary := Summary{
		IndustryDistribution: make(map[string]float64),
	}
	if len(points) == 0 {
		return summary
	}

	industries := make(map[string]int)
	roles := make(map[string]int)
	for _, p := range points {
		if p.IsCluster {
			summary.NumClusters++
		} else {
			summary.NumSinglePoints++
		}
		summary.TotalMembers += p.MemberCount
		for _, m := range p.Members {
			industries[m.IndustryCategory]++
			roles[m.RoleGroup]++
		}
	}

	total := 0
	for _, count := range industries {
		total += count
	}
	for name, count := range industries {
		summary.IndustryDistribution[name] = float64(count) / float64(total) * 100
	}

	if ranked := top(roles, 1); len(ranked) > 0 {
		summary.MostCommonRole = ranked[0].Name
	}
	return summary
}

const defaultSampleSize = 5

// Breakdown counts the members of a point per category.
type Breakdown struct {
	ByIndustry map[string]int `json:"byIndustry"`
	ByRole     map[string]int `json:"byRole"`
}

// Details is what a tooltip or modal shows for one point.
type Details struct {
	ID          string            `json:"id"`
	IsCluster   bool              `json:"isCluster"`
	MemberCount int               `json:"memberCount"`
	Location    string            `json:"location"`
	Coordinates Coordinates       `json:"coordinates"`
	Industries  []string          `json:"industries"`
	Roles       []string          `json:"roles"`
	Breakdown   *Breakdown        `json:"breakdown,omitempty"`
	TopMembers  []roster.Attendee `json:"topMembers,omitempty"`
	Member      *roster.Attendee  `json:"member,omitempty"`
}

// PointDetails describes the point with the given id. Individual points carry
// their single member; clusters carry a per-category breakdown and the first
// sampleSize members (5 when sampleSize <= 0).
func PointDetails(points []GeoPoint, id string, sampleSize int) (Details, error) {
	idx := Find(points, id)
	if idx < 0 {
		return Details{}, fmt.Errorf("%w: %s", ErrPointNotFound, id)
	}
	p := points[idx]
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}

	d := Details{
		ID:          p.ID,
		IsCluster:   p.IsCluster,
		MemberCount: p.MemberCount,
		Location:    p.FullLocation,
		Coordinates: p.Coordinates,
		Industries:  p.Industries,
		Roles:       p.Roles,
	}

	if !p.IsCluster {
		member := p.Members[0]
		d.Member = &member
		return d, nil
	}

	d.Breakdown = &Breakdown{
		ByIndustry: make(map[string]int),
		ByRole:     make(map[string]int),
	}
	for _, m := range p.Members {
		d.Breakdown.ByIndustry[m.IndustryCategory]++
		d.Breakdown.ByRole[m.RoleGroup]++
	}

	n := min(sampleSize, len(p.Members))
	d.TopMembers = make([]roster.Attendee, n)
	copy(d.TopMembers, p.Members[:n])
	return d, nil
}
