package cluster

import (
	"errors"
	"math"
	"testing"
)

func TestComputeStatistics(t *testing.T) {
	attendees := sampleAttendees()
	points := NewEngine(Options{Seed: 42}, nil, nil).Cluster(attendees)

	stats := ComputeStatistics(attendees, points)
	if stats.Total != 10 || stats.TotalClusters != 7 {
		t.Errorf("Expected 10 attendees and 7 points, got %d and %d", stats.Total, stats.TotalClusters)
	}
	if stats.ByIndustry["Technology"] != 4 || stats.ByIndustry["Finance"] != 3 {
		t.Errorf("Unexpected industry counts %v", stats.ByIndustry)
	}
	if stats.ByCountry["USA"] != 8 {
		t.Errorf("Expected 8 USA attendees, got %d", stats.ByCountry["USA"])
	}

	if stats.TopIndustries[0] != (CategoryCount{Name: "Technology", Count: 4}) {
		t.Errorf("Expected Technology to lead, got %+v", stats.TopIndustries[0])
	}
	// Engineering(3) then Leadership(2); remaining ties by name.
	if stats.TopRoles[0].Name != "Engineering" || stats.TopRoles[1].Name != "Leadership" || stats.TopRoles[2].Name != "Design" {
		t.Errorf("Unexpected role ranking %+v", stats.TopRoles)
	}

	if math.Abs(stats.Performance.CompressionRatio-30) > 1e-9 {
		t.Errorf("Expected 30%% compression, got %f", stats.Performance.CompressionRatio)
	}
	if stats.Performance.OriginalPoints != 10 || stats.Performance.RenderPoints != 7 {
		t.Errorf("Unexpected performance %+v", stats.Performance)
	}
}

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := ComputeStatistics(nil, nil)
	if stats.Total != 0 || stats.Performance.CompressionRatio != 0 {
		t.Errorf("Expected zero statistics, got %+v", stats)
	}
	if len(stats.TopCountries) != 0 {
		t.Errorf("Expected no top countries, got %v", stats.TopCountries)
	}
}

func TestTopTruncatesToTen(t *testing.T) {
	counts := make(map[string]int)
	for i := 0; i < 15; i++ {
		counts[string(rune('a'+i))] = i
	}
	ranked := top(counts, topN)
	if len(ranked) != 10 {
		t.Fatalf("Expected 10 entries, got %d", len(ranked))
	}
	if ranked[0].Name != "o" || ranked[9].Name != "f" {
		t.Errorf("Unexpected ranking %+v", ranked)
	}
}

func TestSummarize(t *testing.T) {
	points := NewEngine(Options{Seed: 42}, nil, nil).Cluster(sampleAttendees())
	summary := Summarize(points)

	if summary.TotalMembers != 10 {
		t.Errorf("Expected 10 members, got %d", summary.TotalMembers)
	}
	if summary.NumClusters != 2 || summary.NumSinglePoints != 5 {
		t.Errorf("Expected 2 clusters and 5 single points, got %d and %d", summary.NumClusters, summary.NumSinglePoints)
	}
	if summary.MostCommonRole != "Engineering" {
		t.Errorf("Expected Engineering, got %q", summary.MostCommonRole)
	}
	if math.Abs(summary.IndustryDistribution["Technology"]-40) > 1e-9 {
		t.Errorf("Expected Technology at 40%%, got %f", summary.IndustryDistribution["Technology"])
	}
}

func TestPointDetails(t *testing.T) {
	points := NewEngine(Options{Seed: 42}, nil, nil).Cluster(sampleAttendees())

	d, err := PointDetails(points, "cluster_0", 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !d.IsCluster || d.MemberCount != 3 || d.Location != "Honolulu, HI, USA" {
		t.Errorf("Unexpected details %+v", d)
	}
	if d.Breakdown.ByIndustry["Technology"] != 2 || d.Breakdown.ByRole["Sales"] != 1 {
		t.Errorf("Unexpected breakdown %+v", d.Breakdown)
	}
	if len(d.TopMembers) != 2 || d.TopMembers[0].ID != 0 {
		t.Errorf("Expected first 2 members, got %+v", d.TopMembers)
	}
	if d.Member != nil {
		t.Error("Expected no single member on a cluster")
	}

	single, err := PointDetails(points, "point_6", 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if single.IsCluster || single.Member == nil || single.Member.ID != 6 {
		t.Errorf("Expected the single member, got %+v", single)
	}
	if single.Breakdown != nil {
		t.Error("Expected no breakdown for an individual point")
	}

	if _, err := PointDetails(points, "cluster_42", 0); !errors.Is(err, ErrPointNotFound) {
		t.Errorf("Expected ErrPointNotFound, got %v", err)
	}
}
