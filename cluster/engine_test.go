package cluster

import (
	"errors"
	"reflect"
	"testing"

	"web/communityglobe/roster"
)

func attendee(id int, city, state, country, industry, role string) roster.Attendee {
	a := roster.Attendee{
		ID:               id,
		Role:             role,
		City:             city,
		State:            state,
		Country:          country,
		Industry:         industry,
		IndustryCategory: industry,
		RoleGroup:        role,
	}
	a.FullLocation = city + ", " + state + ", " + country
	return a
}

func sampleAttendees() []roster.Attendee {
	return []roster.Attendee{
		attendee(0, "Honolulu", "HI", "USA", "Technology", "Engineering"),
		attendee(1, "Honolulu", "HI", "USA", "Finance", "Engineering"),
		attendee(2, "Honolulu", "HI", "USA", "Technology", "Sales"),
		attendee(3, "Hilo", "HI", "USA", "Education", "Student"),
		attendee(4, "Seattle", "WA", "USA", "Technology", "Engineering"),
		attendee(5, "Seattle", "WA", "USA", "Technology", "Design"),
		attendee(6, "Tokyo", "Unknown", "Japan", "Media", "Marketing"),
		attendee(7, "Atlantis", "Unknown", "Nowhere", "Other", "Other"),
		attendee(8, "Kailua", "HI", "USA", "Finance", "Leadership"),
		attendee(9, "Kailua", "HI", "USA", "Finance", "Leadership"),
	}
}

func TestClusterPartitionsAttendees(t *testing.T) {
	for _, policy := range []Policy{PolicyHomeRegion, PolicyEverywhere} {
		attendees := sampleAttendees()
		points := NewEngine(Options{Policy: policy, Seed: 42}, nil, nil).Cluster(attendees)

		seen := make(map[int]int)
		total := 0
		for _, p := range points {
			if p.MemberCount != len(p.Members) {
				t.Errorf("%s: point %s has MemberCount %d but %d members", policy, p.ID, p.MemberCount, len(p.Members))
			}
			for _, m := range p.Members {
				seen[m.ID]++
				total++
			}
		}
		if total != len(attendees) {
			t.Errorf("%s: expected %d members across points, got %d", policy, len(attendees), total)
		}
		for _, a := range attendees {
			if seen[a.ID] != 1 {
				t.Errorf("%s: expected attendee %d exactly once, got %d", policy, a.ID, seen[a.ID])
			}
		}
	}
}

func TestClusterHomeRegionPolicy(t *testing.T) {
	points := NewEngine(Options{Seed: 42}, nil, nil).Cluster(sampleAttendees())

	// Honolulu(3) and Kailua(2) cluster; Seattle stays individual.
	clusters := 0
	for _, p := range points {
		if p.IsCluster {
			clusters++
			if p.State != "HI" {
				t.Errorf("Expected only home-state clusters, got %s", p.FullLocation)
			}
		}
	}
	if clusters != 2 {
		t.Errorf("Expected 2 clusters, got %d", clusters)
	}
	if len(points) != 7 {
		t.Errorf("Expected 7 points, got %d", len(points))
	}

	if points[0].ID != "cluster_0" || points[0].MemberCount != 3 {
		t.Errorf("Expected the Honolulu cluster first, got %s with %d members", points[0].ID, points[0].MemberCount)
	}
	if points[0].Role != "3 members" {
		t.Errorf("Expected role label '3 members', got %q", points[0].Role)
	}
}

func TestClusterEverywherePolicy(t *testing.T) {
	points := NewEngine(Options{Policy: PolicyEverywhere, Seed: 42}, nil, nil).Cluster(sampleAttendees())

	clusters := 0
	for _, p := range points {
		if p.IsCluster {
			clusters++
		}
	}
	if clusters != 3 {
		t.Errorf("Expected 3 clusters, got %d", clusters)
	}
}

func TestClusterAggregatesLabels(t *testing.T) {
	points := NewEngine(Options{Seed: 42}, nil, nil).Cluster(sampleAttendees())

	honolulu := points[Find(points, "cluster_0")]
	if honolulu.IndustryCategory != Mixed || honolulu.RoleGroup != Mixed {
		t.Errorf("Expected Mixed labels, got %q/%q", honolulu.IndustryCategory, honolulu.RoleGroup)
	}
	if !reflect.DeepEqual(honolulu.Industries, []string{"Technology", "Finance"}) {
		t.Errorf("Expected first-seen industries, got %v", honolulu.Industries)
	}

	kailua := points[Find(points, "cluster_1")]
	if kailua.IndustryCategory != "Finance" || kailua.RoleGroup != "Leadership" {
		t.Errorf("Expected unanimous labels, got %q/%q", kailua.IndustryCategory, kailua.RoleGroup)
	}
}

func TestClusterCollectsMemberLocations(t *testing.T) {
	attendees := []roster.Attendee{
		attendee(0, "Unknown", "HI", "USA", "Technology", "Engineering"),
		attendee(1, "Unknown", "HI", "USA", "Technology", "Engineering"),
		attendee(2, "Unknown", "HI", "USA", "Finance", "Sales"),
	}
	attendees[1].FullLocation = "HI, USA"

	points := NewEngine(Options{Seed: 42}, nil, nil).Cluster(attendees)
	if len(points) != 1 {
		t.Fatalf("Expected 1 point, got %d", len(points))
	}
	if want := []string{"Unknown, HI, USA", "HI, USA"}; !reflect.DeepEqual(points[0].Locations, want) {
		t.Errorf("Expected locations %v, got %v", want, points[0].Locations)
	}

	single := NewEngine(Options{Seed: 42}, nil, nil).Cluster(attendees[:1])
	if want := []string{"Unknown, HI, USA"}; !reflect.DeepEqual(single[0].Locations, want) {
		t.Errorf("Expected locations %v, got %v", want, single[0].Locations)
	}
}

func TestClusterSortedByMemberCount(t *testing.T) {
	points := NewEngine(Options{Policy: PolicyEverywhere, Seed: 42}, nil, nil).Cluster(sampleAttendees())
	for i := 1; i < len(points); i++ {
		if points[i].MemberCount > points[i-1].MemberCount {
			t.Fatalf("Expected descending member counts, got %d after %d", points[i].MemberCount, points[i-1].MemberCount)
		}
	}
}

func TestClusterCoordinates(t *testing.T) {
	engine := NewEngine(Options{Seed: 42}, nil, nil)
	points := engine.Cluster(sampleAttendees())

	unknown := points[Find(points, "point_7")]
	if unknown.Located || unknown.Coordinates != UnknownCoordinates {
		t.Errorf("Expected unresolved location on the sentinel, got %+v located=%v", unknown.Coordinates, unknown.Located)
	}

	honolulu := points[Find(points, "cluster_0")]
	if !honolulu.Located {
		t.Fatal("Expected Honolulu to resolve")
	}
	if dLat := honolulu.Coordinates.Lat - 21.3099; dLat > 0.05 || dLat < -0.05 {
		t.Errorf("Expected jitter within 0.05 degrees, got lat offset %f", dLat)
	}

	// Both Seattle attendees share a key but are spread apart.
	a := points[Find(points, "point_4")]
	b := points[Find(points, "point_5")]
	if a.Coordinates == b.Coordinates {
		t.Error("Expected co-located individuals to be offset from each other")
	}

	again := engine.Cluster(sampleAttendees())
	if again[Find(again, "cluster_0")].Coordinates != honolulu.Coordinates {
		t.Error("Expected cached coordinates to be stable across passes")
	}

	fresh := NewEngine(Options{Seed: 42}, nil, nil).Cluster(sampleAttendees())
	if !reflect.DeepEqual(fresh, points) {
		t.Error("Expected identical output for the same seed")
	}
}

func TestExpand(t *testing.T) {
	engine := NewEngine(Options{Seed: 42}, nil, nil)
	points := engine.Cluster(sampleAttendees())
	before := len(points)

	expanded, err := engine.Expand(points, "cluster_0")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(expanded) != before+2 {
		t.Errorf("Expected %d points after expansion, got %d", before+2, len(expanded))
	}
	if len(points) != before || points[0].ID != "cluster_0" {
		t.Error("Expected input slice to be left untouched")
	}

	count := 0
	for _, p := range expanded {
		if p.Expanded {
			count++
			if p.IsCluster || p.MemberCount != 1 {
				t.Errorf("Expected individual expanded point, got %+v", p)
			}
		}
	}
	if count != 3 {
		t.Errorf("Expected 3 expanded points, got %d", count)
	}

	if !reflect.DeepEqual(engine.Pinned(), []string{"Honolulu|HI|USA"}) {
		t.Errorf("Unexpected pinned keys %v", engine.Pinned())
	}

	// A later pass keeps the location expanded.
	rerun := engine.Cluster(sampleAttendees())
	for _, p := range rerun {
		if p.LocationKey == "Honolulu|HI|USA" && (p.IsCluster || !p.Expanded) {
			t.Errorf("Expected Honolulu to stay expanded, got %s", p.ID)
		}
	}
	if Find(rerun, "expanded_0") < 0 {
		t.Error("Expected expanded ids to survive reclustering")
	}
}

func TestExpandErrors(t *testing.T) {
	engine := NewEngine(Options{Seed: 42}, nil, nil)
	points := engine.Cluster(sampleAttendees())

	if _, err := engine.Expand(points, "cluster_99"); !errors.Is(err, ErrPointNotFound) {
		t.Errorf("Expected ErrPointNotFound, got %v", err)
	}
	if _, err := engine.Expand(points, "point_4"); !errors.Is(err, ErrNotCluster) {
		t.Errorf("Expected ErrNotCluster, got %v", err)
	}
	if len(engine.Pinned()) != 0 {
		t.Error("Expected failed expansions to pin nothing")
	}
}

func TestGazetteerLookup(t *testing.T) {
	tests := []struct {
		city, state, country string
		want                 Coordinates
		ok                   bool
	}{
		{"Pearl City", "HI", "USA", Coordinates{Lat: 21.3891, Lng: -157.9750}, true},
		{"Waimea", "Hawaii", "USA", honolulu, true},
		{"Hilo", "HI", "Unknown", Coordinates{Lat: 19.7074, Lng: -155.0885}, true},
		{"Oakland", "California", "USA", Coordinates{Lat: 37.7749, Lng: -122.4194}, true},
		{"Sacramento", "CA", "", Coordinates{Lat: 37.7749, Lng: -122.4194}, true},
		{"Austin", "TX", "USA", Coordinates{Lat: 32.7767, Lng: -96.7970}, true},
		{"Boise", "ID", "USA", Coordinates{}, false},
		{"Tokyo", "Unknown", "Japan", Coordinates{Lat: 35.6762, Lng: 139.6503}, true},
		{"Lima", "Unknown", "Peru", Coordinates{}, false},
	}
	for _, tt := range tests {
		got, ok := DefaultGazetteer.Lookup(tt.city, tt.state, tt.country)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Lookup(%q, %q, %q) = %v, %v; expected %v, %v", tt.city, tt.state, tt.country, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClusterOtherHomeState(t *testing.T) {
	attendees := []roster.Attendee{
		attendee(0, "San Jose", "CA", "USA", "Technology", "Engineering"),
		attendee(1, "San Jose", "CA", "USA", "Finance", "Sales"),
		attendee(2, "Honolulu", "HI", "USA", "Technology", "Engineering"),
		attendee(3, "Honolulu", "HI", "USA", "Technology", "Design"),
	}
	engine := NewEngine(Options{HomeRegion: Region{State: "CA", Country: "USA"}, Seed: 42}, nil, nil)
	points := engine.Cluster(attendees)

	if len(points) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(points))
	}
	home := points[Find(points, "cluster_0")]
	if home.LocationKey != "San Jose|CA|USA" || !home.Located {
		t.Fatalf("Expected a located San Jose cluster, got %s located=%v", home.LocationKey, home.Located)
	}
	if dLat := home.Coordinates.Lat - 37.7749; dLat > 0.05 || dLat < -0.05 {
		t.Errorf("Expected latitude near 37.7749, got %f", home.Coordinates.Lat)
	}

	for _, p := range points {
		if p.State != "HI" {
			continue
		}
		if p.IsCluster || !p.Located {
			t.Errorf("Expected located individual Honolulu point, got %s located=%v", p.ID, p.Located)
		}
		if dLat := p.Coordinates.Lat - 21.3099; dLat > 0.1 || dLat < -0.1 {
			t.Errorf("Expected Honolulu latitude, got %f", p.Coordinates.Lat)
		}
	}
}

func TestRegion(t *testing.T) {
	home := Region{State: "HI", Country: "USA"}
	if !home.Contains("Hawaii", "United States") {
		t.Error("Expected full state name to match")
	}
	if !home.Contains("HI", "Unknown") {
		t.Error("Expected unknown country to match home state")
	}
	if home.Contains("HI", "Canada") {
		t.Error("Expected other country to be outside home region")
	}
	if !(Region{State: "California"}).Contains("CA", "USA") {
		t.Error("Expected state names and codes to match")
	}
	if !home.Domestic("usa") || home.Domestic("Japan") {
		t.Error("Unexpected Domestic result")
	}
}
