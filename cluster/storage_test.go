package cluster

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestCoordinateCachePutKeepsFirstValue(t *testing.T) {
	cache := NewCoordinateCache()
	first := CachedLocation{Coordinates: Coordinates{Lat: 1, Lng: 2}, Located: true}

	if got := cache.Put("a|b|c", first); got != first {
		t.Errorf("Expected %v, got %v", first, got)
	}
	if got := cache.Put("a|b|c", CachedLocation{}); got != first {
		t.Errorf("Expected first value to win, got %v", got)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", cache.Len())
	}
}

func TestCoordinateCacheMMapRoundTrip(t *testing.T) {
	engine := NewEngine(Options{Seed: 7}, nil, nil)
	engine.Cluster(sampleAttendees())
	cache := engine.Cache()

	path := filepath.Join(t.TempDir(), "coords.bin")
	if err := cache.SaveMMap(path); err != nil {
		t.Fatalf("Failed to save cache: %v", err)
	}

	loaded, err := LoadCoordinateCache(path)
	if err != nil {
		t.Fatalf("Failed to load cache: %v", err)
	}
	if !reflect.DeepEqual(loaded.Keys(), cache.Keys()) {
		t.Fatalf("Expected keys %v, got %v", cache.Keys(), loaded.Keys())
	}
	for _, k := range cache.Keys() {
		want, _ := cache.Get(k)
		got, _ := loaded.Get(k)
		if got != want {
			t.Errorf("Key %s: expected %v, got %v", k, want, got)
		}
	}

	// A new engine sharing the loaded cache reproduces the same positions
	// even with a different seed.
	a := engine.Cluster(sampleAttendees())
	b := NewEngine(Options{Seed: 99}, loaded, nil).Cluster(sampleAttendees())
	for i := range a {
		if a[i].Coordinates != b[i].Coordinates {
			t.Errorf("Point %s: expected %v, got %v", a[i].ID, a[i].Coordinates, b[i].Coordinates)
		}
	}
}

func TestLoadCoordinateCacheMissingAndTruncated(t *testing.T) {
	dir := t.TempDir()

	cache, err := LoadCoordinateCache(filepath.Join(dir, "missing.bin"))
	if err != nil || cache.Len() != 0 {
		t.Errorf("Expected empty cache for missing file, got %d entries, err %v", cache.Len(), err)
	}

	truncated := filepath.Join(dir, "truncated.bin")
	if err := os.WriteFile(truncated, []byte{5, 0, 0, 0, 3, 0}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCoordinateCache(truncated); err == nil {
		t.Error("Expected error for truncated file")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	engine := NewEngine(Options{Seed: 42, Log: false}, nil, nil)
	points := engine.Cluster(sampleAttendees())
	points, err := engine.Expand(points, "cluster_1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	snap := NewSnapshot(engine, points)
	dir := t.TempDir()
	path := SnapshotFilename(dir, snap)
	if !strings.HasSuffix(path, "-"+snap.ID+".zst") {
		t.Errorf("Unexpected snapshot filename %s", path)
	}

	if err := SaveSnapshot(path, snap); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if loaded.ID != snap.ID || !loaded.Created.Equal(snap.Created) {
		t.Errorf("Expected id %s at %v, got %s at %v", snap.ID, snap.Created, loaded.ID, loaded.Created)
	}
	if loaded.Options != snap.Options {
		t.Errorf("Expected options %+v, got %+v", snap.Options, loaded.Options)
	}
	if !reflect.DeepEqual(loaded.Pinned, []string{"Kailua|HI|USA"}) {
		t.Errorf("Unexpected pinned keys %v", loaded.Pinned)
	}
	if !reflect.DeepEqual(loaded.Points, snap.Points) {
		t.Error("Expected points to survive the round trip unchanged")
	}

	infos, err := ListSnapshots(dir)
	if err != nil {
		t.Fatalf("Failed to list snapshots: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != snap.ID || infos[0].NumPoints != len(points) {
		t.Errorf("Unexpected listing %+v", infos)
	}

	found, err := FindSnapshot(dir, snap.ID)
	if err != nil || found != path {
		t.Errorf("Expected %s, got %s (%v)", path, found, err)
	}
	if _, err := FindSnapshot(dir, "deadbeef"); err == nil {
		t.Error("Expected error for unknown snapshot id")
	}
}

func TestLoadSnapshotRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zst")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Error("Expected error for invalid snapshot")
	}
}

func TestListSnapshotsMissingDir(t *testing.T) {
	infos, err := ListSnapshots(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(infos) != 0 {
		t.Errorf("Expected empty listing, got %v (%v)", infos, err)
	}
}
