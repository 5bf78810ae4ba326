package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"web/communityglobe/cluster"
	"web/communityglobe/lod"
	"web/communityglobe/roster"
	"web/communityglobe/viewport"
)

var (
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile  = flag.String("memprofile", "", "write memory profile to file")
	heapprofile = flag.String("heapprofile", "", "write heap profile to file")
	numRows     = flag.Int("rows", 100000, "number of roster rows to generate")
	distance    = flag.Float64("distance", 100, "camera distance to profile")
	policy      = flag.String("policy", string(cluster.PolicyHomeRegion), "clustering policy (home-region or everywhere)")
	snapshot    = flag.Bool("snapshot", false, "also time a snapshot save and load")
	testall     = flag.Bool("testall", false, "test all configurations")
)

type stage struct {
	name     string
	duration time.Duration
}

func timed(stages *[]stage, name string, fn func()) {
	start := time.Now()
	fn()
	*stages = append(*stages, stage{name: name, duration: time.Since(start)})
}

func runSingleProfile(rows int, dist float64, p cluster.Policy) {
	fmt.Printf("Profiling with %d rows at distance %.0f (%s)\n", rows, dist, p)

	var memStatsBefore, memStatsAfter runtime.MemStats
	runtime.ReadMemStats(&memStatsBefore)

	var stages []stage
	var raw []roster.RawRow
	var attendees []roster.Attendee
	var points, visible []cluster.GeoPoint

	timed(&stages, "generate", func() { raw = roster.GenerateRows(rows, 42) })
	timed(&stages, "normalize", func() { attendees = roster.NewNormalizer().Normalize(raw) })

	engine := cluster.NewEngine(cluster.Options{Policy: p, Seed: 42}, nil, nil)
	timed(&stages, "cluster", func() { points = engine.Cluster(attendees) })

	selector, err := lod.NewSelector(lod.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not create selector: %v\n", err)
		return
	}
	timed(&stages, "select", func() { visible = selector.Select(points, dist, lod.Filters{}) })
	timed(&stages, "decide", func() {
		viewport.Decide(visible, selector.Select(points, dist+5, lod.Filters{}), dist, dist+5, viewport.DefaultThresholds())
	})

	if *snapshot {
		dir, err := os.MkdirTemp("", "globe-profile")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create temp dir: %v\n", err)
			return
		}
		defer os.RemoveAll(dir)

		snap := cluster.NewSnapshot(engine, points)
		path := cluster.SnapshotFilename(dir, snap)
		timed(&stages, "snapshot save", func() {
			if err := cluster.SaveSnapshot(path, snap); err != nil {
				fmt.Fprintf(os.Stderr, "Could not save snapshot: %v\n", err)
			}
		})
		timed(&stages, "snapshot load", func() {
			if _, err := cluster.LoadSnapshot(path); err != nil {
				fmt.Fprintf(os.Stderr, "Could not load snapshot: %v\n", err)
			}
		})
		if fi, err := os.Stat(path); err == nil {
			fmt.Printf("Snapshot file size: %s\n", formatFileSize(fi.Size()))
		}
	}

	runtime.ReadMemStats(&memStatsAfter)
	allocMB := float64(memStatsAfter.TotalAlloc-memStatsBefore.TotalAlloc) / 1024 / 1024

	for _, s := range stages {
		fmt.Printf("  %-14s %v\n", s.name, s.duration)
	}
	fmt.Printf("Attendees: %d, points: %d, visible: %d\n", len(attendees), len(points), len(visible))
	fmt.Printf("Memory allocated: %.2f MB\n", allocMB)
	fmt.Printf("Memory usage: %.2f MB\n", float64(memStatsAfter.Alloc)/1024/1024)
}

func runProfileBattery() {
	rowCounts := []int{1000, 10000, 50000, 100000}
	distances := []float64{40, 100, 150, 300, 500}
	policies := []cluster.Policy{cluster.PolicyHomeRegion, cluster.PolicyEverywhere}

	fmt.Println("Running comprehensive profile battery...")
	fmt.Println("=======================================")

	fmt.Printf("%-10s | %-12s | %-10s | %-15s | %-15s | %-8s | %-10s\n",
		"Rows", "Policy", "Distance", "Cluster", "Select", "Visible", "Memory (MB)")
	fmt.Printf("%s\n", "------------------------------------------------------------------------------------------")

	selector, err := lod.NewSelector(lod.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not create selector: %v\n", err)
		return
	}

	for _, rows := range rowCounts {
		attendees := roster.NewNormalizer().Normalize(roster.GenerateRows(rows, 42))
		for _, p := range policies {
			for _, dist := range distances {
				var memStatsBefore, memStatsAfter runtime.MemStats
				runtime.ReadMemStats(&memStatsBefore)

				engine := cluster.NewEngine(cluster.Options{Policy: p, Seed: 42}, nil, nil)
				start := time.Now()
				points := engine.Cluster(attendees)
				clusterDuration := time.Since(start)

				start = time.Now()
				visible := selector.Select(points, dist, lod.Filters{})
				selectDuration := time.Since(start)

				runtime.ReadMemStats(&memStatsAfter)
				memMB := float64(memStatsAfter.TotalAlloc-memStatsBefore.TotalAlloc) / 1024 / 1024

				fmt.Printf("%-10d | %-12s | %-10.0f | %-15s | %-15s | %-8d | %-10.2f\n",
					rows, p, dist, clusterDuration, selectDuration, len(visible), memMB)
			}
		}

		fmt.Printf("%s\n", "------------------------------------------------------------------------------------------")
	}
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func main() {
	flag.Parse()

	// Set up CPU profiling if requested
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			return
		}
		defer f.Close()

		fmt.Println("Starting CPU profiling...")
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			return
		}
		defer pprof.StopCPUProfile()
	}

	if *testall {
		runProfileBattery()
	} else {
		runSingleProfile(*numRows, *distance, cluster.Policy(*policy))
	}

	// Write memory profile if requested
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create memory profile: %v\n", err)
			return
		}
		defer f.Close()
		runtime.GC() // Get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write memory profile: %v\n", err)
		}
	}

	// Write heap profile if requested
	if *heapprofile != "" {
		f, err := os.Create(*heapprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create heap profile: %v\n", err)
			return
		}
		defer f.Close()

		memProfile := pprof.Lookup("heap")
		if memProfile == nil {
			fmt.Fprintf(os.Stderr, "Could not find heap profile\n")
			return
		}

		if err := memProfile.WriteTo(f, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write heap profile: %v\n", err)
		}
	}
}
