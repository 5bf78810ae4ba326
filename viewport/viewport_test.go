package viewport

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"web/communityglobe/cluster"
	"web/communityglobe/lod"
	"web/communityglobe/roster"
)

func individuals(n int) []cluster.GeoPoint {
	points := make([]cluster.GeoPoint, n)
	for i := range points {
		points[i] = cluster.GeoPoint{ID: fmt.Sprintf("point_%d", i), MemberCount: 1}
	}
	return points
}

func TestDecideRebuildOrPatch(t *testing.T) {
	th := DefaultThresholds()
	rendered := individuals(500)

	if got := Decide(rendered, rendered, 100, 105, th); got != Patch {
		t.Errorf("Expected patch for a small camera move, got %s", got)
	}
	if got := Decide(rendered, rendered, 100, 140, th); got != Rebuild {
		t.Errorf("Expected rebuild for a large camera move, got %s", got)
	}
}

func TestDecide(t *testing.T) {
	th := DefaultThresholds()
	base := individuals(50)

	reordered := individuals(50)
	reordered[0], reordered[1] = reordered[1], reordered[0]

	fewer := base[:45]
	muchFewer := base[:30]

	withNew := individuals(50)
	withNew[10] = cluster.GeoPoint{ID: "expanded_3", MemberCount: 1}

	tests := []struct {
		name                string
		previous, candidate []cluster.GeoPoint
		prevDist, newDist   float64
		want                Decision
	}{
		{"both empty", nil, nil, 100, 300, NoChange},
		{"nothing built yet", nil, base, 100, 100, Rebuild},
		{"everything filtered out", base, nil, 100, 100, Rebuild},
		{"identical", base, base, 100, 100, NoChange},
		{"same ids new distance", base, base, 100, 119, Patch},
		{"distance slack boundary", base, base, 100, 120, Patch},
		{"distance beyond slack", base, base, 100, 120.5, Rebuild},
		{"small shrink", base, fewer, 100, 100, Patch},
		{"large shrink", base, muchFewer, 100, 100, Rebuild},
		{"first id changed", base, reordered, 100, 100, Rebuild},
		{"unbuilt id", base, withNew, 100, 100, Rebuild},
	}
	for _, tt := range tests {
		if got := Decide(tt.previous, tt.candidate, tt.prevDist, tt.newDist, th); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}

func TestScaleAndTier(t *testing.T) {
	single := cluster.GeoPoint{MemberCount: 1}
	small := cluster.GeoPoint{IsCluster: true, MemberCount: 4}
	large := cluster.GeoPoint{IsCluster: true, MemberCount: 100}

	tests := []struct {
		p        cluster.GeoPoint
		distance float64
		tier     string
		scale    float64
	}{
		{single, 100, TierPoint, 1.0},
		{single, 250, TierPoint, 1.5},
		{single, 50, TierPoint, 0.8},
		{small, 100, TierCluster, 1.6},
		{large, 100, TierLargeCluster, 3.5},
		{cluster.GeoPoint{IsCluster: true, MemberCount: 20}, 100, TierLargeCluster, 2.5},
	}
	for _, tt := range tests {
		if got := Tier(tt.p); got != tt.tier {
			t.Errorf("Tier(%d members) = %s, expected %s", tt.p.MemberCount, got, tt.tier)
		}
		if got := Scale(tt.p, tt.distance); math.Abs(got-tt.scale) > 1e-9 {
			t.Errorf("Scale(%d members, %g) = %f, expected %f", tt.p.MemberCount, tt.distance, got, tt.scale)
		}
	}
}

type recorder struct {
	rebuilds int
	patches  int
	frame    []cluster.GeoPoint
	visible  map[string]bool
	scales   map[string]float64
	panicOn  bool
	state    func() State
	seen     State
}

func (r *recorder) Rebuild(points []cluster.GeoPoint, distance float64) {
	if r.panicOn {
		panic("renderer exploded")
	}
	if r.state != nil {
		r.seen = r.state()
	}
	r.rebuilds++
	r.frame = points
}

func (r *recorder) Patch(visible map[string]bool, scales map[string]float64, distance float64) {
	r.patches++
	r.visible = visible
	r.scales = scales
}

func attendeesAt(city string, n, startID int) []roster.Attendee {
	out := make([]roster.Attendee, n)
	for i := range out {
		out[i] = roster.Attendee{
			ID: startID + i, Role: "Engineer", City: city, State: "HI", Country: "USA",
			Industry: "Software", IndustryCategory: "Technology", RoleGroup: "Engineering",
			FullLocation: city + ", HI, USA",
		}
	}
	return out
}

func newTestController(t *testing.T, r *recorder) *Controller {
	t.Helper()
	var attendees []roster.Attendee
	attendees = append(attendees, attendeesAt("Honolulu", 5, 0)...)
	attendees = append(attendees, attendeesAt("Hilo", 3, 5)...)
	attendees = append(attendees, attendeesAt("Lihue", 1, 8)...)

	engine := cluster.NewEngine(cluster.Options{Seed: 42}, nil, nil)
	selector, err := lod.NewSelector(lod.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return NewController(engine.Cluster(attendees), engine, selector, r, Options{})
}

func TestControllerFirstEventRebuilds(t *testing.T) {
	r := &recorder{}
	c := newTestController(t, r)

	if got := c.OnCameraChange(100); got != Rebuild {
		t.Fatalf("Expected first event to rebuild, got %s", got)
	}
	if r.rebuilds != 1 || len(r.frame) != 3 {
		t.Errorf("Expected one rebuild of 3 points, got %d rebuilds and %d points", r.rebuilds, len(r.frame))
	}
	if got := c.OnCameraChange(100); got != NoChange {
		t.Errorf("Expected repeated tick to be a no-op, got %s", got)
	}
	if c.State() != Idle {
		t.Errorf("Expected idle after evaluation, got %s", c.State())
	}
}

func TestControllerIgnoresInvalidDistance(t *testing.T) {
	r := &recorder{}
	c := newTestController(t, r)
	c.OnCameraChange(100)

	for _, d := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0, -5} {
		if got := c.OnCameraChange(d); got != NoChange {
			t.Errorf("Distance %v: expected no change, got %s", d, got)
		}
		if c.Distance() != 100 {
			t.Errorf("Distance %v: expected distance to stay 100, got %v", d, c.Distance())
		}
	}
	if r.rebuilds != 1 || r.patches != 0 {
		t.Errorf("Expected only the initial rebuild, got %d rebuilds and %d patches", r.rebuilds, r.patches)
	}

	// The distance slack still applies after the dropped ticks.
	if got := c.OnCameraChange(130); got != Rebuild {
		t.Errorf("Expected rebuild past distance slack, got %s", got)
	}
}

func TestControllerPatchesWithinSlack(t *testing.T) {
	r := &recorder{}
	c := newTestController(t, r)
	c.OnCameraChange(90)

	// Band "mid" hides nothing here; only the distance moved.
	if got := c.OnCameraChange(105); got != Patch {
		t.Fatalf("Expected patch, got %s", got)
	}
	if r.patches != 1 || len(r.visible) != 3 {
		t.Errorf("Expected a patch over 3 objects, got %d patches, %v", r.patches, r.visible)
	}

	// At 160 the far band needs 5 members: Hilo's cluster is hidden.
	if got := c.OnCameraChange(160); got != Rebuild {
		t.Fatalf("Expected rebuild past distance slack, got %s", got)
	}
	if got := c.OnCameraChange(175); got != Patch {
		t.Fatalf("Expected patch, got %s", got)
	}
	if got := len(c.Rendered()); got != 2 {
		t.Errorf("Expected 2 visible points, got %d", got)
	}
}

func TestControllerFilters(t *testing.T) {
	r := &recorder{}
	c := newTestController(t, r)
	c.OnCameraChange(100)

	if got := c.SetFilters(lod.Filters{Industries: []string{"Healthcare"}}); got != Rebuild {
		t.Errorf("Expected emptying filter to rebuild, got %s", got)
	}
	if len(c.Rendered()) != 0 {
		t.Errorf("Expected nothing visible, got %d", len(c.Rendered()))
	}
	if got := c.SetFilters(lod.Filters{}); got != Rebuild {
		t.Errorf("Expected clearing filters to rebuild, got %s", got)
	}
}

func TestControllerExpansionIsIrreversible(t *testing.T) {
	r := &recorder{}
	c := newTestController(t, r)
	c.OnCameraChange(100)

	got, err := c.Expand("cluster_0")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != Rebuild {
		t.Errorf("Expected expansion to rebuild, got %s", got)
	}

	expanded := 0
	for _, p := range c.Points() {
		if p.Expanded {
			expanded++
		}
	}
	if expanded != 5 {
		t.Fatalf("Expected 5 expanded points, got %d", expanded)
	}

	for _, d := range []float64{10, 100, 200, 500, 5000, 50} {
		c.OnCameraChange(d)
		count := 0
		for _, p := range c.Rendered() {
			if p.LocationKey == "Honolulu|HI|USA" {
				if p.IsCluster {
					t.Fatalf("Distance %g: expanded location was re-merged", d)
				}
				count++
			}
		}
		if count != 5 {
			t.Errorf("Distance %g: expected 5 Honolulu points, got %d", d, count)
		}
	}

	if _, err := c.Expand("cluster_0"); !errors.Is(err, cluster.ErrPointNotFound) {
		t.Errorf("Expected ErrPointNotFound for an already expanded cluster, got %v", err)
	}
}

func TestControllerRecoversFromPanics(t *testing.T) {
	r := &recorder{panicOn: true}
	c := newTestController(t, r)

	if got := c.OnCameraChange(100); got != NoChange {
		t.Errorf("Expected NoChange after a panic, got %s", got)
	}
	if c.State() != Idle {
		t.Errorf("Expected idle after a panic, got %s", c.State())
	}

	r.panicOn = false
	if got := c.OnCameraChange(100); got != Rebuild {
		t.Errorf("Expected the next tick to rebuild, got %s", got)
	}
}

func TestControllerStateDuringRender(t *testing.T) {
	r := &recorder{}
	c := newTestController(t, r)
	r.state = c.State
	c.Refresh()
	if r.seen != Evaluating {
		t.Errorf("Expected evaluating during render, got %s", r.seen)
	}
}
