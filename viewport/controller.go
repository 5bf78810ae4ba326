package viewport

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"web/communityglobe/cluster"
	"web/communityglobe/lod"
)

type State int

const (
	Idle State = iota
	Evaluating
)

func (s State) String() string {
	if s == Evaluating {
		return "evaluating"
	}
	return "idle"
}

// Renderer draws frames. Points passed to it are copies and must be treated
// as read-only. Apart from State, a Renderer must not call back into the
// Controller that drives it.
type Renderer interface {
	// Rebuild replaces the whole scene.
	Rebuild(points []cluster.GeoPoint, distance float64)
	// Patch toggles visibility of objects created by the last Rebuild and
	// rescales the visible ones.
	Patch(visible map[string]bool, scales map[string]float64, distance float64)
}

const DefaultDistance = 100.0

type Options struct {
	Thresholds      Thresholds
	InitialDistance float64
	Log             bool
}

// Controller owns the view state of one globe: the current clustering pass,
// camera distance, filters and what the renderer was last given. Events are
// handled synchronously in call order.
type Controller struct {
	engine   *cluster.Engine
	selector *lod.Selector
	renderer Renderer
	options  Options

	state atomic.Int32

	mu            sync.Mutex
	points        []cluster.GeoPoint
	filters       lod.Filters
	distance      float64
	built         []cluster.GeoPoint
	builtDistance float64
	visible       []cluster.GeoPoint
	last          Decision
}

// NewController does not render anything; the first event or Refresh does.
func NewController(points []cluster.GeoPoint, engine *cluster.Engine, selector *lod.Selector, renderer Renderer, options Options) *Controller {
	if options.Thresholds == (Thresholds{}) {
		options.Thresholds = DefaultThresholds()
	}
	if options.InitialDistance <= 0 {
		options.InitialDistance = DefaultDistance
	}

	return &Controller{
		engine:   engine,
		selector: selector,
		renderer: renderer,
		options:  options,
		points:   points,
		distance: options.InitialDistance,
	}
}

// OnCameraChange handles one camera tick. Ticks with a distance that is not a
// positive finite number are dropped.
func (c *Controller) OnCameraChange(distance float64) Decision {
	if !ValidDistance(distance) {
		return NoChange
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluate(distance, c.filters, false)
}

// SetFilters applies a new filter selection at the current distance.
func (c *Controller) SetFilters(filters lod.Filters) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluate(c.distance, filters, false)
}

// Refresh rebuilds the current view unconditionally.
func (c *Controller) Refresh() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluate(c.distance, c.filters, true)
}

// Expand drills into a cluster. The replacement points are permanent for
// this controller and the view is rebuilt.
func (c *Controller) Expand(id string) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	points, err := c.engine.Expand(c.points, id)
	if err != nil {
		return NoChange, err
	}
	c.points = points
	return c.evaluate(c.distance, c.filters, true), nil
}

// evaluate never lets a panic escape; a failed tick is reported as NoChange.
func (c *Controller) evaluate(distance float64, filters lod.Filters, force bool) (decision Decision) {
	c.state.Store(int32(Evaluating))
	defer func() {
		if r := recover(); r != nil {
			log.Printf("viewport: evaluation at distance %.1f failed: %v", distance, r)
			decision = NoChange
		}
		c.state.Store(int32(Idle))
		c.last = decision
	}()

	candidate := c.selector.Select(c.points, distance, filters)
	c.filters = filters

	if !force && distance == c.distance && sameIDs(c.visible, candidate) && c.built != nil {
		return NoChange
	}

	decision = Decide(c.built, candidate, c.builtDistance, distance, c.options.Thresholds)
	if force {
		decision = Rebuild
	}

	switch decision {
	case Rebuild:
		frame := make([]cluster.GeoPoint, len(candidate))
		copy(frame, candidate)
		c.renderer.Rebuild(frame, distance)
		c.built = candidate
		c.builtDistance = distance
	case Patch:
		visible := make(map[string]bool, len(c.built))
		for _, p := range c.built {
			visible[p.ID] = false
		}
		for _, p := range candidate {
			visible[p.ID] = true
		}
		c.renderer.Patch(visible, Scales(candidate, distance), distance)
	}

	if decision != NoChange {
		c.visible = candidate
	}
	c.distance = distance

	if c.options.Log {
		log.Printf("viewport: distance %.1f, %d candidates -> %s", distance, len(candidate), decision)
	}
	return decision
}

// State may be called from inside a Renderer callback.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Rendered returns a copy of the points currently shown.
func (c *Controller) Rendered() []cluster.GeoPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cluster.GeoPoint, len(c.visible))
	copy(out, c.visible)
	return out
}

// Points returns a copy of the current clustering pass, expansions included.
func (c *Controller) Points() []cluster.GeoPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cluster.GeoPoint, len(c.points))
	copy(out, c.points)
	return out
}

func (c *Controller) Filters() lod.Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

func (c *Controller) Distance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.distance
}

// LastDecision is the outcome of the most recent event.
func (c *Controller) LastDecision() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Controller) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("viewport(%s, distance=%.1f, built=%d, visible=%d)", c.State(), c.distance, len(c.built), len(c.visible))
}

// ValidDistance reports whether d can be used as a camera distance.
func ValidDistance(d float64) bool {
	return d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}
