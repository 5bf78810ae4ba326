package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"web/communityglobe/cluster"
	"web/communityglobe/config"
	"web/communityglobe/lod"
	"web/communityglobe/roster"
	"web/communityglobe/viewport"
)

// frameCounter is the runner's renderer. Frames are served from the
// controller's rendered set, so it only keeps counts for diagnostics.
type frameCounter struct {
	rebuilds int
	patches  int
}

func (f *frameCounter) Rebuild(points []cluster.GeoPoint, distance float64) {
	f.rebuilds++
}

func (f *frameCounter) Patch(visible map[string]bool, scales map[string]float64, distance float64) {
	f.patches++
}

// Session is one loaded roster with its own view state. All operations on a
// session run one at a time in arrival order.
type Session struct {
	ID      string
	Created time.Time

	mu         sync.Mutex
	lastAccess time.Time
	attendees  []roster.Attendee
	options    roster.FilterOptions
	engine     *cluster.Engine
	selector   *lod.Selector
	controller *viewport.Controller
	frames     *frameCounter
	cfg        *config.Config
}

// LoadSession reads the roster named by req, clusters it and renders the
// first frame. Nothing is returned unless every stage succeeded.
func LoadSession(ctx context.Context, req *LoadRosterRequest, cfg *config.Config, cache *cluster.CoordinateCache) (*Session, error) {
	start := time.Now()

	if req.SnapshotID != "" {
		return restoreSession(ctx, req.SnapshotID, cfg, cache)
	}

	rows, err := readRows(req, cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalizer := roster.NewNormalizer()
	normalizer.Log = cfg.Log
	attendees := normalizer.Normalize(rows)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine := cluster.NewEngine(cfg.ClusterOptions(), cache, nil)
	points := engine.Cluster(attendees)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := newSession(attendees, normalizer.FilterOptions(), engine, points, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Log {
		log.Printf("runner: loaded session %s: %d rows, %d attendees, %d points in %v",
			s.ID, len(rows), len(attendees), len(points), time.Since(start))
	}
	return s, nil
}

// readRows only opens the configured roster path as given. Any other path
// is resolved inside the roster directory.
func readRows(req *LoadRosterRequest, cfg *config.Config) ([]roster.RawRow, error) {
	switch {
	case req.CSV != "":
		return roster.ReadCSV(strings.NewReader(req.CSV))
	case req.Path != "" && req.Path == cfg.Data.RosterPath:
		return roster.ReadCSVFile(req.Path)
	case req.Path != "":
		return roster.ReadCSVFileIn(cfg.Data.RosterDir, req.Path)
	case req.Generate > 0:
		return roster.GenerateRows(req.Generate, req.Seed), nil
	}
	return nil, &roster.DataLoadError{Err: errors.New("no roster source given")}
}

func restoreSession(ctx context.Context, id string, cfg *config.Config, cache *cluster.CoordinateCache) (*Session, error) {
	path, err := cluster.FindSnapshot(cfg.Data.SnapshotDir, id)
	if err != nil {
		return nil, &roster.DataLoadError{Source: id, Err: err}
	}
	snap, err := cluster.LoadSnapshot(path)
	if err != nil {
		return nil, &roster.DataLoadError{Source: path, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := snap.Options
	options.Log = cfg.Log
	engine := cluster.NewEngine(options, cache, nil)
	engine.Pin(snap.Pinned...)

	var attendees []roster.Attendee
	for _, p := range snap.Points {
		attendees = append(attendees, p.Members...)
	}
	sort.Slice(attendees, func(i, j int) bool { return attendees[i].ID < attendees[j].ID })

	return newSession(attendees, roster.CollectFilterOptions(attendees), engine, snap.Points, cfg)
}

func newSession(attendees []roster.Attendee, options roster.FilterOptions, engine *cluster.Engine, points []cluster.GeoPoint, cfg *config.Config) (*Session, error) {
	selector, err := lod.NewSelector(cfg.LODOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create selector: %w", err)
	}

	frames := &frameCounter{}
	now := time.Now()
	s := &Session{
		ID:         uuid.New().String(),
		Created:    now,
		lastAccess: now,
		attendees:  attendees,
		options:    options,
		engine:     engine,
		selector:   selector,
		controller: viewport.NewController(points, engine, selector, frames, cfg.ViewportOptions()),
		frames:     frames,
		cfg:        cfg,
	}
	s.controller.Refresh()
	return s, nil
}

func (s *Session) touch() {
	s.lastAccess = time.Now()
}

// LastAccess reports when the session last handled a request.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info()
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:         s.ID,
		Attendees:  len(s.attendees),
		Points:     len(s.controller.Points()),
		Rendered:   len(s.controller.Rendered()),
		Distance:   s.controller.Distance(),
		Pinned:     s.engine.Pinned(),
		Rebuilds:   s.frames.rebuilds,
		Patches:    s.frames.patches,
		Created:    s.Created,
		LastAccess: s.lastAccess,
	}
}

// Select moves the camera, applying filters first when given. A zero
// distance keeps the current one.
func (s *Session) Select(distance float64, filters *lod.Filters) (Frame, error) {
	if distance != 0 && !viewport.ValidDistance(distance) {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidDistance, distance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if distance == 0 {
		distance = s.controller.Distance()
	}
	decision := viewport.NoChange
	if filters != nil {
		f, err := normalizeFilters(*filters)
		if err != nil {
			return Frame{}, err
		}
		decision = maxDecision(decision, s.controller.SetFilters(f))
	}
	decision = maxDecision(decision, s.controller.OnCameraChange(distance))
	return s.frame(decision), nil
}

func (s *Session) SetFilters(filters lod.Filters) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	f, err := normalizeFilters(filters)
	if err != nil {
		return Frame{}, err
	}
	return s.frame(s.controller.SetFilters(f)), nil
}

func (s *Session) Expand(pointID string) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	decision, err := s.controller.Expand(pointID)
	if err != nil {
		return Frame{}, err
	}
	return s.frame(decision), nil
}

func (s *Session) Details(pointID string) (cluster.Details, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return cluster.PointDetails(s.controller.Points(), pointID, 0)
}

func (s *Session) Statistics() cluster.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	stats := cluster.ComputeStatistics(s.attendees, s.controller.Points())
	stats.Performance.CacheEntries = s.engine.Cache().Len()
	stats.Performance.MaxRenderPoints = s.selector.Options().MaxRenderPoints
	stats.Performance.AdaptiveDetail = s.selector.Options().Adaptive
	return stats
}

func (s *Session) FilterOptions() roster.FilterOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.options
}

// SaveSnapshot writes the current clustering pass, expansions included, to dir.
func (s *Session) SaveSnapshot(dir string) (cluster.SnapshotInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	snap := cluster.NewSnapshot(s.engine, s.controller.Points())
	path := cluster.SnapshotFilename(dir, snap)
	if err := cluster.SaveSnapshot(path, snap); err != nil {
		return cluster.SnapshotInfo{}, fmt.Errorf("failed to save snapshot: %w", err)
	}

	info := cluster.SnapshotInfo{
		ID:        snap.ID,
		Path:      path,
		NumPoints: len(snap.Points),
		Modified:  snap.Created,
	}
	if size, err := fileSize(path); err == nil {
		info.FileSize = size
	}
	return info, nil
}

// Frame returns the current view without changing it.
func (s *Session) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame(viewport.NoChange)
}

func (s *Session) frame(decision viewport.Decision) Frame {
	distance := s.controller.Distance()
	points := s.controller.Rendered()
	band := s.selector.Band(distance)

	tiers := make(map[string]string, len(points))
	for _, p := range points {
		tiers[p.ID] = viewport.Tier(p)
	}
	minMembers := band.MinMembers
	if !s.selector.Options().Adaptive {
		minMembers = 1
	}

	return Frame{
		SessionID:  s.ID,
		Decision:   decision,
		Distance:   distance,
		Band:       band.Name,
		MinMembers: minMembers,
		Filters:    s.controller.Filters(),
		Points:     points,
		Scales:     viewport.Scales(points, distance),
		Tiers:      tiers,
		Summary:    cluster.Summarize(points),
	}
}

func normalizeFilters(f lod.Filters) (lod.Filters, error) {
	region, err := lod.ParseRegion(string(f.Region))
	if err != nil {
		return lod.Filters{}, fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}
	f.Region = region
	return f, nil
}

func maxDecision(a, b viewport.Decision) viewport.Decision {
	if b > a {
		return b
	}
	return a
}
