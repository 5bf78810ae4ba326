package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"web/communityglobe/cluster"
	"web/communityglobe/config"
	"web/communityglobe/roster"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidFilters  = errors.New("invalid filters")
	ErrInvalidDistance = errors.New("invalid distance")
)

// Runner keeps loaded sessions in memory. Beyond MaxSessions the least
// recently used session is dropped, and a janitor drops sessions idle for
// longer than IdleTimeout.
type Runner struct {
	cfg   *config.Config
	cache *cluster.CoordinateCache

	sessionLock sync.RWMutex
	sessions    map[string]*Session
	order       []string // load order

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRunner loads the coordinate cache named in cfg, if any, and starts the
// idle janitor. Call Close to stop it.
func NewRunner(cfg *config.Config) (*Runner, error) {
	cache := cluster.NewCoordinateCache()
	if cfg.Data.CoordinateCache != "" {
		loaded, err := cluster.LoadCoordinateCache(cfg.Data.CoordinateCache)
		if err != nil {
			return nil, fmt.Errorf("failed to load coordinate cache: %w", err)
		}
		cache = loaded
	}

	r := &Runner{
		cfg:      cfg,
		cache:    cache,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}

	r.wg.Add(1)
	go r.cleanupInactiveSessions()

	return r, nil
}

func (r *Runner) cleanupInactiveSessions() {
	defer r.wg.Done()

	interval := r.cfg.Runner.IdleTimeout / 6
	if interval <= 0 || interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.evictIdle(now)
		}
	}
}

// evictIdle drops sessions not touched within IdleTimeout of now.
func (r *Runner) evictIdle(now time.Time) int {
	r.sessionLock.Lock()
	defer r.sessionLock.Unlock()

	var toRemove []string
	for id, s := range r.sessions {
		if now.Sub(s.LastAccess()) > r.cfg.Runner.IdleTimeout {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		r.remove(id)
	}
	if len(toRemove) > 0 && r.cfg.Log {
		log.Printf("runner: evicted %d idle sessions", len(toRemove))
	}
	return len(toRemove)
}

// remove must be called with sessionLock held.
func (r *Runner) remove(id string) {
	delete(r.sessions, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Load creates a session and registers it, evicting the least recently used
// session when the runner is full.
func (r *Runner) Load(ctx context.Context, req *LoadRosterRequest) (*Session, error) {
	s, err := LoadSession(ctx, req, r.cfg, r.cache)
	if err != nil {
		return nil, err
	}

	r.sessionLock.Lock()
	defer r.sessionLock.Unlock()

	for len(r.sessions) >= r.cfg.Runner.MaxSessions {
		var oldestID string
		var oldestTime time.Time
		first := true
		for id, existing := range r.sessions {
			accessTime := existing.LastAccess()
			if first || accessTime.Before(oldestTime) {
				oldestID = id
				oldestTime = accessTime
				first = false
			}
		}
		if r.cfg.Log {
			log.Printf("runner: evicting least recently used session %s", oldestID)
		}
		r.remove(oldestID)
	}

	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
	return s, nil
}

func (r *Runner) Session(id string) (*Session, error) {
	r.sessionLock.RLock()
	defer r.sessionLock.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Sessions lists loaded sessions, oldest first.
func (r *Runner) Sessions() []SessionInfo {
	r.sessionLock.RLock()
	defer r.sessionLock.RUnlock()

	infos := make([]SessionInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.sessions[id].Info())
	}
	return infos
}

// Latest returns the most recently loaded session, if any.
func (r *Runner) Latest() (*Session, bool) {
	r.sessionLock.RLock()
	defer r.sessionLock.RUnlock()
	if len(r.order) == 0 {
		return nil, false
	}
	return r.sessions[r.order[len(r.order)-1]], true
}

// Close stops the janitor and persists the coordinate cache.
func (r *Runner) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		if r.cfg.Data.CoordinateCache != "" && r.cache.Len() > 0 {
			if saveErr := r.cache.SaveMMap(r.cfg.Data.CoordinateCache); saveErr != nil {
				err = fmt.Errorf("failed to save coordinate cache: %w", saveErr)
			}
		}
	})
	return err
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var loadErr *roster.DataLoadError
	switch {
	case errors.As(err, &loadErr):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrInvalidFilters), errors.Is(err, ErrInvalidDistance):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, cluster.ErrPointNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, cluster.ErrNotCluster):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// ViewService implementation.

func (r *Runner) LoadRoster(ctx context.Context, req *LoadRosterRequest) (*LoadRosterResponse, error) {
	s, err := r.Load(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoadRosterResponse{Session: s.Info(), Frame: s.Frame()}, nil
}

func (r *Runner) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	snapshots, err := cluster.ListSnapshots(r.cfg.Data.SnapshotDir)
	if err != nil {
		return nil, toStatus(err)
	}
	sessions := r.Sessions()
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastAccess.After(sessions[j].LastAccess)
	})
	return &ListSessionsResponse{Sessions: sessions, Snapshots: snapshots}, nil
}

func (r *Runner) Select(ctx context.Context, req *SelectRequest) (*Frame, error) {
	s, err := r.Session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	frame, err := s.Select(req.Distance, req.Filters)
	if err != nil {
		return nil, toStatus(err)
	}
	return &frame, nil
}

func (r *Runner) SetFilters(ctx context.Context, req *SetFiltersRequest) (*Frame, error) {
	s, err := r.Session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	frame, err := s.SetFilters(req.Filters)
	if err != nil {
		return nil, toStatus(err)
	}
	return &frame, nil
}

func (r *Runner) Expand(ctx context.Context, req *PointRequest) (*Frame, error) {
	s, err := r.Session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	frame, err := s.Expand(req.PointID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &frame, nil
}

func (r *Runner) ClusterDetails(ctx context.Context, req *PointRequest) (*cluster.Details, error) {
	s, err := r.Session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	details, err := s.Details(req.PointID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &details, nil
}

func (r *Runner) Statistics(ctx context.Context, req *SessionRequest) (*cluster.Statistics, error) {
	s, err := r.Session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	stats := s.Statistics()
	return &stats, nil
}

func (r *Runner) FilterOptions(ctx context.Context, req *SessionRequest) (*roster.FilterOptions, error) {
	s, err := r.Session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	opts := s.FilterOptions()
	return &opts, nil
}

func (r *Runner) SaveSnapshot(ctx context.Context, req *SessionRequest) (*cluster.SnapshotInfo, error) {
	s, err := r.Session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	info, err := s.SaveSnapshot(r.cfg.Data.SnapshotDir)
	if err != nil {
		return nil, toStatus(err)
	}
	return &info, nil
}
