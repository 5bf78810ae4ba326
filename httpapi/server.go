// Package httpapi serves globe views over HTTP. Frames are returned as GeoJSON
// feature collections so map and globe front ends can draw them directly.
package httpapi

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"web/communityglobe/lod"
	"web/communityglobe/runner"
)

// LatestSession may be used in place of a session id.
const LatestSession = "latest"

const defaultTimeout = 30 * time.Second

// Server routes HTTP requests to a view service, either an in-process
// *runner.Runner or a *runner.Client talking to a remote one.
type Server struct {
	views   runner.ViewServiceServer
	timeout time.Duration

	mu               sync.RWMutex
	defaultSessionID string // most recently loaded session
}

func NewServer(views runner.ViewServiceServer) *Server {
	return &Server{
		views:   views,
		timeout: defaultTimeout,
	}
}

// SetDefaultSession makes id the session served under LatestSession.
func (s *Server) SetDefaultSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultSessionID = id
}

func (s *Server) DefaultSession() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultSessionID
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.Use(cors())
	s.Register(r)
	return r
}

// cors allows any origin to call the API from a browser.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) Register(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api/sessions")
	api.GET("", s.listSessions)
	api.POST("", s.loadRoster)
	api.GET("/:id/points", s.points)
	api.GET("/:id/points/:pointId", s.pointDetails)
	api.POST("/:id/points/:pointId/expand", s.expand)
	api.GET("/:id/stats", s.statistics)
	api.GET("/:id/filters", s.filterOptions)
	api.POST("/:id/filters", s.setFilters)
	api.POST("/:id/snapshot", s.saveSnapshot)
}

func (s *Server) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.timeout)
}

// latestSessions is implemented by an in-process *runner.Runner.
type latestSessions interface {
	Latest() (*runner.Session, bool)
}

// sessionID resolves the :id parameter, mapping LatestSession to the newest
// live session.
func (s *Server) sessionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if id != LatestSession {
		return id, true
	}

	ctx, cancel := s.context(c)
	defer cancel()

	id, err := s.latest(ctx)
	if err != nil {
		writeError(c, err)
		return "", false
	}
	if id == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No sessions available"})
		return "", false
	}
	return id, true
}

// latest asks an in-process runner for its most recently loaded session. A
// remote view service keeps the default while it is still listed and falls
// back to the most recently used session once it has been evicted.
func (s *Server) latest(ctx context.Context) (string, error) {
	if r, ok := s.views.(latestSessions); ok {
		if session, ok := r.Latest(); ok {
			s.SetDefaultSession(session.ID)
			return session.ID, nil
		}
		return "", nil
	}

	resp, err := s.views.ListSessions(ctx, &runner.ListSessionsRequest{})
	if err != nil {
		return "", err
	}
	def := s.DefaultSession()
	for _, info := range resp.Sessions {
		if info.ID == def {
			return def, nil
		}
	}
	if len(resp.Sessions) == 0 {
		return "", nil
	}
	// Sessions are ordered most recently used first.
	s.SetDefaultSession(resp.Sessions[0].ID)
	return resp.Sessions[0].ID, nil
}

func (s *Server) listSessions(c *gin.Context) {
	ctx, cancel := s.context(c)
	defer cancel()

	resp, err := s.views.ListSessions(ctx, &runner.ListSessionsRequest{})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) loadRoster(c *gin.Context) {
	var req runner.LoadRosterRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx, cancel := s.context(c)
	defer cancel()

	resp, err := s.views.LoadRoster(ctx, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	s.SetDefaultSession(resp.Session.ID)

	c.JSON(http.StatusOK, gin.H{
		"session": resp.Session,
		"frame":   FeatureCollection(&resp.Frame),
	})
}

func (s *Server) points(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}

	var distance float64
	if raw := c.Query("distance"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid distance parameter"})
			return
		}
		distance = d
	}

	ctx, cancel := s.context(c)
	defer cancel()

	frame, err := s.views.Select(ctx, &runner.SelectRequest{
		SessionID: id,
		Distance:  distance,
		Filters:   filtersFromQuery(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, FeatureCollection(frame))
}

func (s *Server) pointDetails(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}
	ctx, cancel := s.context(c)
	defer cancel()

	details, err := s.views.ClusterDetails(ctx, &runner.PointRequest{SessionID: id, PointID: c.Param("pointId")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (s *Server) expand(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}
	ctx, cancel := s.context(c)
	defer cancel()

	frame, err := s.views.Expand(ctx, &runner.PointRequest{SessionID: id, PointID: c.Param("pointId")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, FeatureCollection(frame))
}

func (s *Server) statistics(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}
	ctx, cancel := s.context(c)
	defer cancel()

	stats, err := s.views.Statistics(ctx, &runner.SessionRequest{SessionID: id})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) filterOptions(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}
	ctx, cancel := s.context(c)
	defer cancel()

	opts, err := s.views.FilterOptions(ctx, &runner.SessionRequest{SessionID: id})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

func (s *Server) setFilters(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}
	var filters lod.Filters
	if err := c.BindJSON(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx, cancel := s.context(c)
	defer cancel()

	frame, err := s.views.SetFilters(ctx, &runner.SetFiltersRequest{SessionID: id, Filters: filters})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, FeatureCollection(frame))
}

func (s *Server) saveSnapshot(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}
	ctx, cancel := s.context(c)
	defer cancel()

	info, err := s.views.SaveSnapshot(ctx, &runner.SessionRequest{SessionID: id})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Snapshot saved successfully",
		"snapshot": info,
	})
}

// filtersFromQuery returns nil when no filter parameter is present, leaving
// the session's filters untouched.
func filtersFromQuery(c *gin.Context) *lod.Filters {
	_, hasIndustries := c.GetQuery("industries")
	_, hasLocations := c.GetQuery("locations")
	_, hasRoles := c.GetQuery("roles")
	region, hasRegion := c.GetQuery("region")
	if !hasIndustries && !hasLocations && !hasRoles && !hasRegion {
		return nil
	}
	return &lod.Filters{
		Industries: splitList(c.Query("industries")),
		Locations:  splitList(c.Query("locations")),
		Roles:      splitList(c.Query("roles")),
		Region:     lod.Region(region),
	}
}

// splitList splits a comma separated list. Locations contain commas
// themselves, so entries are separated by "|" when one is present.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	sep := ","
	if strings.Contains(raw, "|") {
		sep = "|"
	}
	var out []string
	for _, v := range strings.Split(raw, sep) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FeatureCollection converts a frame to GeoJSON. Frame-level fields travel as
// foreign members of the collection.
func FeatureCollection(frame *runner.Frame) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range frame.Points {
		f := geojson.NewFeature(p.Coordinates.Point())
		f.ID = p.ID
		f.Properties = geojson.Properties{
			"id":               p.ID,
			"cluster":          p.IsCluster,
			"point_count":      p.MemberCount,
			"expanded":         p.Expanded,
			"located":          p.Located,
			"industryCategory": p.IndustryCategory,
			"roleGroup":        p.RoleGroup,
			"industries":       p.Industries,
			"roles":            p.Roles,
			"locations":        p.Locations,
			"location":         p.FullLocation,
			"tier":             frame.Tiers[p.ID],
			"scale":            frame.Scales[p.ID],
		}
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"sessionId":  frame.SessionID,
		"decision":   frame.Decision.String(),
		"distance":   frame.Distance,
		"band":       frame.Band,
		"minMembers": frame.MinMembers,
		"filters":    frame.Filters,
		"summary":    frame.Summary,
	}
	return fc
}

// writeError maps gRPC status codes, which both the runner and its client
// return, onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	st, _ := status.FromError(err)
	code := http.StatusInternalServerError
	switch st.Code() {
	case codes.InvalidArgument:
		code = http.StatusUnprocessableEntity
	case codes.NotFound:
		code = http.StatusNotFound
	case codes.FailedPrecondition:
		code = http.StatusConflict
	case codes.DeadlineExceeded:
		code = http.StatusGatewayTimeout
	case codes.Canceled:
		code = 499
	case codes.Unavailable:
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"error": st.Message()})
}
