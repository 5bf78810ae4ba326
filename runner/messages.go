package runner

import (
	"time"

	"web/communityglobe/cluster"
	"web/communityglobe/lod"
	"web/communityglobe/viewport"
)

// LoadRosterRequest names exactly one roster source. Path names a file in
// the runner's roster directory, or the configured roster path. CSV carries
// the feed inline. Generate asks for a synthetic roster and SnapshotID
// restores a saved session.
type LoadRosterRequest struct {
	Path       string `json:"path,omitempty"`
	CSV        string `json:"csv,omitempty"`
	Generate   int    `json:"generate,omitempty"`
	Seed       int64  `json:"seed,omitempty"`
	SnapshotID string `json:"snapshotId,omitempty"`
}

type SessionInfo struct {
	ID         string    `json:"id"`
	Attendees  int       `json:"attendees"`
	Points     int       `json:"points"`
	Rendered   int       `json:"rendered"`
	Distance   float64   `json:"distance"`
	Pinned     []string  `json:"pinned"`
	Rebuilds   int       `json:"rebuilds"`
	Patches    int       `json:"patches"`
	Created    time.Time `json:"created"`
	LastAccess time.Time `json:"lastAccess"`
}

type LoadRosterResponse struct {
	Session SessionInfo `json:"session"`
	Frame   Frame       `json:"frame"`
}

type ListSessionsRequest struct{}

type ListSessionsResponse struct {
	Sessions  []SessionInfo          `json:"sessions"`
	Snapshots []cluster.SnapshotInfo `json:"snapshots"`
}

type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

// SelectRequest moves the camera. Filters, when set, are applied first.
type SelectRequest struct {
	SessionID string       `json:"sessionId"`
	Distance  float64      `json:"distance"`
	Filters   *lod.Filters `json:"filters,omitempty"`
}

type SetFiltersRequest struct {
	SessionID string      `json:"sessionId"`
	Filters   lod.Filters `json:"filters"`
}

type PointRequest struct {
	SessionID string `json:"sessionId"`
	PointID   string `json:"pointId"`
}

// Frame is what the renderer shows after an event, and how it got there.
type Frame struct {
	SessionID  string             `json:"sessionId"`
	Decision   viewport.Decision  `json:"decision"`
	Distance   float64            `json:"distance"`
	Band       string             `json:"band"`
	MinMembers int                `json:"minMembers"`
	Filters    lod.Filters        `json:"filters"`
	Points     []cluster.GeoPoint `json:"points"`
	Scales     map[string]float64 `json:"scales"`
	Tiers      map[string]string  `json:"tiers"`
	Summary    cluster.Summary    `json:"summary"`
}
