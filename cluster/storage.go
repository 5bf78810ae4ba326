package cluster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"web/communityglobe/roster"
)

const snapshotMagic = uint32(0x474c4f42) // "GLOB"
const snapshotVersion = uint32(2)

// Snapshot is one clustering pass frozen to disk together with the options
// that produced it and the location keys that were expanded.
type Snapshot struct {
	ID      string
	Created time.Time
	Options Options
	Points  []GeoPoint
	Pinned  []string
}

// SnapshotInfo describes a snapshot file without decoding it.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	NumPoints int       `json:"numPoints"`
	FileSize  int64     `json:"fileSize"`
	Modified  time.Time `json:"modified"`
}

// NewSnapshot captures the current pass of an engine.
func NewSnapshot(e *Engine, points []GeoPoint) *Snapshot {
	owned := make([]GeoPoint, len(points))
	copy(owned, points)
	return &Snapshot{
		ID:      uuid.New().String()[:8],
		Created: time.Now().UTC(),
		Options: e.Options,
		Points:  owned,
		Pinned:  e.Pinned(),
	}
}

// SnapshotFilename builds snapshot-{n}p-{timestamp}-{id}.zst under dir.
func SnapshotFilename(dir string, snap *Snapshot) string {
	timestamp := snap.Created.Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("snapshot-%dp-%s-%s.zst", len(snap.Points), timestamp, snap.ID))
}

// snapshotWriter keeps the first write error so the encoder body stays linear.
type snapshotWriter struct {
	w   io.Writer
	err error
}

func (w *snapshotWriter) write(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *snapshotWriter) writeString(s string) {
	w.write(uint32(len(s)))
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *snapshotWriter) writeStrings(ss []string) {
	w.write(uint32(len(ss)))
	for _, s := range ss {
		w.writeString(s)
	}
}

func (w *snapshotWriter) writeBool(b bool) {
	if b {
		w.write(uint8(1))
	} else {
		w.write(uint8(0))
	}
}

func (w *snapshotWriter) writeAttendee(a roster.Attendee) {
	w.write(int64(a.ID))
	for _, s := range []string{a.Role, a.City, a.State, a.Country, a.Industry,
		a.FullLocation, a.RoleGroup, a.IndustryCategory, a.ConfirmTime, a.LastChanged} {
		w.writeString(s)
	}
}

// SaveSnapshot writes snap as a zstd-compressed binary file.
func SaveSnapshot(filename string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriterSize(file, 1024*1024)
	enc, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer enc.Close()

	w := &snapshotWriter{w: enc}
	w.write(snapshotMagic)
	w.write(snapshotVersion)
	w.writeString(snap.ID)
	w.write(snap.Created.UnixNano())

	w.writeString(string(snap.Options.Policy))
	w.writeString(snap.Options.HomeRegion.State)
	w.writeString(snap.Options.HomeRegion.Country)
	w.write(snap.Options.JitterDegrees)
	w.write(snap.Options.SpreadDegrees)
	w.write(snap.Options.Seed)

	w.writeStrings(snap.Pinned)

	w.write(uint32(len(snap.Points)))
	for _, p := range snap.Points {
		w.writeString(p.ID)
		w.writeString(p.LocationKey)
		w.write(p.Coordinates.Lat)
		w.write(p.Coordinates.Lng)
		w.writeBool(p.Located)
		w.writeBool(p.IsCluster)
		w.writeBool(p.Expanded)
		w.writeStrings(p.Industries)
		w.writeStrings(p.Roles)
		w.writeStrings(p.Locations)
		for _, s := range []string{p.IndustryCategory, p.RoleGroup, p.Role,
			p.City, p.State, p.Country, p.FullLocation} {
			w.writeString(s)
		}
		w.write(uint32(len(p.Members)))
		for _, m := range p.Members {
			w.writeAttendee(m)
		}
	}
	if w.err != nil {
		return fmt.Errorf("failed to write snapshot: %w", w.err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

type snapshotReader struct {
	r   io.Reader
	err error
}

func (r *snapshotReader) read(v any) {
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.r, binary.LittleEndian, v)
}

// maxSnapshotString bounds a single decoded string so a corrupt length
// cannot force a huge allocation.
const maxSnapshotString = 1 << 20

func (r *snapshotReader) readString() string {
	var n uint32
	r.read(&n)
	if r.err != nil {
		return ""
	}
	if n > maxSnapshotString {
		r.err = fmt.Errorf("string length %d exceeds limit", n)
		return ""
	}
	buf := make([]byte, n)
	_, r.err = io.ReadFull(r.r, buf)
	return string(buf)
}

func (r *snapshotReader) readStrings() []string {
	var n uint32
	r.read(&n)
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		out = append(out, r.readString())
	}
	return out
}

func (r *snapshotReader) readBool() bool {
	var b uint8
	r.read(&b)
	return b == 1
}

func (r *snapshotReader) readAttendee() roster.Attendee {
	var id int64
	r.read(&id)
	return roster.Attendee{
		ID:               int(id),
		Role:             r.readString(),
		City:             r.readString(),
		State:            r.readString(),
		Country:          r.readString(),
		Industry:         r.readString(),
		FullLocation:     r.readString(),
		RoleGroup:        r.readString(),
		IndustryCategory: r.readString(),
		ConfirmTime:      r.readString(),
		LastChanged:      r.readString(),
	}
}

// LoadSnapshot reads a file written by SaveSnapshot.
func LoadSnapshot(filename string) (*Snapshot, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	r := &snapshotReader{r: dec}
	var magic, version uint32
	r.read(&magic)
	r.read(&version)
	if r.err != nil {
		return nil, fmt.Errorf("failed to read snapshot header: %w", r.err)
	}
	if magic != snapshotMagic || version != snapshotVersion {
		return nil, fmt.Errorf("failed to read snapshot: unsupported format %x/%d", magic, version)
	}

	snap := &Snapshot{}
	snap.ID = r.readString()
	var created int64
	r.read(&created)
	snap.Created = time.Unix(0, created).UTC()

	snap.Options.Policy = Policy(r.readString())
	snap.Options.HomeRegion.State = r.readString()
	snap.Options.HomeRegion.Country = r.readString()
	r.read(&snap.Options.JitterDegrees)
	r.read(&snap.Options.SpreadDegrees)
	r.read(&snap.Options.Seed)

	snap.Pinned = r.readStrings()

	var numPoints uint32
	r.read(&numPoints)
	if r.err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", r.err)
	}

	snap.Points = make([]GeoPoint, 0, min(numPoints, 1<<16))
	for i := uint32(0); i < numPoints && r.err == nil; i++ {
		var p GeoPoint
		p.ID = r.readString()
		p.LocationKey = r.readString()
		r.read(&p.Coordinates.Lat)
		r.read(&p.Coordinates.Lng)
		p.Located = r.readBool()
		p.IsCluster = r.readBool()
		p.Expanded = r.readBool()
		p.Industries = r.readStrings()
		p.Roles = r.readStrings()
		p.Locations = r.readStrings()
		p.IndustryCategory = r.readString()
		p.RoleGroup = r.readString()
		p.Role = r.readString()
		p.City = r.readString()
		p.State = r.readString()
		p.Country = r.readString()
		p.FullLocation = r.readString()

		var numMembers uint32
		r.read(&numMembers)
		p.Members = make([]roster.Attendee, 0, min(numMembers, 1<<16))
		for j := uint32(0); j < numMembers && r.err == nil; j++ {
			p.Members = append(p.Members, r.readAttendee())
		}
		p.MemberCount = len(p.Members)
		snap.Points = append(snap.Points, p)
	}
	if r.err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", r.err)
	}

	return snap, nil
}

// ListSnapshots returns the snapshot files in dir, newest first. A missing
// directory yields an empty list.
func ListSnapshots(dir string) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SnapshotInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	infos := make([]SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "snapshot-") || !strings.HasSuffix(name, ".zst") {
			continue
		}

		// snapshot-{n}p-{date}-{time}-{id}.zst
		parts := strings.Split(strings.TrimSuffix(name, ".zst"), "-")
		if len(parts) != 5 {
			continue
		}
		var numPoints int
		if _, err := fmt.Sscanf(parts[1], "%dp", &numPoints); err != nil {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, SnapshotInfo{
			ID:        parts[4],
			Path:      filepath.Join(dir, name),
			NumPoints: numPoints,
			FileSize:  fi.Size(),
			Modified:  fi.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Modified.After(infos[j].Modified)
	})
	return infos, nil
}

// FindSnapshot returns the path of the snapshot whose id is id.
func FindSnapshot(dir, id string) (string, error) {
	infos, err := ListSnapshots(dir)
	if err != nil {
		return "", err
	}
	for _, info := range infos {
		if info.ID == id {
			return info.Path, nil
		}
	}
	return "", fmt.Errorf("no snapshot file found with id %s", id)
}
