package cluster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// CachedLocation is the resolved position of one location key.
type CachedLocation struct {
	Coordinates Coordinates
	Located     bool
}

// CoordinateCache maps location keys to resolved coordinates. Once a key is
// cached its coordinates never change, jitter included.
type CoordinateCache struct {
	mu      sync.RWMutex
	entries map[string]CachedLocation
}

func NewCoordinateCache() *CoordinateCache {
	return &CoordinateCache{
		entries: make(map[string]CachedLocation),
	}
}

func (c *CoordinateCache) Get(key string) (CachedLocation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	loc, ok := c.entries[key]
	return loc, ok
}

// Put stores loc unless key is already cached, and returns whichever value wins.
func (c *CoordinateCache) Put(key string, loc CachedLocation) CachedLocation {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = loc
	return loc
}

func (c *CoordinateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cached location keys in sorted order.
func (c *CoordinateCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mmapWriter writes little-endian values into a mapped region.
type mmapWriter struct {
	data   mmap.MMap
	offset int
}

func (w *mmapWriter) writeUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.data[w.offset:], v)
	w.offset += 4
}

func (w *mmapWriter) writeFloat64(v float64) {
	binary.LittleEndian.PutUint64(w.data[w.offset:], math.Float64bits(v))
	w.offset += 8
}

func (w *mmapWriter) writeBytes(b []byte) {
	copy(w.data[w.offset:], b)
	w.offset += len(b)
}

// mmapReader reads values back, refusing to run past the end of the mapping.
type mmapReader struct {
	data   mmap.MMap
	offset int
}

var errTruncatedCache = errors.New("coordinate cache file is truncated")

func (r *mmapReader) need(n int) error {
	if r.offset+n > len(r.data) {
		return errTruncatedCache
	}
	return nil
}

func (r *mmapReader) readUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *mmapReader) readFloat64() (float64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.offset:])
	r.offset += 8
	return math.Float64frombits(v), nil
}

func (r *mmapReader) readBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.data[r.offset:r.offset+n])
	r.offset += n
	return b, nil
}

// entry layout: key length, key, lat, lng, located flag
func (c *CoordinateCache) calculateSize(keys []string) int64 {
	size := int64(4)
	for _, k := range keys {
		size += 4 + int64(len(k)) + 8 + 8 + 4
	}
	return size
}

// SaveMMap writes the cache to filename through a memory mapping so a later
// run resolves every known key to the same jittered position.
func (c *CoordinateCache) SaveMMap(filename string) error {
	keys := c.Keys()

	c.mu.RLock()
	defer c.mu.RUnlock()

	size := c.calculateSize(keys)

	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := file.Truncate(size); err != nil {
		return fmt.Errorf("failed to truncate file: %w", err)
	}

	data, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to mmap file: %w", err)
	}
	defer data.Unmap()

	w := &mmapWriter{data: data}
	w.writeUint32(uint32(len(keys)))
	for _, k := range keys {
		loc := c.entries[k]
		w.writeUint32(uint32(len(k)))
		w.writeBytes([]byte(k))
		w.writeFloat64(loc.Coordinates.Lat)
		w.writeFloat64(loc.Coordinates.Lng)
		if loc.Located {
			w.writeUint32(1)
		} else {
			w.writeUint32(0)
		}
	}

	return data.Flush()
}

// LoadCoordinateCache reads a file written by SaveMMap. A missing or empty
// file yields an empty cache.
func LoadCoordinateCache(filename string) (*CoordinateCache, error) {
	cache := NewCoordinateCache()

	file, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cache, nil
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() == 0 {
		return cache, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap file: %w", err)
	}
	defer data.Unmap()

	r := &mmapReader{data: data}
	count, err := r.readUint32()
	if err != nil {
		return nil, err
	}

	for i := uint32(0); i < count; i++ {
		keyLen, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		key, err := r.readBytes(int(keyLen))
		if err != nil {
			return nil, err
		}
		lat, err := r.readFloat64()
		if err != nil {
			return nil, err
		}
		lng, err := r.readFloat64()
		if err != nil {
			return nil, err
		}
		located, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		cache.entries[string(key)] = CachedLocation{
			Coordinates: Coordinates{Lat: lat, Lng: lng},
			Located:     located == 1,
		}
	}

	return cache, nil
}
