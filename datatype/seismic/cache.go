package seismic

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/coocood/freecache"

	"github.com/openseis/seisvol/seisvol"
)

// GeometryCache keeps resolved grids per volume so sections need not
// re-derive geometry.  An entry is only used while the file's size and
// modification time match those seen when it was cached.
type GeometryCache struct {
	cache    *freecache.Cache
	attempts uint64
	hits     uint64
}

// cachedGrid is the serialized cache entry.
type cachedGrid struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mtime"`
	Grid    *Grid `json:"grid"`
}

// NewGeometryCache returns a cache of about numBytes, or nil when numBytes is
// not positive.  A nil cache is valid and never hits.
func NewGeometryCache(numBytes int) *GeometryCache {
	if numBytes <= 0 {
		return nil
	}
	seisvol.Infof("Created geometry cache of %s.\n", seisvol.HumanBytes(int64(numBytes)))
	return &GeometryCache{cache: freecache.NewCache(numBytes)}
}

func cacheKey(volumeID uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, volumeID)
	return k
}

// Get returns the grid cached for the volume if the file is unchanged.
func (c *GeometryCache) Get(volumeID uint64, size int64, modTime time.Time) (*Grid, bool) {
	if c == nil {
		return nil, false
	}
	atomic.AddUint64(&c.attempts, 1)
	data, err := c.cache.Get(cacheKey(volumeID))
	if err != nil {
		if err != freecache.ErrNotFound {
			seisvol.Errorf("unable to get geometry of volume %d from cache: %v\n", volumeID, err)
		}
		return nil, false
	}
	var entry cachedGrid
	if err := seisvol.Deserialize(data, &entry); err != nil {
		seisvol.Errorf("bad geometry cache entry for volume %d: %v\n", volumeID, err)
		c.Invalidate(volumeID)
		return nil, false
	}
	if entry.Grid == nil || entry.Size != size || entry.ModTime != modTime.UnixNano() {
		c.Invalidate(volumeID)
		return nil, false
	}
	entry.Grid.index()
	atomic.AddUint64(&c.hits, 1)
	return entry.Grid, true
}

// Put caches the grid of a volume along with the file's size and mtime.
func (c *GeometryCache) Put(volumeID uint64, size int64, modTime time.Time, g *Grid) {
	if c == nil || g == nil {
		return
	}
	data, err := seisvol.Serialize(cachedGrid{size, modTime.UnixNano(), g}, seisvol.Snappy, seisvol.CRC32)
	if err != nil {
		seisvol.Errorf("unable to serialize geometry of volume %d: %v\n", volumeID, err)
		return
	}
	if err := c.cache.Set(cacheKey(volumeID), data, 0); err != nil {
		seisvol.Errorf("unable to cache geometry of volume %d (%s): %v\n", volumeID, seisvol.HumanBytes(int64(len(data))), err)
	}
}

// Invalidate drops any entry for the volume.
func (c *GeometryCache) Invalidate(volumeID uint64) {
	if c == nil {
		return
	}
	c.cache.Del(cacheKey(volumeID))
}

// Stats returns the number of lookups and hits so far.
func (c *GeometryCache) Stats() (attempts, hits uint64) {
	if c == nil {
		return 0, 0
	}
	return atomic.LoadUint64(&c.attempts), atomic.LoadUint64(&c.hits)
}
