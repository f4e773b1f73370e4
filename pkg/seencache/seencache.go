// Package seencache remembers recently seen keys in a fixed size freecache.
// Entries can be evicted at any time, a miss never means "not seen".
package seencache

import (
	"encoding/binary"

	"github.com/coocood/freecache"
)

// Cache ...
type Cache struct {
	cache      *freecache.Cache
	expireSecs int
}

// New creates freecache with size in bytes
func New(size int, expireSecs int) *Cache {
	return &Cache{
		cache:      freecache.NewCache(size),
		expireSecs: expireSecs,
	}
}

// Get returns the id stored for key
func (c *Cache) Get(key string) (id int64, ok bool) {
	data, err := c.cache.Get([]byte(key))
	if err != nil {
		return 0, false
	}
	if len(data) < 8 {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint64(data)), true
}

// Set ...
func (c *Cache) Set(key string, id int64) {
	var data [8]byte
	binary.LittleEndian.PutUint64(data[:], uint64(id))
	_ = c.cache.Set([]byte(key), data[:], c.expireSecs)
}

// Delete ...
func (c *Cache) Delete(key string) {
	c.cache.Del([]byte(key))
}
