package store

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheTTL bounds staleness for lock-free readers. Writers refresh entries
// eagerly, so the TTL only matters for files modified out of band.
const cacheTTL = 60 * time.Second

const cacheSize = 512

// shardCache holds decoded JSON arrays keyed by file path. Only arrays are
// cached; scalar blobs such as settings are cheap to reload.
type shardCache struct {
	lru *expirable.LRU[string, any]
}

func newShardCache() *shardCache {
	return &shardCache{lru: expirable.NewLRU[string, any](cacheSize, nil, cacheTTL)}
}

func (c *shardCache) get(path string) (any, bool) {
	return c.lru.Get(path)
}

func (c *shardCache) put(path string, v any) {
	c.lru.Add(path, v)
}

func (c *shardCache) drop(path string) {
	c.lru.Remove(path)
}
