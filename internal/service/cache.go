package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/remembrance/memorial-backend/internal/domain"
)

// ObituaryCache is a per-instance LRU of obituary records with a TTL.
// Writers remove the entry after every mutation; other instances see the change
// once their copy expires. A nil cache is valid and caches nothing.
type ObituaryCache struct {
	lru *expirable.LRU[uint64, *domain.Obituary]
}

// NewObituaryCache creates the cache. A size <= 0 returns the nil cache.
// Config turns an unset cache.obituary_size into the default, so -1 is how it is switched off.
func NewObituaryCache(size int, ttl time.Duration) *ObituaryCache {
	if size <= 0 {
		return nil
	}
	return &ObituaryCache{lru: expirable.NewLRU[uint64, *domain.Obituary](size, nil, ttl)}
}

// Get returns a copy of the cached record
func (c *ObituaryCache) Get(id uint64) (*domain.Obituary, bool) {
	if c == nil {
		return nil, false
	}
	obit, ok := c.lru.Get(id)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	cp := *obit
	return &cp, true
}

// Set stores a copy of obit
func (c *ObituaryCache) Set(obit *domain.Obituary) {
	if c == nil || obit == nil {
		return
	}
	cp := *obit
	c.lru.Add(obit.ID, &cp)
}

// Remove drops id from the cache
func (c *ObituaryCache) Remove(id uint64) {
	if c == nil {
		return
	}
	c.lru.Remove(id)
}
