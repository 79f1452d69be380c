package inmemcache

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/listing"
	"github.com/trezcool/masomo-console/storage/cache"
)

type entry struct {
	data    []byte
	expires time.Time
}

// Cache is a process-local core.PageCache. Pages are stored encoded so callers never share records.
type Cache struct {
	mutex sync.RWMutex
	table map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

var _ core.PageCache = (*Cache)(nil)

// New returns a cache whose entries expire after `ttl`; a zero ttl keeps them forever.
func New(ttl time.Duration) *Cache {
	return &Cache{
		table: make(map[string]entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *Cache) Get(_ context.Context, key string) (listing.Page, bool, error) {
	c.mutex.RLock()
	e, ok := c.table[key]
	c.mutex.RUnlock()

	if !ok {
		return listing.Page{}, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mutex.Lock()
		delete(c.table, key)
		c.mutex.Unlock()
		return listing.Page{}, false, nil
	}
	page, err := cache.Decode(e.data)
	if err != nil {
		return listing.Page{}, false, err
	}
	return page, true, nil
}

func (c *Cache) Set(_ context.Context, key string, page listing.Page) error {
	data, err := cache.Encode(page)
	if err != nil {
		return err
	}

	e := entry{data: data}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.table[key] = e
	return nil
}

func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.table)
}
