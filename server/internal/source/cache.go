package source

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheSize = 64

// Cache memoizes lookups by URL. Within one process a URL is resolved at most
// once until it is evicted (least recently used first) or invalidated;
// concurrent lookups of the same URL share a single provider call. Failed
// lookups are not cached.
type Cache struct {
	provider Provider
	entries  *lru.Cache[string, *Video]
	group    singleflight.Group
}

func NewCache(p Provider, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	entries, err := lru.New[string, *Video](size)
	if err != nil {
		return nil, err
	}

	return &Cache{
		provider: p,
		entries:  entries,
	}, nil
}

func (c *Cache) Lookup(ctx context.Context, url string) (*Video, error) {
	if v, ok := c.entries.Get(url); ok {
		return v, nil
	}

	res, err, shared := c.group.Do(url, func() (any, error) {
		// a lookup may have landed between the miss above and this call
		if v, ok := c.entries.Get(url); ok {
			return v, nil
		}

		slog.Info("looking up video", slog.String("url", url))

		v, err := c.provider.Lookup(ctx, url)
		if err != nil {
			return nil, err
		}
		c.entries.Add(url, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("shared in-flight lookup", slog.String("url", url))
	}

	return res.(*Video), nil
}

func (c *Cache) Invalidate(url string) { c.entries.Remove(url) }

func (c *Cache) Purge() { c.entries.Purge() }

func (c *Cache) Len() int { return c.entries.Len() }
