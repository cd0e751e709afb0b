package inventory

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/ahinestrog/mypos/internal/checkout"
	"github.com/ahinestrog/mypos/internal/metrics"
)

// Source lists the current inventory.
type Source interface {
	Items(ctx context.Context) ([]checkout.Item, error)
}

// Catalog holds the latest Snapshot for every session of this process.
// Concurrent refreshes share one upstream fetch.
type Catalog struct {
	src   Source
	cache SnapshotCache
	now   func() time.Time

	snap  atomic.Pointer[Snapshot]
	group singleflight.Group
}

type Option func(*Catalog)

func WithCache(c SnapshotCache) Option { return func(cat *Catalog) { cat.cache = c } }

func WithClock(now func() time.Time) Option { return func(cat *Catalog) { cat.now = now } }

func NewCatalog(src Source, opts ...Option) *Catalog {
	c := &Catalog{src: src, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Catalog) Item(id int64) (checkout.Item, bool) { return c.snap.Load().Item(id) }

func (c *Catalog) Snapshot() *Snapshot { return c.snap.Load() }

func (c *Catalog) Search(term string) []checkout.Item { return c.snap.Load().Search(term) }

// Load primes the catalog at startup, preferring a snapshot another instance
// already cached.
func (c *Catalog) Load(ctx context.Context) error {
	if c.cache != nil {
		s, err := c.cache.Get(ctx)
		if err == nil {
			c.snap.Store(s)
			metrics.CatalogRefreshes.WithLabelValues("cache_hit").Inc()
			return nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Msg("inventory: snapshot cache read failed")
		}
	}
	_, err := c.Refresh(ctx)
	return err
}

// Refresh fetches a new snapshot from the inventory service. On failure the
// previous snapshot stays in place.
func (c *Catalog) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		items, err := c.src.Items(ctx)
		if err != nil {
			metrics.CatalogRefreshes.WithLabelValues("error").Inc()
			return nil, err
		}
		s := NewSnapshot(items, c.now())
		c.snap.Store(s)
		metrics.CatalogRefreshes.WithLabelValues("ok").Inc()

		if c.cache != nil {
			if err := c.cache.Set(ctx, s); err != nil {
				log.Warn().Err(err).Msg("inventory: snapshot cache write failed")
			}
		}
		log.Debug().Int("items", s.Len()).Msg("inventory: snapshot refreshed")
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Resync refreshes stock after a committed transaction. Other instances
// reading the shared cache see the new snapshot on their next Load. When the
// refresh fails the shared snapshot predates the commit, so it is dropped.
func (c *Catalog) Resync(ctx context.Context, _ checkout.Receipt) error {
	_, err := c.Refresh(ctx)
	if err != nil && c.cache != nil {
		if derr := c.cache.Delete(ctx); derr != nil {
			log.Warn().Err(derr).Msg("inventory: snapshot cache invalidate failed")
		}
	}
	return err
}
