package receipts

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ahinestrog/mypos/internal/checkout"
)

// CachedStore keeps recently saved or read receipts in memory in front of
// another Store. Recent always goes to the backing store.
type CachedStore struct {
	Store
	cache *lru.Cache[int64, checkout.Receipt]
}

func NewCachedStore(s Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 128
	}
	c, err := lru.New[int64, checkout.Receipt](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: s, cache: c}, nil
}

func (c *CachedStore) Save(ctx context.Context, r checkout.Receipt) error {
	if err := c.Store.Save(ctx, r); err != nil {
		c.cache.Remove(r.TransactionID)
		return err
	}
	c.cache.Add(r.TransactionID, r)
	return nil
}

func (c *CachedStore) Get(ctx context.Context, transactionID int64) (checkout.Receipt, error) {
	if r, ok := c.cache.Get(transactionID); ok {
		return r, nil
	}
	r, err := c.Store.Get(ctx, transactionID)
	if err != nil {
		return checkout.Receipt{}, err
	}
	c.cache.Add(transactionID, r)
	return r, nil
}
