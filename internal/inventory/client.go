// Package inventory reads item snapshots from the external inventory service
// and keeps the current one available to cashier sessions.
package inventory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ahinestrog/mypos/internal/checkout"
	"github.com/ahinestrog/mypos/internal/httpx"
)

type itemDTO struct {
	ItemID          int64           `json:"item_id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	QuantityInStock int             `json:"quantity_in_stock"`
	ItemType        string          `json:"item_type"`
}

func (d itemDTO) toItem() (checkout.Item, error) {
	if d.Price.IsNegative() {
		return checkout.Item{}, fmt.Errorf("negative price %s", d.Price)
	}
	if d.QuantityInStock < 0 {
		return checkout.Item{}, fmt.Errorf("negative stock %d", d.QuantityInStock)
	}
	t, err := checkout.ParseItemType(d.ItemType)
	if err != nil {
		return checkout.Item{}, err
	}
	return checkout.Item{
		ID:       d.ItemID,
		Name:     d.Name,
		Price:    d.Price,
		Stock:    d.QuantityInStock,
		ItemType: t,
	}, nil
}

func fromItem(it checkout.Item) itemDTO {
	return itemDTO{
		ItemID:          it.ID,
		Name:            it.Name,
		Price:           it.Price,
		QuantityInStock: it.Stock,
		ItemType:        it.ItemType.String(),
	}
}

// Client talks to GET /items/ on the inventory service.
type Client struct {
	doer *httpx.Doer
}

func NewClient(doer *httpx.Doer) *Client { return &Client{doer: doer} }

// Items fetches every item. Records that break the item invariants are
// skipped and logged instead of failing the whole listing.
func (c *Client) Items(ctx context.Context) ([]checkout.Item, error) {
	var raw []itemDTO
	if err := c.doer.Get(ctx, "/items/", nil, &raw); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items := make([]checkout.Item, 0, len(raw))
	for _, r := range raw {
		it, err := r.toItem()
		if err != nil {
			log.Warn().Err(err).Int64("item", r.ItemID).Msg("inventory: skipping item")
			continue
		}
		items = append(items, it)
	}
	return items, nil
}
