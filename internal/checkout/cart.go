package checkout

import "fmt"

// Cart holds the lines of the transaction in progress, in insertion order and
// unique by item id. Every mutation is checked against stock and type rules;
// a rejected mutation leaves the cart untouched.
type Cart struct {
	lines []CartLine
}

func NewCart() *Cart { return &Cart{} }

// Add puts one unit of item in the cart, creating the line at the item's
// current price when it does not exist yet.
func (c *Cart) Add(item Item, t TransactionType) error {
	if item.Stock <= 0 && t != TypeReturn {
		return fmt.Errorf("%w: item %d", ErrOutOfStock, item.ID)
	}
	if t == TypeRental && item.ItemType != ItemRental {
		return fmt.Errorf("%w: item %d", ErrTypeMismatch, item.ID)
	}

	if i := c.find(item.ID); i >= 0 {
		if c.lines[i].Quantity+1 > item.Stock && t != TypeReturn {
			return fmt.Errorf("%w: item %d has %d in stock", ErrStockLimitReached, item.ID, item.Stock)
		}
		c.lines[i].Quantity++
		return nil
	}

	c.lines = append(c.lines, CartLine{
		ItemID:   item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: 1,
	})
	return nil
}

// AdjustQuantity changes a line by delta. Stock is read from catalog at call
// time; an item missing from the catalog counts as having no stock.
// A line whose quantity drops to zero or below is removed.
func (c *Cart) AdjustQuantity(catalog Catalog, itemID int64, delta int, t TransactionType) error {
	i := c.find(itemID)
	if i < 0 {
		return fmt.Errorf("%w: item %d", ErrLineNotFound, itemID)
	}

	next := c.lines[i].Quantity + delta
	if delta > 0 && next < c.lines[i].Quantity {
		return fmt.Errorf("%w: item %d quantity overflows", ErrStockLimitReached, itemID)
	}
	if delta > 0 && t != TypeReturn {
		stock := 0
		if catalog != nil {
			if it, ok := catalog.Item(itemID); ok {
				stock = it.Stock
			}
		}
		if next > stock {
			return fmt.Errorf("%w: item %d has %d in stock", ErrStockLimitReached, itemID, stock)
		}
	}

	if next <= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	}
	c.lines[i].Quantity = next
	return nil
}

func (c *Cart) Clear() { c.lines = nil }

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) Quantity(itemID int64) int {
	if i := c.find(itemID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

func (c *Cart) find(itemID int64) int {
	for i := range c.lines {
		if c.lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}
