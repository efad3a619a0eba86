// Package cart holds the in-memory shopping cart. Nothing here touches the
// network; persistence is the backend's job once checkout runs.
package cart

import "sync"

// Product is the subset of the catalog record the cart needs.
type Product struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// Item is one cart line.
type Item struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Cart is a mutex-guarded list of product/quantity pairs. Totals are always
// derived from the items, never stored, so they cannot desync.
//
// Invariants: product identity is unique per entry (adding an existing
// product merges quantities), and quantity is at least 1 — decrements clamp
// at 1, only an explicit Remove deletes a line.
type Cart struct {
	mu    sync.Mutex
	items []Item
}

// New returns an empty cart.
func New() *Cart { return &Cart{} }

// Add puts qty units of p in the cart, merging into an existing line for
// the same product. A qty below 1 counts as 1.
func (c *Cart) Add(p Product, qty int) {
	if qty < 1 {
		qty = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].Product.ID == p.ID {
			c.items[i].Quantity += qty
			return
		}
	}
	c.items = append(c.items, Item{Product: p, Quantity: qty})
}

// UpdateQuantity sets the quantity for productID, clamping at 1. It never
// removes the line; removal is an explicit separate action.
func (c *Cart) UpdateQuantity(productID, qty int) {
	if qty < 1 {
		qty = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			c.items[i].Quantity = qty
			return
		}
	}
}

// Remove deletes the line for productID, if present.
func (c *Cart) Remove(productID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a copy of the current lines in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// SubtotalCents is Σ price × quantity over current lines.
func (c *Cart) SubtotalCents() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum int64
	for _, item := range c.items {
		sum += item.Product.PriceCents * int64(item.Quantity)
	}
	return sum
}

// ItemCount is Σ quantity over current lines.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

// Len is the number of distinct lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
