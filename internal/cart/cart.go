package cart

import (
	"fmt"
	"time"
)

// Item is one selected line in a shopper's cart.
type Item struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Color       string  `json:"color"`
	Size        string  `json:"size"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Cart aggregates the shopper's selected items. It is purely local state:
// no stock or price validation happens here, that is deferred to order
// creation. A Cart is not safe for concurrent use; each shopper session
// owns exactly one.
type Cart struct {
	items []Item
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add appends an item to the cart.
func (c *Cart) Add(item Item) {
	c.items = append(c.items, item)
}

// Remove deletes the item at the given index.
func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.items) {
		return fmt.Errorf("cart index %d out of range", index)
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	return nil
}

// SetQuantity changes the quantity of the item at the given index.
func (c *Cart) SetQuantity(index, quantity int) error {
	if index < 0 || index >= len(c.items) {
		return fmt.Errorf("cart index %d out of range", index)
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	c.items[index].Quantity = quantity
	return nil
}

// Total recomputes the cart total from the current entries on every call.
// It is never cached.
func (c *Cart) Total() float64 {
	var total float64
	for _, item := range c.items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// Len returns the number of lines currently in the cart.
func (c *Cart) Len() int {
	return len(c.items)
}

// Items returns a copy of the current entries.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Clear empties the cart. The checkout workflow invokes this after a
// payment has been verified; any other use is shopper-driven.
func (c *Cart) Clear() {
	c.items = nil
}

// Snapshot is an immutable copy of the cart taken at checkout time. Later
// cart edits never affect an existing snapshot. CapturedAt records when the
// prices were read, so order creation can decide whether they are fresh
// enough to trust or must be re-read from the catalog.
type Snapshot struct {
	Items      []Item    `json:"items"`
	CapturedAt time.Time `json:"captured_at"`
}

// Snapshot deep-copies the current entries into a new Snapshot.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Items:      c.Items(),
		CapturedAt: time.Now(),
	}
}

// Total is the sum of unit_price*quantity over the snapshot's items.
func (s Snapshot) Total() float64 {
	var total float64
	for _, item := range s.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}
