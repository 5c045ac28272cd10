package model

import "errors"

var (
	ErrItemNotInCart  = errors.New("item is not in the cart")
	ErrMalformedPrice = errors.New("malformed price")
)

type CartItem struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// Cart keeps items in insertion order with at most one entry per ID.
// Every ID present in items has its added flag set.
type Cart struct {
	items []CartItem
	added map[int]bool
}

func NewCart() *Cart {
	return &Cart{added: make(map[int]bool)}
}

// Add reports whether the item was inserted. Re-adding a known ID is a no-op.
func (c *Cart) Add(item CartItem) bool {
	if c.Contains(item.ID) {
		return false
	}
	c.items = append(c.items, item)
	c.added[item.ID] = true
	return true
}

func (c *Cart) Remove(id int) bool {
	for i, item := range c.items {
		if item.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			delete(c.added, id)
			return true
		}
	}
	return false
}

func (c *Cart) Clear() {
	c.items = nil
	c.added = make(map[int]bool)
}

func (c *Cart) Contains(id int) bool {
	for _, item := range c.items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (c *Cart) Items() []CartItem {
	items := make([]CartItem, len(c.items))
	copy(items, c.items)
	return items
}

func (c *Cart) AddedFlags() map[int]bool {
	flags := make(map[int]bool, len(c.added))
	for id, v := range c.added {
		flags[id] = v
	}
	return flags
}

func (c *Cart) Len() int { return len(c.items) }
