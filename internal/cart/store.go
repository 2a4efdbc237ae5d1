// Package cart holds the in-progress kiosk order. State lives only in memory.
package cart

import (
	"sync"

	"github.com/ariefcatur/go-kiosk/internal/catalog"
)

type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Line is the product id / quantity pair sent to the payment backend.
type Line struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Store is the single source of truth for the order being built. Items are
// unique by product id and never held at quantity zero.
type Store struct {
	mu     sync.Mutex
	items  []Item
	isOpen bool
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) AddToCart(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isOpen = true
	if i := s.indexOf(p.ID); i >= 0 {
		s.items[i].Quantity++
		return
	}
	s.items = append(s.items, Item{Product: p, Quantity: 1})
}

func (s *Store) RemoveFromCart(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(productID); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
}

// UpdateQuantity adds delta to the item's quantity. The result is clamped at
// zero and a zero quantity removes the item.
func (s *Store) UpdateQuantity(productID int64, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	q := max(0, s.items[i].Quantity+delta)
	if q == 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
		return
	}
	s.items[i].Quantity = q
}

func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// Total is recomputed on every call, in cents.
func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, it := range s.items {
		sum += it.Product.Price * int64(it.Quantity)
	}
	return sum
}

func (s *Store) ToggleCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isOpen = !s.isOpen
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOpen
}

func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, Line{ProductID: it.Product.ID, Quantity: it.Quantity})
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Count is the number of units in the cart (the badge on the cart button).
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

func (s *Store) indexOf(productID int64) int {
	for i, it := range s.items {
		if it.Product.ID == productID {
			return i
		}
	}
	return -1
}
