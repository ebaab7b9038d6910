package book

import "sync"

// priceLevel is one node of a Side's singly-linked list: a single price,
// the resting orders at that price in FIFO (oldest-first) order, and the
// running sum of their remaining quantity.
//
// orders is kept oldest-first by construction: an order is only ever
// appended while the level's own lock is held, at the moment it first
// rests, so append order already is book-entry-time order.
type priceLevel struct {
	mu      sync.Mutex
	price   Price
	volume  Quantity
	orders  []*Order
	next    *priceLevel
}
