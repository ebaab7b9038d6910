package book

import "matchbook/internal/cmap"

// Execution is one trade produced by matching an incoming order against a
// resting one. Price is always the resting order's price (price improvement
// always favors the resting side), and ExecID is the resting order's
// execution counter value *before* it was incremented for this fill.
type Execution struct {
	RestingID  OrderID
	IncomingID OrderID
	ExecID     uint32
	Price      Price
	Qty        Quantity
	InputTime  int64
	BookTime   int64
}

// side is one half (buy or sell) of a Book: a sentinel-headed singly-linked
// list of priceLevel nodes, walked hand-over-hand. better and crosses
// encode the only two things that differ between a buy side and a sell
// side, so the traversal logic below is written once and shared.
type side struct {
	head priceLevel // sentinel; price and volume unused

	// better reports whether price a should sit strictly ahead of price b
	// in this side's resting order (descending for buy, ascending for sell).
	better func(a, b Price) bool

	// crosses reports whether a resting level at levelPrice is matchable
	// against an incoming order on the *opposite* side priced orderPrice.
	crosses func(levelPrice, orderPrice Price) bool
}

func newBuySide() *side {
	return &side{
		better:  func(a, b Price) bool { return a > b },
		crosses: func(levelPrice, orderPrice Price) bool { return levelPrice >= orderPrice },
	}
}

func newSellSide() *side {
	return &side{
		better:  func(a, b Price) bool { return a < b },
		crosses: func(levelPrice, orderPrice Price) bool { return levelPrice <= orderPrice },
	}
}

// admissionWalk locks s.head and then, hand-over-hand but WITHOUT
// releasing any lock it acquires, walks forward summing resting volume
// against qty until either the running total reaches qty (fullyMatches)
// or it reaches a level that no longer crosses price (the walk stops and
// that level's lock is released before returning).
//
// Every lock still held on return is handed to a subsequent call to
// match, which consumes exactly that chain and releases each node as it
// finishes with it. This is the same pre-lock-then-hand-off shape as
// OrderBook::processBuyOrder / processSellOrder in the source engine this
// package is ported from.
func (s *side) admissionWalk(qty Quantity, price Price) (fullyMatches bool) {
	remaining := int64(qty)
	s.head.mu.Lock()
	curr := s.head.next
	for remaining > 0 && curr != nil {
		curr.mu.Lock()
		if !s.crosses(curr.price, price) {
			curr.mu.Unlock()
			break
		}
		remaining -= int64(curr.volume)
		curr = curr.next
	}
	return remaining <= 0
}

// match consumes the lock chain left held by admissionWalk, filling order
// against resting levels oldest-order-first until either order is fully
// filled or it reaches a level that no longer crosses. It releases s.head
// and every subsequent node it visits before returning.
func (s *side) match(order *Order, idIndex *cmap.Map[OrderID, *Order], now func() int64, emit func(Execution)) {
	curr := s.head.next
	s.head.mu.Unlock()

	for order.Remaining > 0 && curr != nil && s.crosses(curr.price, order.Price) {
		consumed := 0
		for _, resting := range curr.orders {
			if order.Remaining == 0 {
				break
			}
			matched := resting.Remaining
			if order.Remaining < matched {
				matched = order.Remaining
			}

			execID := resting.ExecutionID
			emit(Execution{
				RestingID:  resting.ID,
				IncomingID: order.ID,
				ExecID:     execID,
				Price:      resting.Price,
				Qty:        matched,
				InputTime:  order.InputTime,
				BookTime:   now(),
			})
			resting.ExecutionID++
			resting.Remaining -= matched
			order.Remaining -= matched
			curr.volume -= matched

			if resting.Remaining == 0 {
				idIndex.Delete(resting.ID)
				consumed++
			} else {
				break
			}
		}
		if consumed > 0 {
			curr.orders = curr.orders[consumed:]
		}

		next := curr.next
		curr.mu.Unlock()
		curr = next
	}
}

// insert rests order on this side. The sentinel must already be locked by
// the caller (the book's admission step locks the own side's sentinel
// before deciding to call insert) and insert releases every lock it
// acquires before returning.
func (s *side) insert(order *Order, idIndex *cmap.Map[OrderID, *Order], now func() int64, emit func(Order)) {
	pred := &s.head
	for {
		next := pred.next
		if next == nil {
			break
		}
		next.mu.Lock()
		if order.Price == next.price {
			pred.mu.Unlock()
			pred = next
			break
		}
		if s.better(next.price, order.Price) {
			pred.mu.Unlock()
			pred = next
			continue
		}
		next.mu.Unlock()
		break
	}

	var level *priceLevel
	if pred != &s.head && pred.price == order.Price {
		level = pred
	} else {
		level = &priceLevel{price: order.Price, next: pred.next}
		level.mu.Lock()
		pred.next = level
		pred.mu.Unlock()
	}

	order.BookTime = now()
	level.orders = append(level.orders, order)
	level.volume += order.Remaining
	idIndex.Put(order.ID, order)
	emit(*order)
	level.mu.Unlock()
}

// cancel removes order from this side, if it is still resting there. It
// acquires its own lock chain from s.head (no pre-locked hand-off, unlike
// insert/match) since a cancel can arrive for any resting order at any
// time, independent of any admission walk.
func (s *side) cancel(order *Order, idIndex *cmap.Map[OrderID, *Order]) bool {
	s.head.mu.Lock()
	curr := s.head.next
	if curr != nil {
		curr.mu.Lock()
	}
	s.head.mu.Unlock()

	for curr != nil && curr.price != order.Price {
		next := curr.next
		if next == nil {
			curr.mu.Unlock()
			curr = nil
			break
		}
		next.mu.Lock()
		curr.mu.Unlock()
		curr = next
	}

	if curr == nil {
		return false
	}
	defer curr.mu.Unlock()

	for i, o := range curr.orders {
		if o.ID == order.ID {
			curr.volume -= o.Remaining
			curr.orders = append(curr.orders[:i:i], curr.orders[i+1:]...)
			idIndex.Delete(order.ID)
			return true
		}
	}
	return false
}
