package book

import (
	"sync"

	"matchbook/internal/cmap"
)

// Emitter receives the events a Book produces as it processes orders. The
// engine implements it to serialize events onto the output stream; tests
// implement it to capture events for assertions.
type Emitter interface {
	Added(order Order)
	Executed(exec Execution)
	Canceled(id OrderID, accepted bool, inputTime, now int64)
}

// Book is the order book for a single instrument: a buy side, a sell
// side, and the mutex that serializes the admission decision between
// them. The lock ordering is always book mutex, then opposite-side
// sentinel, then (conditionally) own-side sentinel — see ProcessBuy /
// ProcessSell — which is what prevents two orders on opposite sides of
// the same instrument from deadlocking against each other.
type Book struct {
	Instrument string

	mu   sync.Mutex
	buy  *side
	sell *side
}

func NewBook(instrument string) *Book {
	return &Book{
		Instrument: instrument,
		buy:        newBuySide(),
		sell:       newSellSide(),
	}
}

// ProcessBuy admits an incoming buy order: it first determines, under the
// book mutex, whether the order will be fully satisfied by resting sell
// volume, matches against the sell side, and rests any remainder on the
// buy side.
func (b *Book) ProcessBuy(order *Order, idIndex *cmap.Map[OrderID, *Order], now func() int64, emit Emitter) {
	b.mu.Lock()
	fullyMatches := b.sell.admissionWalk(order.Remaining, order.Price)
	if !fullyMatches {
		b.buy.head.mu.Lock()
	}
	b.mu.Unlock()

	b.sell.match(order, idIndex, now, emit.Executed)
	if order.Remaining > 0 {
		b.buy.insert(order, idIndex, now, emit.Added)
	}
}

// ProcessSell is the mirror of ProcessBuy with the sides swapped.
func (b *Book) ProcessSell(order *Order, idIndex *cmap.Map[OrderID, *Order], now func() int64, emit Emitter) {
	b.mu.Lock()
	fullyMatches := b.buy.admissionWalk(order.Remaining, order.Price)
	if !fullyMatches {
		b.sell.head.mu.Lock()
	}
	b.mu.Unlock()

	b.buy.match(order, idIndex, now, emit.Executed)
	if order.Remaining > 0 {
		b.sell.insert(order, idIndex, now, emit.Added)
	}
}

// ProcessCancel attempts to remove order from whichever side it rests on.
// order must be the resting order previously looked up by order id (the
// caller, the engine's global order index, already knows its side).
func (b *Book) ProcessCancel(order *Order, idIndex *cmap.Map[OrderID, *Order], now func() int64, emit Emitter) {
	var ok bool
	if order.Side == Buy {
		ok = b.buy.cancel(order, idIndex)
	} else {
		ok = b.sell.cancel(order, idIndex)
	}
	emit.Canceled(order.ID, ok, order.InputTime, now())
}
