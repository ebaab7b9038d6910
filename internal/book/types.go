// Package book implements the per-instrument limit order book: two price-
// sorted sides with hand-over-hand node locking, and a book-level mutex
// that serializes the admission decision between resting and matching.
//
// The locking discipline is a direct port of the engine described in
// _examples/original_source/Assignment1 - C++/src/engine.cpp, the original
// implementation this system's specification was distilled from.
package book

// OrderID, Price and Quantity are plain aliases rather than distinct types:
// the book does arithmetic (summing volumes, subtracting fills) directly
// against these values and the wire codec reads and writes them as plain
// uint32, so a distinct type would only add conversions with no safety
// benefit.
type (
	OrderID  = uint32
	Price    = uint32
	Quantity = uint32
)

// Side identifies which half of a book an order belongs to.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Order is a single buy or sell, live either as a book.Order resting in a
// Side's price level or freshly arrived and not yet admitted.
//
// Remaining, ExecutionID and BookTime are mutated only while the caller
// holds the lock of the priceLevel the order currently rests in (or, for an
// order not yet resting, the sentinel lock handed over by the admission
// walk) — see side.insert / side.match.
type Order struct {
	ID          OrderID
	Side        Side
	Instrument  string
	Price       Price
	Original    Quantity
	Remaining   Quantity
	ExecutionID uint32 // next execution id to report; starts at 1, monotonic
	InputTime   int64  // ns, set at ingress
	BookTime    int64  // ns, set only when the order first rests
}

// NewOrder constructs an order fresh off the wire, not yet admitted.
func NewOrder(id OrderID, side Side, instrument string, price Price, qty Quantity, inputTime int64) *Order {
	return &Order{
		ID:          id,
		Side:        side,
		Instrument:  instrument,
		Price:       price,
		Original:    qty,
		Remaining:   qty,
		ExecutionID: 1,
		InputTime:   inputTime,
	}
}
