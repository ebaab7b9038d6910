// Package oracle implements the grader's correctness checker: it replays
// the engine's output against an expected book state, seeded from the
// script, and decides whether the trace is consistent with a legal
// matching order.
package oracle

import "matchbook/internal/book"

// ScriptOrder is everything the oracle needs to know about a buy/sell
// command before any output referencing it has arrived, taken directly
// from the script that seeded the session.
type ScriptOrder struct {
	ID         book.OrderID
	Side       book.Side
	Instrument string
	Price      book.Price
	Count      book.Quantity
}

type orderState int

const (
	stateActive orderState = iota
	stateBooked
	stateFilled
)

// orderStatus is the oracle's working model of one order during a single
// replay attempt. It is always rebuilt fresh at the start of an attempt:
// FilledCount, State and timestamps all mutate as the replay consumes the
// trace.
type orderStatus struct {
	ID          book.OrderID
	Side        book.Side
	Instrument  string
	Price       book.Price
	Count       book.Quantity
	FilledCount book.Quantity
	State       orderState
	InputTime   int64
	BookTime    int64
	NextExecID  uint32
}

func newOrderStatuses(seed []ScriptOrder) map[book.OrderID]*orderStatus {
	out := make(map[book.OrderID]*orderStatus, len(seed))
	for _, o := range seed {
		out[o.ID] = &orderStatus{
			ID:         o.ID,
			Side:       o.Side,
			Instrument: o.Instrument,
			Price:      o.Price,
			Count:      o.Count,
			State:      stateActive,
			NextExecID: 1,
		}
	}
	return out
}
