package oracle

import (
	"sync"

	"github.com/rs/zerolog"

	"matchbook/internal/book"
	"matchbook/internal/latch"
	"matchbook/internal/wire"
)

// Oracle is the grader's live view of a session: it consumes the engine's
// output stream as it arrives, releasing each order's completion latch
// the instant that order is fully resolved, and buffers the stream so
// Check can replay it once the session goes quiet.
type Oracle struct {
	seed []ScriptOrder
	log  zerolog.Logger

	numClients int

	mu        sync.Mutex
	remaining map[book.OrderID]book.Quantity
	pending   map[book.OrderID]struct{}
	latches   map[book.OrderID]*latch.Latch
	trace     []wire.OutputLine
}

// NewOracle seeds an Oracle from every buy/sell command the script will
// send, so completion can be tracked even for orders the engine fills
// immediately without ever emitting a resting line.
func NewOracle(seed []ScriptOrder, numClients int, log zerolog.Logger) *Oracle {
	remaining := make(map[book.OrderID]book.Quantity, len(seed))
	pending := make(map[book.OrderID]struct{}, len(seed))
	for _, o := range seed {
		remaining[o.ID] = o.Count
		pending[o.ID] = struct{}{}
	}
	return &Oracle{
		seed:       seed,
		log:        log.With().Str("component", "oracle").Logger(),
		numClients: numClients,
		remaining:  remaining,
		pending:    pending,
		latches:    make(map[book.OrderID]*latch.Latch),
	}
}

// Feed records one line of engine output, updating remaining-quantity
// bookkeeping and releasing any order's latch the moment it rests, is
// fully filled, or is accepted-canceled, whichever comes first.
func (o *Oracle) Feed(line wire.OutputLine) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.trace = append(o.trace, line)

	switch line.Kind {
	case wire.LineBuy, wire.LineSell:
		o.settle(line.OrderID)
	case wire.LineExec:
		o.fill(line.RestingID, line.Count)
		o.fill(line.NewID, line.Count)
	case wire.LineCancel:
		if line.Accepted {
			o.settle(line.OrderID)
		}
	}
}

func (o *Oracle) fill(id book.OrderID, qty book.Quantity) {
	if r, ok := o.remaining[id]; ok {
		if qty > r {
			qty = r
		}
		o.remaining[id] = r - qty
		if o.remaining[id] == 0 {
			o.settle(id)
		}
	}
}

// settle releases id's completion latch the first time it is called for
// id; later calls for the same id do nothing. o.mu must already be held.
func (o *Oracle) settle(id book.OrderID) {
	if _, ok := o.pending[id]; !ok {
		return
	}
	delete(o.pending, id)
	o.latchFor(id).Release(o.numClients)
}

func (o *Oracle) latchFor(id book.OrderID) *latch.Latch {
	l, ok := o.latches[id]
	if !ok {
		l = latch.New(o.numClients)
		o.latches[id] = l
	}
	return l
}

// Latch returns the completion latch for id, creating it if no output has
// referenced the order yet; a wait directive may arrive before the order
// finishes.
func (o *Oracle) Latch(id book.OrderID) *latch.Latch {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latchFor(id)
}

// Quiescent reports whether every seeded order has rested, fully filled,
// or been accepted for cancellation.
func (o *Oracle) Quiescent() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending) == 0
}

// Trace returns a snapshot of every line fed so far.
func (o *Oracle) Trace() []wire.OutputLine {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]wire.OutputLine, len(o.trace))
	copy(out, o.trace)
	return out
}

// Check replays the buffered trace against the seed orders under every
// priority-semantics variant this session's script could be consistent
// with, returning the first clean result or, failing that, every
// attempt's failure with an overall spurious-failure verdict.
func (o *Oracle) Check() Result {
	return Check(o.seed, o.Trace())
}
