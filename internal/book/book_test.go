package book_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/internal/book"
	"matchbook/internal/cmap"
)

// recordingEmitter captures every event a Book produces so tests can
// assert against them directly, the way the teacher's orderbook tests
// snapshot book levels rather than comparing printed output.
type recordingEmitter struct {
	mu        sync.Mutex
	added     []book.Order
	executed  []book.Execution
	canceled  []canceledEvent
}

type canceledEvent struct {
	ID       book.OrderID
	Accepted bool
}

func (e *recordingEmitter) Added(o book.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.added = append(e.added, o)
}

func (e *recordingEmitter) Executed(x book.Execution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, x)
}

func (e *recordingEmitter) Canceled(id book.OrderID, accepted bool, _, _ int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.canceled = append(e.canceled, canceledEvent{ID: id, Accepted: accepted})
}

func newTestBook() (*book.Book, *cmap.Map[book.OrderID, *book.Order], *recordingEmitter) {
	b := book.NewBook("IBM")
	idx := cmap.New[book.OrderID, *book.Order](cmap.HashUint32)
	emitter := &recordingEmitter{}
	return b, idx, emitter
}

var clock int64

func fakeNow() int64 {
	return atomic.AddInt64(&clock, 1)
}

func TestRestWhenNothingCrosses(t *testing.T) {
	b, idx, emit := newTestBook()

	order := book.NewOrder(1, book.Buy, "IBM", 100, 10, 1)
	b.ProcessBuy(order, idx, fakeNow, emit)

	require.Len(t, emit.added, 1)
	assert.Empty(t, emit.executed)
	assert.Equal(t, book.Quantity(10), order.Remaining)

	resting, ok := idx.Get(1)
	require.True(t, ok)
	assert.Equal(t, book.Quantity(10), resting.Remaining)
}

func TestFullMatchAgainstSingleRestingOrder(t *testing.T) {
	b, idx, emit := newTestBook()

	sell := book.NewOrder(1, book.Sell, "IBM", 100, 10, 1)
	b.ProcessSell(sell, idx, fakeNow, emit)

	buy := book.NewOrder(2, book.Buy, "IBM", 100, 10, 2)
	b.ProcessBuy(buy, idx, fakeNow, emit)

	require.Len(t, emit.executed, 1)
	exec := emit.executed[0]
	assert.Equal(t, book.OrderID(1), exec.RestingID)
	assert.Equal(t, book.OrderID(2), exec.IncomingID)
	assert.Equal(t, book.Quantity(10), exec.Qty)
	assert.Equal(t, uint32(1), exec.ExecID)

	assert.Equal(t, book.Quantity(0), buy.Remaining)
	_, stillResting := idx.Get(1)
	assert.False(t, stillResting, "fully filled resting order must leave the id index")
}

func TestPartialMatchLeavesRestingOrderInPlace(t *testing.T) {
	b, idx, emit := newTestBook()

	sell := book.NewOrder(1, book.Sell, "IBM", 100, 10, 1)
	b.ProcessSell(sell, idx, fakeNow, emit)

	buy := book.NewOrder(2, book.Buy, "IBM", 100, 4, 2)
	b.ProcessBuy(buy, idx, fakeNow, emit)

	require.Len(t, emit.executed, 1)
	assert.Equal(t, book.Quantity(4), emit.executed[0].Qty)
	assert.Equal(t, book.Quantity(0), buy.Remaining)

	resting, ok := idx.Get(1)
	require.True(t, ok, "partially filled resting order stays in the book")
	assert.Equal(t, book.Quantity(6), resting.Remaining)
	assert.Equal(t, uint32(2), resting.ExecutionID, "execution counter advances past the pre-increment value reported")
}

func TestPriceTimePriorityAmongRestingSells(t *testing.T) {
	b, idx, emit := newTestBook()

	cheap := book.NewOrder(1, book.Sell, "IBM", 99, 5, 1)
	b.ProcessSell(cheap, idx, fakeNow, emit)

	expensive := book.NewOrder(2, book.Sell, "IBM", 100, 5, 2)
	b.ProcessSell(expensive, idx, fakeNow, emit)

	newerAtCheap := book.NewOrder(3, book.Sell, "IBM", 99, 5, 3)
	b.ProcessSell(newerAtCheap, idx, fakeNow, emit)

	buy := book.NewOrder(4, book.Buy, "IBM", 100, 10, 4)
	b.ProcessBuy(buy, idx, fakeNow, emit)

	require.Len(t, emit.executed, 2, "only the best-priced level should fully absorb this order")
	assert.Equal(t, book.OrderID(1), emit.executed[0].RestingID, "best price, then FIFO within the level")
	assert.Equal(t, book.OrderID(3), emit.executed[1].RestingID)
}

func TestCancelRemovesRestingOrder(t *testing.T) {
	b, idx, emit := newTestBook()

	order := book.NewOrder(1, book.Buy, "IBM", 100, 10, 1)
	b.ProcessBuy(order, idx, fakeNow, emit)

	b.ProcessCancel(order, idx, fakeNow, emit)

	require.Len(t, emit.canceled, 1)
	assert.True(t, emit.canceled[0].Accepted)
	_, ok := idx.Get(1)
	assert.False(t, ok)
}

func TestCancelRejectsAlreadyFilledOrder(t *testing.T) {
	b, idx, emit := newTestBook()

	sell := book.NewOrder(1, book.Sell, "IBM", 100, 5, 1)
	b.ProcessSell(sell, idx, fakeNow, emit)
	buy := book.NewOrder(2, book.Buy, "IBM", 100, 5, 2)
	b.ProcessBuy(buy, idx, fakeNow, emit)

	// sell #1 is now fully filled and gone from the book; canceling it
	// must be rejected even though the caller still holds a reference.
	b.ProcessCancel(sell, idx, fakeNow, emit)

	require.Len(t, emit.canceled, 1)
	assert.False(t, emit.canceled[0].Accepted)
}

func TestConcurrentOppositeSideOrdersDoNotDeadlock(t *testing.T) {
	b, idx, emit := newTestBook()

	var wg sync.WaitGroup
	for i := book.OrderID(0); i < 200; i++ {
		wg.Add(2)
		go func(id book.OrderID) {
			defer wg.Done()
			b.ProcessBuy(book.NewOrder(id*2+1, book.Buy, "IBM", 100, 1, int64(id)), idx, fakeNow, emit)
		}(i)
		go func(id book.OrderID) {
			defer wg.Done()
			b.ProcessSell(book.NewOrder(id*2+2, book.Sell, "IBM", 100, 1, int64(id)), idx, fakeNow, emit)
		}(i)
	}
	wg.Wait()

	emit.mu.Lock()
	defer emit.mu.Unlock()
	assert.Len(t, emit.executed, 200, "every buy should match exactly one sell at the same price")
}
