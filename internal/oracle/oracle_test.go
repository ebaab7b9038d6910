package oracle

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/internal/book"
	"matchbook/internal/wire"
)

func buyOrder(id book.OrderID, instrument string, price book.Price, count book.Quantity) ScriptOrder {
	return ScriptOrder{ID: id, Side: book.Buy, Instrument: instrument, Price: price, Count: count}
}

func sellOrder(id book.OrderID, instrument string, price book.Price, count book.Quantity) ScriptOrder {
	return ScriptOrder{ID: id, Side: book.Sell, Instrument: instrument, Price: price, Count: count}
}

func TestCheckAcceptsSimpleRestThenMatch(t *testing.T) {
	seed := []ScriptOrder{
		sellOrder(1, "IBM", 100, 10),
		buyOrder(2, "IBM", 100, 10),
	}
	lines := []wire.OutputLine{
		{Kind: wire.LineSell, OrderID: 1, Instrument: "IBM", Price: 100, Count: 10, InputTime: 1, OutputTime: 1},
		{Kind: wire.LineExec, RestingID: 1, NewID: 2, ExecID: 1, Price: 100, Count: 10, InputTime: 2, OutputTime: 2},
	}

	result := Check(seed, lines)
	assert.True(t, result.OK)
}

func TestCheckRejectsWrongExecutionID(t *testing.T) {
	seed := []ScriptOrder{
		sellOrder(1, "IBM", 100, 10),
		buyOrder(2, "IBM", 100, 10),
	}
	lines := []wire.OutputLine{
		{Kind: wire.LineSell, OrderID: 1, Instrument: "IBM", Price: 100, Count: 10, InputTime: 1, OutputTime: 1},
		{Kind: wire.LineExec, RestingID: 1, NewID: 2, ExecID: 2, Price: 100, Count: 10, InputTime: 2, OutputTime: 2},
	}

	result := Check(seed, lines)
	assert.False(t, result.OK)
	require.NotEmpty(t, result.Failures)
}

func TestCheckRejectsExecutionThatNeverCrosses(t *testing.T) {
	seed := []ScriptOrder{
		sellOrder(1, "IBM", 105, 10),
		buyOrder(2, "IBM", 100, 10),
	}
	lines := []wire.OutputLine{
		{Kind: wire.LineSell, OrderID: 1, Instrument: "IBM", Price: 105, Count: 10, InputTime: 1, OutputTime: 1},
		{Kind: wire.LineExec, RestingID: 1, NewID: 2, ExecID: 1, Price: 105, Count: 10, InputTime: 2, OutputTime: 2},
	}

	result := Check(seed, lines)
	assert.False(t, result.OK)
	require.NotEmpty(t, result.Failures)
}

func TestCheckAcceptsCancelOfRestingOrder(t *testing.T) {
	seed := []ScriptOrder{buyOrder(1, "IBM", 100, 10)}
	lines := []wire.OutputLine{
		{Kind: wire.LineBuy, OrderID: 1, Instrument: "IBM", Price: 100, Count: 10, InputTime: 1, OutputTime: 1},
		{Kind: wire.LineCancel, OrderID: 1, Accepted: true, InputTime: 2, OutputTime: 2},
	}

	result := Check(seed, lines)
	assert.True(t, result.OK)
}

func TestCheckRejectsCancelAcceptedTwice(t *testing.T) {
	seed := []ScriptOrder{buyOrder(1, "IBM", 100, 10)}
	lines := []wire.OutputLine{
		{Kind: wire.LineBuy, OrderID: 1, Instrument: "IBM", Price: 100, Count: 10, InputTime: 1, OutputTime: 1},
		{Kind: wire.LineCancel, OrderID: 1, Accepted: true, InputTime: 2, OutputTime: 2},
		{Kind: wire.LineCancel, OrderID: 1, Accepted: true, InputTime: 3, OutputTime: 3},
	}

	result := Check(seed, lines)
	assert.False(t, result.OK)
}

func TestCheckToleratesPureTimePriorityVariant(t *testing.T) {
	// Two sells at different prices both cross the buy; price-time
	// priority would demand the cheaper one fill first, but a pure-time
	// engine may legally fill whichever rested first regardless of price.
	seed := []ScriptOrder{
		sellOrder(1, "IBM", 101, 5),
		sellOrder(2, "IBM", 100, 5),
		buyOrder(3, "IBM", 101, 5),
	}
	lines := []wire.OutputLine{
		{Kind: wire.LineSell, OrderID: 1, Instrument: "IBM", Price: 101, Count: 5, InputTime: 1, OutputTime: 1},
		{Kind: wire.LineSell, OrderID: 2, Instrument: "IBM", Price: 100, Count: 5, InputTime: 2, OutputTime: 2},
		{Kind: wire.LineExec, RestingID: 1, NewID: 3, ExecID: 1, Price: 101, Count: 5, InputTime: 3, OutputTime: 3},
	}

	result := Check(seed, lines)
	assert.True(t, result.OK)
}

func TestCheckAcceptsTiedPriorityMatch(t *testing.T) {
	// Two sells at the same price, booked at the same input and output
	// timestamp, are indistinguishable under every priority variant's
	// tiebreak; matching either one against the crossing buy is legal.
	seed := []ScriptOrder{
		sellOrder(1, "IBM", 100, 5),
		sellOrder(2, "IBM", 100, 5),
		buyOrder(3, "IBM", 100, 5),
	}
	lines := []wire.OutputLine{
		{Kind: wire.LineSell, OrderID: 1, Instrument: "IBM", Price: 100, Count: 5, InputTime: 1, OutputTime: 1},
		{Kind: wire.LineSell, OrderID: 2, Instrument: "IBM", Price: 100, Count: 5, InputTime: 1, OutputTime: 1},
		{Kind: wire.LineExec, RestingID: 2, NewID: 3, ExecID: 1, Price: 100, Count: 5, InputTime: 2, OutputTime: 2},
	}

	result := Check(seed, lines)
	assert.True(t, result.OK)
}

func TestOracleFeedReleasesLatchOnFullFill(t *testing.T) {
	seed := []ScriptOrder{
		sellOrder(1, "IBM", 100, 10),
		buyOrder(2, "IBM", 100, 10),
	}
	o := NewOracle(seed, 2, zerolog.Nop())

	assert.False(t, o.Quiescent())

	o.Feed(wire.OutputLine{Kind: wire.LineSell, OrderID: 1, Instrument: "IBM", Price: 100, Count: 10})
	o.Feed(wire.OutputLine{Kind: wire.LineExec, RestingID: 1, NewID: 2, ExecID: 1, Price: 100, Count: 10})

	assert.True(t, o.Quiescent())

	l := o.Latch(1)
	l.Acquire(zerolog.Nop(), 1)
	l.Acquire(zerolog.Nop(), 1)
}

func TestOracleFeedReleasesLatchOnBooking(t *testing.T) {
	// A rest-only order has nothing further owed to it once it books: the
	// booking line itself settles it and releases its completion latch,
	// the same as a full fill or an accepted cancel would.
	seed := []ScriptOrder{buyOrder(1, "IBM", 100, 10)}
	o := NewOracle(seed, 1, zerolog.Nop())

	assert.False(t, o.Quiescent())

	o.Feed(wire.OutputLine{Kind: wire.LineBuy, OrderID: 1, Instrument: "IBM", Price: 100, Count: 10})
	assert.True(t, o.Quiescent())

	l := o.Latch(1)
	l.Acquire(zerolog.Nop(), 1)
}

func TestOracleSettleIsIdempotentAcrossBookingAndCancel(t *testing.T) {
	seed := []ScriptOrder{buyOrder(1, "IBM", 100, 10)}
	o := NewOracle(seed, 1, zerolog.Nop())

	o.Feed(wire.OutputLine{Kind: wire.LineBuy, OrderID: 1, Instrument: "IBM", Price: 100, Count: 10})
	o.Feed(wire.OutputLine{Kind: wire.LineCancel, OrderID: 1, Accepted: true})

	l := o.Latch(1)
	l.Acquire(zerolog.Nop(), 1)
}

func TestIsSpuriousIndexDetectsConsecutiveRuns(t *testing.T) {
	lines := []wire.OutputLine{
		{OutputTime: 1},
		{OutputTime: 2},
		{OutputTime: 2},
		{OutputTime: 3},
	}
	assert.False(t, isSpuriousIndex(lines, 0))
	assert.True(t, isSpuriousIndex(lines, 1))
	assert.True(t, isSpuriousIndex(lines, 2))
	assert.False(t, isSpuriousIndex(lines, 3))
}
