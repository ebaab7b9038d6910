package oracle

import (
	"fmt"

	"github.com/tidwall/btree"

	"matchbook/internal/book"
)

// variant names one of the four priority semantics the original engine's
// spec leaves ambiguous: whether price takes precedence over arrival order
// at all, and whether "arrival order" means the time an order first
// rested (book time) or the time it was originally submitted (input time).
type variant struct {
	name      string
	priceTime bool // false: pure time priority, price only gates eligibility
	bookTime  bool // which timestamp field breaks ties / orders pure-time
}

// variants lists the four semantics in the preference order replay tries
// them: price-time priority is attempted before pure-time priority, and
// within each, book-time before input-time.
var variants = []variant{
	{name: "price-time-book", priceTime: true, bookTime: true},
	{name: "price-time-input", priceTime: true, bookTime: false},
	{name: "time-book", priceTime: false, bookTime: true},
	{name: "time-input", priceTime: false, bookTime: false},
}

func (v variant) timestamp(o *orderStatus) int64 {
	if v.bookTime {
		return o.BookTime
	}
	return o.InputTime
}

// instBook is the oracle's expected book for a single instrument under a
// single variant: two ordered multisets of resting orders, one per side.
// Both trees are kept ordered by (side's price ranking, timestamp, id) so
// that for a price-time variant the best match is always the first
// crossing element encountered by an ascending scan; a pure-time variant
// instead scans the whole crossing prefix for the earliest timestamp,
// since price only gates eligibility and does not rank within it.
type instBook struct {
	v    variant
	buys *btree.BTreeG[*orderStatus]
	asks *btree.BTreeG[*orderStatus]
}

func newInstBook(v variant) *instBook {
	buyLess := func(a, b *orderStatus) bool { return orderLess(v, book.Buy, a, b) }
	sellLess := func(a, b *orderStatus) bool { return orderLess(v, book.Sell, a, b) }
	return &instBook{
		v:    v,
		buys: btree.NewBTreeG(buyLess),
		asks: btree.NewBTreeG(sellLess),
	}
}

// orderLess ranks a ahead of b on the given side: by price first (best
// price for that side first), then by the variant's tiebreak timestamp,
// then by id for a total order.
func orderLess(v variant, side book.Side, a, b *orderStatus) bool {
	if a.Price != b.Price {
		if side == book.Buy {
			return a.Price > b.Price
		}
		return a.Price < b.Price
	}
	ta, tb := v.timestamp(a), v.timestamp(b)
	if ta != tb {
		return ta < tb
	}
	return a.ID < b.ID
}

func (ib *instBook) treeFor(side book.Side) *btree.BTreeG[*orderStatus] {
	if side == book.Buy {
		return ib.buys
	}
	return ib.asks
}

// crosses reports whether a resting order on restingSide at restingPrice
// is matchable against an incoming order of the opposite side priced
// orderPrice.
func crosses(restingSide book.Side, restingPrice, orderPrice book.Price) bool {
	if restingSide == book.Sell {
		return restingPrice <= orderPrice
	}
	return restingPrice >= orderPrice
}

// bestMatch returns the resting order on the opposite side that an
// incoming order must trade against next, or nil if nothing crosses.
func (ib *instBook) bestMatch(incomingSide book.Side, price book.Price) *orderStatus {
	restingSide := book.Sell
	if incomingSide == book.Sell {
		restingSide = book.Buy
	}
	tree := ib.treeFor(restingSide)

	if ib.v.priceTime {
		var found *orderStatus
		tree.Scan(func(item *orderStatus) bool {
			if !crosses(restingSide, item.Price, price) {
				return false
			}
			found = item
			return false
		})
		return found
	}

	var best *orderStatus
	tree.Scan(func(item *orderStatus) bool {
		if !crosses(restingSide, item.Price, price) {
			return false
		}
		if best == nil || ib.v.timestamp(item) < ib.v.timestamp(best) ||
			(ib.v.timestamp(item) == ib.v.timestamp(best) && item.ID < best.ID) {
			best = item
		}
		return true
	})
	return best
}

// matchAllowed reports whether resting is an acceptable counterparty for
// an incoming order of incomingSide priced price: either it is the
// tree-minimal element, or it ties with it under this variant's priority
// key. Simultaneous arrivals can leave several resting orders tied for
// best under a variant's own timestamp resolution, and any of them is a
// legal match.
func (ib *instBook) matchAllowed(incomingSide book.Side, price book.Price, resting *orderStatus) bool {
	restingSide := book.Sell
	if incomingSide == book.Sell {
		restingSide = book.Buy
	}
	if !crosses(restingSide, resting.Price, price) {
		return false
	}
	tree := ib.treeFor(restingSide)

	if ib.v.priceTime {
		var bestPrice book.Price
		var bestTS int64
		found := false
		tree.Scan(func(item *orderStatus) bool {
			if !crosses(restingSide, item.Price, price) {
				return false
			}
			bestPrice, bestTS = item.Price, ib.v.timestamp(item)
			found = true
			return false
		})
		return found && resting.Price == bestPrice && ib.v.timestamp(resting) == bestTS
	}

	var bestTS int64
	found := false
	tree.Scan(func(item *orderStatus) bool {
		if !crosses(restingSide, item.Price, price) {
			return false
		}
		if !found || ib.v.timestamp(item) < bestTS {
			bestTS = ib.v.timestamp(item)
			found = true
		}
		return true
	})
	return found && ib.v.timestamp(resting) == bestTS
}

func (ib *instBook) rest(o *orderStatus) {
	ib.treeFor(o.Side).Set(o)
}

func (ib *instBook) remove(o *orderStatus) {
	ib.treeFor(o.Side).Delete(o)
}

func (v variant) String() string { return v.name }

func (ib *instBook) String() string {
	return fmt.Sprintf("instBook{variant=%s}", ib.v.name)
}
