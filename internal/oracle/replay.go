package oracle

import (
	"fmt"
	"sort"

	"matchbook/internal/book"
	"matchbook/internal/wire"
)

// Result is the outcome of checking a captured trace against the orders
// that seeded the run.
type Result struct {
	OK bool

	// PossiblySpurious is set when every attempt failed but at least one
	// of those failures landed on a line sharing its output timestamp
	// with another line — the clock resolution the engine stamped output
	// with couldn't distinguish their true order, so the failure might be
	// an artifact of this checker's chosen tie-break rather than a real
	// engine bug.
	PossiblySpurious bool

	// Failures holds one message per failed attempt, in the order the
	// attempts were tried.
	Failures []string
}

// Check replays lines against seed under every priority-semantics variant,
// each tried against two candidate event orderings, stopping at the first
// attempt that validates cleanly.
func Check(seed []ScriptOrder, lines []wire.OutputLine) Result {
	sorted := stableSortByOutputTime(lines)

	var failures []string
	anySpurious := false

	for _, v := range variants {
		for _, ordering := range [][]wire.OutputLine{sorted, lines} {
			ok, failAt, msg := attempt(v, seed, ordering)
			if ok {
				return Result{OK: true}
			}
			failures = append(failures, fmt.Sprintf("[%s] %s", v.name, msg))
			if failAt >= 0 && isSpuriousIndex(ordering, failAt) {
				anySpurious = true
			}
		}
	}

	return Result{OK: false, PossiblySpurious: anySpurious, Failures: failures}
}

// attempt replays lines under one variant against a freshly seeded model,
// returning the index into lines the first violation was found at (-1 if
// none) and a human-readable description.
func attempt(v variant, seed []ScriptOrder, lines []wire.OutputLine) (ok bool, failAt int, msg string) {
	statuses := newOrderStatuses(seed)
	books := make(map[string]*instBook)

	bookFor := func(instrument string) *instBook {
		ib, ok := books[instrument]
		if !ok {
			ib = newInstBook(v)
			books[instrument] = ib
		}
		return ib
	}

	for i, line := range lines {
		switch line.Kind {
		case wire.LineBuy, wire.LineSell:
			o, exists := statuses[line.OrderID]
			if !exists {
				return false, i, fmt.Sprintf("line %d: order %d rests but was never submitted", i, line.OrderID)
			}
			if o.State != stateActive {
				return false, i, fmt.Sprintf("line %d: order %d rests twice", i, line.OrderID)
			}
			if o.Instrument != line.Instrument || o.Price != line.Price {
				return false, i, fmt.Sprintf("line %d: order %d rests with wrong instrument/price", i, line.OrderID)
			}
			if remaining(o) != line.Count {
				return false, i, fmt.Sprintf("line %d: order %d rests with count %d, expected %d", i, line.OrderID, line.Count, remaining(o))
			}
			ib := bookFor(o.Instrument)
			if m := ib.bestMatch(o.Side, o.Price); m != nil {
				return false, i, fmt.Sprintf("line %d: order %d rests while order %d still crosses it", i, line.OrderID, m.ID)
			}
			o.State = stateBooked
			o.InputTime = line.InputTime
			o.BookTime = line.OutputTime
			ib.rest(o)

		case wire.LineExec:
			resting, exists := statuses[line.RestingID]
			if !exists {
				return false, i, fmt.Sprintf("line %d: execution references unknown resting order %d", i, line.RestingID)
			}
			incoming, exists := statuses[line.NewID]
			if !exists {
				return false, i, fmt.Sprintf("line %d: execution references unknown incoming order %d", i, line.NewID)
			}
			if resting.State != stateBooked {
				return false, i, fmt.Sprintf("line %d: order %d is not resting", i, resting.ID)
			}
			if resting.Price != line.Price {
				return false, i, fmt.Sprintf("line %d: execution price %d does not match resting order %d's price %d", i, line.Price, resting.ID, resting.Price)
			}
			if line.ExecID != resting.NextExecID {
				return false, i, fmt.Sprintf("line %d: execution id %d for order %d, expected %d", i, line.ExecID, resting.ID, resting.NextExecID)
			}
			if line.Count == 0 || line.Count > remaining(resting) || line.Count > remaining(incoming) {
				return false, i, fmt.Sprintf("line %d: execution quantity %d exceeds remaining size", i, line.Count)
			}
			ib := bookFor(resting.Instrument)
			if !ib.matchAllowed(incoming.Side, incoming.Price, resting) {
				return false, i, fmt.Sprintf("line %d: order %d matched before a better-priority order", i, resting.ID)
			}

			resting.FilledCount += line.Count
			incoming.FilledCount += line.Count
			resting.NextExecID++
			if remaining(resting) == 0 {
				resting.State = stateFilled
				ib.remove(resting)
			}

		case wire.LineCancel:
			o, exists := statuses[line.OrderID]
			stillResting := exists && o.State == stateBooked && remaining(o) > 0
			if line.Accepted != stillResting {
				return false, i, fmt.Sprintf("line %d: cancel of order %d accepted=%v, expected %v", i, line.OrderID, line.Accepted, stillResting)
			}
			if stillResting {
				o.State = stateFilled
				bookFor(o.Instrument).remove(o)
			}

		default:
			return false, i, fmt.Sprintf("line %d: unrecognized output line kind %q", i, line.Kind)
		}
	}

	return true, -1, ""
}

func remaining(o *orderStatus) book.Quantity {
	return o.Count - o.FilledCount
}

func stableSortByOutputTime(lines []wire.OutputLine) []wire.OutputLine {
	out := make([]wire.OutputLine, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OutputTime < out[j].OutputTime })
	return out
}

// isSpuriousIndex reports whether lines[idx] shares its output timestamp
// with at least one neighboring line, the consecutive-run grouping the
// original grader uses to flag a failure as possibly a tie-break artifact
// rather than a genuine violation.
func isSpuriousIndex(lines []wire.OutputLine, idx int) bool {
	if idx < 0 || idx >= len(lines) {
		return false
	}
	ts := lines[idx].OutputTime
	count := 1
	for i := idx - 1; i >= 0 && lines[i].OutputTime == ts; i-- {
		count++
	}
	for i := idx + 1; i < len(lines) && lines[i].OutputTime == ts; i++ {
		count++
	}
	return count > 1
}
