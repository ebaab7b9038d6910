package grader

import (
	"matchbook/internal/book"
	"matchbook/internal/oracle"
	"matchbook/internal/script"
	"matchbook/internal/wire"
)

// threadOp is one directive as seen by a single thread's timeline; Sync
// directives carry a shared barrier instance, since the same line can
// address several threads that must all arrive before any proceeds.
type threadOp struct {
	cmd     script.Command
	barrier *syncBarrier
}

// buildPrograms splits a script's flat command list into one timeline per
// thread, the way each thread only ever sees the directives addressed to
// it, in source order.
func buildPrograms(s *script.Script) [][]threadOp {
	programs := make([][]threadOp, s.NumThreads)
	allThreads := make([]int, s.NumThreads)
	for i := range allThreads {
		allThreads[i] = i
	}

	for _, cmd := range s.Commands {
		targets := cmd.Threads
		if targets == nil {
			targets = allThreads
		}

		var barrier *syncBarrier
		if cmd.Kind == script.Sync {
			barrier = newSyncBarrier(len(targets))
		}
		for _, t := range targets {
			programs[t] = append(programs[t], threadOp{cmd: cmd, barrier: barrier})
		}
	}
	return programs
}

// seedOrders extracts every buy/sell a script will send, in the shape the
// oracle needs to track completion and replay correctness independent of
// when or whether the order ever actually rests.
func seedOrders(s *script.Script) []oracle.ScriptOrder {
	var seed []oracle.ScriptOrder
	for _, cmd := range s.Commands {
		if cmd.Kind != script.Send {
			continue
		}
		switch cmd.Send.Kind {
		case wire.KindBuy:
			seed = append(seed, oracle.ScriptOrder{
				ID: book.OrderID(cmd.Send.OrderID), Side: book.Buy,
				Instrument: cmd.Send.Instrument, Price: book.Price(cmd.Send.Price), Count: book.Quantity(cmd.Send.Count),
			})
		case wire.KindSell:
			seed = append(seed, oracle.ScriptOrder{
				ID: book.OrderID(cmd.Send.OrderID), Side: book.Sell,
				Instrument: cmd.Send.Instrument, Price: book.Price(cmd.Send.Price), Count: book.Quantity(cmd.Send.Count),
			})
		}
	}
	return seed
}
