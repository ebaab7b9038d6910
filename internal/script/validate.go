package script

import (
	"fmt"
	"strings"

	"matchbook/internal/wire"
)

type threadConnection struct {
	thread     int
	connection int
}

type threadState struct {
	connected    bool
	connectionID int
}

// Validate performs every static check a script must pass before a
// grading session is allowed to run: connect/disconnect pairing per
// thread, orders sent from exactly one thread, no repeated order ids
// across threads or reconnections, and cancels that reference an order
// the issuing thread actually created on its current connection.
//
// It collects every violation rather than stopping at the first, the way
// the original validator reports all of them before refusing to run.
func Validate(s *Script) error {
	var violations []string

	threads := make(map[int]*threadState, s.NumThreads)
	for i := 0; i < s.NumThreads; i++ {
		threads[i] = &threadState{}
	}
	seenIDs := make(map[uint32]threadConnection)

	allThreads := make([]int, s.NumThreads)
	for i := range allThreads {
		allThreads[i] = i
	}

	for _, cmd := range s.Commands {
		targets := cmd.Threads
		if targets == nil {
			targets = allThreads
		}

		switch cmd.Kind {
		case Send:
			if len(targets) != 1 {
				violations = append(violations, fmt.Sprintf(
					"line %d: command from %d threads, must be exactly one", cmd.Line, len(targets)))
				continue
			}
			threadID := targets[0]
			state := threads[threadID]
			if state == nil {
				violations = append(violations, fmt.Sprintf("line %d: unknown thread %d", cmd.Line, threadID))
				continue
			}
			if !state.connected {
				violations = append(violations, fmt.Sprintf(
					"line %d: thread %d sends while not connected", cmd.Line, threadID))
			}

			switch cmd.Send.Kind {
			case wire.KindBuy, wire.KindSell:
				if first, ok := seenIDs[cmd.Send.OrderID]; ok {
					violations = append(violations, fmt.Sprintf(
						"line %d: repeated order id %d on thread %d, first seen on thread %d connection %d",
						cmd.Line, cmd.Send.OrderID, threadID, first.thread, first.connection))
				} else {
					seenIDs[cmd.Send.OrderID] = threadConnection{thread: threadID, connection: state.connectionID}
				}
			case wire.KindCancel:
				first, ok := seenIDs[cmd.Send.OrderID]
				switch {
				case !ok:
					violations = append(violations, fmt.Sprintf(
						"line %d: cancel for yet-unknown order id %d on thread %d", cmd.Line, cmd.Send.OrderID, threadID))
				case first.thread != threadID || first.connection != state.connectionID:
					violations = append(violations, fmt.Sprintf(
						"line %d: cancel for order id %d on thread %d connection %d, but order was created on thread %d connection %d",
						cmd.Line, cmd.Send.OrderID, threadID, state.connectionID, first.thread, first.connection))
				}
			}

		case Connect:
			for _, threadID := range targets {
				state := threads[threadID]
				if state == nil {
					violations = append(violations, fmt.Sprintf("line %d: unknown thread %d", cmd.Line, threadID))
					continue
				}
				if state.connected {
					violations = append(violations, fmt.Sprintf(
						"line %d: thread %d connecting while connected", cmd.Line, threadID))
				}
				state.connected = true
			}

		case Disconnect:
			for _, threadID := range targets {
				state := threads[threadID]
				if state == nil {
					violations = append(violations, fmt.Sprintf("line %d: unknown thread %d", cmd.Line, threadID))
					continue
				}
				if !state.connected {
					violations = append(violations, fmt.Sprintf(
						"line %d: thread %d disconnecting while not connected", cmd.Line, threadID))
				}
				state.connected = false
				state.connectionID++
			}

		case Sync, Sleep, Wait:
			// no static constraints
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return fmt.Errorf("script: %d validation violation(s):\n%s", len(violations), strings.Join(violations, "\n"))
}
