// Package script parses and statically validates the grader's input
// format: a thread count followed by a sequence of directives, each
// optionally prefixed with the set of client threads it applies to.
package script

import "matchbook/internal/wire"

// Directive identifies which grammar a Command line follows.
type Directive int

const (
	Sync Directive = iota
	Connect
	Disconnect
	Sleep
	Wait
	Send
)

// Command is one parsed line of a script. Threads is nil when the line
// had no numeric prefix, meaning it applies to every thread.
type Command struct {
	Line    int // 1-based source line, for error messages
	Threads []int
	Kind    Directive

	SleepMS int64        // Sleep
	OrderID uint32       // Wait
	Send    wire.Command // Send
}

// Script is a fully parsed grader input: a declared thread count and the
// ordered sequence of directives to run against it.
type Script struct {
	NumThreads int
	Commands   []Command
}
