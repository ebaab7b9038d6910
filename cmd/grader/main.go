// Command grader reads a script from stdin, drives an engine binary
// (given as argv[1]) through it, and reports whether the engine's output
// was a legal matching of the script's orders.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"matchbook/internal/grader"
	"matchbook/internal/script"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <path to engine binary>\n", os.Args[0])
		os.Exit(1)
	}
	enginePath := os.Args[1]

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	s, err := script.Parse(os.Stdin)
	if err != nil {
		log.Error().Err(err).Msg("failed to parse script")
		os.Exit(grader.ExitFailed)
	}
	if err := script.Validate(s); err != nil {
		log.Error().Err(err).Msg("script failed validation")
		os.Exit(grader.ExitFailed)
	}

	sess := grader.NewSession(enginePath, s, log)
	code, err := sess.Run()
	if err != nil {
		log.Error().Err(err).Msg("grading session failed")
	}
	os.Exit(code)
}
