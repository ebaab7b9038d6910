// Command engine runs the matching engine: it listens on an AF_UNIX
// socket given as its only argument and serves client connections until
// killed.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"matchbook/internal/engine"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <socket path>\n", os.Args[0])
		os.Exit(1)
	}
	socketPath := os.Args[1]

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := os.RemoveAll(socketPath); err != nil {
		log.Fatal().Err(err).Msg("failed clearing stale socket")
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		log.Fatal().Err(err).Str("socket", socketPath).Msg("failed to listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	eng := engine.New(os.Stdout, log)
	if err := eng.Serve(listener); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Fatal().Err(err).Msg("engine stopped serving")
	}
}
