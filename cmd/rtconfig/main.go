// Package main is rtconfig, the command-line tool for configuring embedded
// real-time targets through their rtconfigd configuration service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/concave-dev/rtconfig/cmd/rtconfig/commands"
	"github.com/concave-dev/rtconfig/cmd/rtconfig/handlers"
)

func main() {
	registry, err := handlers.NewRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rtconfig: %v\n", err)
		os.Exit(commands.ExitFailure)
	}

	// Ctrl-C aborts in-flight requests and wait loops
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	dispatcher := &commands.Dispatcher{
		Registry: registry,
		Out:      os.Stdout,
	}
	code := dispatcher.Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
