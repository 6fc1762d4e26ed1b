// Command plugind runs the plugin dispatcher over a stream of events.
//
// Events are read as newline-delimited JSON from the file named by the only
// argument, or from stdin. Records live in a SQLite database; the registered
// steps come from an HCL manifest or, without one, the built-in account
// steps. Configuration is read from PLUGIN_* environment variables.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, err := ParseConfig(os.Args[1:], nil)
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := Run(ctx, cfg, os.Stdin, os.Stderr); err != nil {
		log.Printf("plugind: %v", err)
		stop()
		os.Exit(1)
	}
}
