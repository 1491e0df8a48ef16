// Package main is the labeler command itself.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pderoovere/dimo-labeling/cli"
	"github.com/pderoovere/dimo-labeling/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		logging.Global().Error(err)
		stop()
		os.Exit(1)
	}
}
