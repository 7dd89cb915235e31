// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command mailbridge drives the mail live-query layer against a local
// SQLite mail store: seed fixtures, open conversations, watch them
// update, page lists, and apply mutations from another terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/mailbridge/cmd/mailbridge/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root().Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		var exit *cli.ExitError
		if errors.As(err, &exit) {
			if exit.Reason != "" {
				fmt.Fprintln(os.Stderr, exit.Reason)
			}
			os.Exit(exit.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
