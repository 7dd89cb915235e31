// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/mailbridge/cmd/mailbridge/cli"
	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
	"github.com/bureau-foundation/mailbridge/lib/mailstore"
)

func root() *cli.Command {
	return &cli.Command{
		Name:        "mailbridge",
		Description: "Live mail queries over a local SQLite mail store.",
		Subcommands: []*cli.Command{
			seedCommand(),
			showCommand(),
			watchCommand(),
			pageCommand(),
			labelCommand(),
			readCommand(),
			statusCommand(),
			composeCommand(),
		},
	}
}

func seedCommand() *cli.Command {
	var flags commonFlags
	return &cli.Command{
		Name:    "seed",
		Summary: "Load a YAML mailbox fixture",
		Usage:   "mailbridge seed [flags] <fixture.yaml>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Seed the demo mailboxes", Command: "mailbridge seed --config mailbridge.yaml testdata/demo.yaml"},
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected one fixture path, got %d arguments", len(args))
			}
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			fixture, err := mailstore.LoadFixture(file)
			if err != nil {
				return err
			}

			a, err := openApp("seed", flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.store.Seed(ctx, fixture); err != nil {
				return err
			}
			messages := 0
			for _, user := range fixture.Users {
				messages += len(user.Messages)
			}
			fmt.Fprintf(a.out, "seeded %d users, %d messages\n", len(fixture.Users), messages)
			return nil
		},
	}
}

func labelCommand() *cli.Command {
	var flags commonFlags
	var message, label string
	var remove bool
	return &cli.Command{
		Name:    "label",
		Summary: "Apply or remove a label on a message",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("label", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVarP(&message, "message", "m", "", "message id")
			flagSet.StringVarP(&label, "label", "l", "", "label id")
			flagSet.BoolVar(&remove, "remove", false, "remove instead of apply")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if message == "" || label == "" {
				return fmt.Errorf("--message and --label are required")
			}
			a, err := openApp("label", flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireUser(); err != nil {
				return err
			}
			if remove {
				return a.mutate.RemoveLabel(ctx, a.user, message, engine.LabelID(label))
			}
			return a.mutate.ApplyLabel(ctx, a.user, message, engine.LabelID(label))
		},
	}
}

func readCommand() *cli.Command {
	var flags commonFlags
	var message string
	var unread bool
	return &cli.Command{
		Name:    "read",
		Summary: "Mark a message read or unread",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("read", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVarP(&message, "message", "m", "", "message id")
			flagSet.BoolVar(&unread, "unread", false, "mark unread instead")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if message == "" {
				return fmt.Errorf("--message is required")
			}
			a, err := openApp("read", flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireUser(); err != nil {
				return err
			}
			return a.mutate.MarkRead(ctx, a.user, message, !unread)
		},
	}
}

func statusCommand() *cli.Command {
	var flags commonFlags
	var message, state, reason string
	var check bool
	return &cli.Command{
		Name:    "status",
		Summary: "Show or record a message's delivery status and attachments",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVarP(&message, "message", "m", "", "message id")
			flagSet.StringVar(&state, "set", "", "record a delivery attempt: queued, sending, sent, or failed")
			flagSet.StringVar(&reason, "error", "", "failure reason for --set failed")
			flagSet.BoolVar(&check, "check", false, "exit with status 2 when the latest attempt failed")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Record a failed attempt", Command: "mailbridge status -u alice -m m2 --set failed --error 'mailbox full'"},
			{Description: "Fail a script when delivery failed", Command: "mailbridge status -u alice -m m2 --check"},
		},
		Run: func(ctx context.Context, args []string) error {
			if message == "" {
				return fmt.Errorf("--message is required")
			}
			a, err := openApp("status", flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireUser(); err != nil {
				return err
			}
			if state != "" {
				var parsed mail.SendState
				if err := parsed.UnmarshalText([]byte(state)); err != nil {
					return err
				}
				return a.mutate.SetSendStatus(ctx, a.user, mail.SendResult{Message: message, State: parsed, Error: reason})
			}

			results, err := a.watch.WatchSendStatus(ctx, a.user, message)
			if err != nil {
				return err
			}
			defer results.Close()
			attachments, err := a.watch.WatchAttachments(ctx, a.user, message)
			if err != nil {
				return err
			}
			defer attachments.Close()

			history, err := first(ctx, results.C())
			if err != nil {
				return err
			}
			files, err := first(ctx, attachments.C())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, a.view.SendResults(history))
			fmt.Fprintln(a.out, a.view.Attachments(files))
			if check && len(history) > 0 {
				if latest := history[len(history)-1]; latest.State == mail.SendFailed {
					return cli.Undelivered(message, latest.Error)
				}
			}
			return nil
		},
	}
}

// first waits for the first result on a subscription channel.
func first[S any](ctx context.Context, results <-chan engine.Result[S]) (S, error) {
	var zero S
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case result, ok := <-results:
		if !ok {
			return zero, fmt.Errorf("subscription closed")
		}
		return result.Value, result.Err
	}
}
