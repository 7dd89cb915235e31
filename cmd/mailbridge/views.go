// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/mailbridge/cmd/mailbridge/cli"
	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
	"github.com/bureau-foundation/mailbridge/lib/paginator"
)

// conversationFlags select a conversation view.
type conversationFlags struct {
	conversation string
	label        string
	showAll      bool
}

func (f *conversationFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.conversation, "conversation", "c", "", "conversation id")
	flagSet.StringVarP(&f.label, "label", "l", "", "label the conversation is opened from")
	flagSet.BoolVar(&f.showAll, "all", false, "include messages outside --label")
}

func (f *conversationFlags) key(user engine.UserID) engine.Key {
	return mail.ConversationKey(user, f.conversation, engine.LabelID(f.label), f.showAll)
}

func showCommand() *cli.Command {
	var flags commonFlags
	var view conversationFlags
	return &cli.Command{
		Name:    "show",
		Aliases: []string{"open"},
		Summary: "Print a conversation once",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			flags.register(flagSet)
			view.register(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			a, err := openApp("show", flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireUser(); err != nil {
				return err
			}
			subscription, err := a.watch.ConversationDetail.Subscribe(ctx, view.key(a.user))
			if err != nil {
				return err
			}
			defer subscription.Close()
			detail, err := first(ctx, subscription.C())
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, a.view.Conversation(detail))
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	var flags commonFlags
	var view conversationFlags
	var list string
	var unread bool
	return &cli.Command{
		Name:    "watch",
		Summary: "Follow a conversation or a conversation list as it changes",
		Description: "Follow a conversation (--conversation) or a label's conversation list\n" +
			"(--list) and reprint it on every change until interrupted. With\n" +
			"watch.external set, changes committed by other processes are picked up too.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			flags.register(flagSet)
			view.register(flagSet)
			flagSet.StringVar(&list, "list", "", "follow the conversation list for this label")
			flagSet.BoolVar(&unread, "unread", false, "with --list, only unread conversations")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Follow a thread opened from the trash", Command: "mailbridge watch -u alice -c c1 -l trash"},
			{Description: "Follow the inbox", Command: "mailbridge watch -u alice --list inbox"},
		},
		Run: func(ctx context.Context, args []string) error {
			if (view.conversation == "") == (list == "") {
				return fmt.Errorf("exactly one of --conversation or --list is required")
			}
			a, err := openApp("watch", flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireUser(); err != nil {
				return err
			}

			group, ctx := errgroup.WithContext(ctx)
			if a.config.Watch.External {
				group.Go(func() error { return a.store.WatchExternalChanges(ctx) })
			}
			group.Go(func() error {
				if list != "" {
					return a.followList(ctx, engine.LabelID(list), unread)
				}
				return a.followConversation(ctx, view.key(a.user))
			})
			if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func (a *app) followConversation(ctx context.Context, key engine.Key) error {
	for detail, err := range a.watch.ConversationDetail.Observe(ctx, key) {
		if err != nil {
			if engine.IsSessionError(err) {
				return err
			}
			a.logger.Warn("conversation unavailable", "key", key.String(), "error", err)
			continue
		}
		fmt.Fprintln(a.out, "----")
		fmt.Fprint(a.out, a.view.Conversation(detail))
	}
	return ctx.Err()
}

func (a *app) followList(ctx context.Context, label engine.LabelID, unread bool) error {
	changes := a.bus.Subscribe(ctx, a.watch.ConversationList.Sources())
	a.printConversations(a.watch.ConversationPage(ctx, a.user, label, unread, paginator.First))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case set, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			a.logger.Debug("list invalidated", "sources", set.String())
			fmt.Fprintln(a.out, "----")
			a.printConversations(a.watch.ConversationPage(ctx, a.user, label, unread, paginator.First))
		}
	}
}

func (a *app) printConversations(conversations []mail.Conversation) {
	for _, conversation := range conversations {
		fmt.Fprintln(a.out, a.view.ConversationRow(conversation))
	}
}

func pageCommand() *cli.Command {
	var flags commonFlags
	var label, request string
	var unread, messages bool
	var pages int
	return &cli.Command{
		Name:    "page",
		Aliases: []string{"ls"},
		Summary: "Page through a conversation or message list",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("page", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVarP(&label, "label", "l", string(mail.Inbox), "label to list; empty lists everything")
			flagSet.BoolVar(&unread, "unread", false, "only unread items")
			flagSet.BoolVar(&messages, "messages", false, "list messages instead of conversations")
			flagSet.IntVarP(&pages, "pages", "n", 1, "number of pages to load (first, then next)")
			flagSet.StringVar(&request, "then", "", "a final request after paging: first, next, or all")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Load three pages, then everything loaded so far", Command: "mailbridge page -u alice -n 3 --then all"},
		},
		Run: func(ctx context.Context, args []string) error {
			if pages < 1 {
				return fmt.Errorf("--pages must be at least 1")
			}
			requests := []paginator.Request{paginator.First}
			for range pages - 1 {
				requests = append(requests, paginator.Next)
			}
			if request != "" {
				final, err := paginator.ParseRequest(request)
				if err != nil {
					return err
				}
				requests = append(requests, final)
			}

			a, err := openApp("page", flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireUser(); err != nil {
				return err
			}

			labelID := engine.LabelID(label)
			for _, next := range requests {
				fmt.Fprintf(a.out, "-- %s\n", next)
				if messages {
					for _, message := range a.watch.MessagePage(ctx, a.user, labelID, unread, next) {
						fmt.Fprintln(a.out, a.view.MessageRow(message))
					}
					continue
				}
				a.printConversations(a.watch.ConversationPage(ctx, a.user, labelID, unread, next))
			}
			return nil
		},
	}
}
