// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/mailbridge/cmd/mailbridge/cli"
	"github.com/bureau-foundation/mailbridge/lib/draftcache"
	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
	"github.com/bureau-foundation/mailbridge/lib/mailwatch"
)

// storedDraft is a draft message held open by an editing session.
type storedDraft struct {
	mutate  *mailwatch.Mutations
	user    engine.UserID
	message mail.Message
	logger  *slog.Logger
}

func (d *storedDraft) Close() error {
	d.logger.Info("draft closed", "message", d.message.ID)
	return nil
}

// send records the delivery attempts and moves the message from
// drafts to sent.
func (d *storedDraft) send(ctx context.Context, failure string) error {
	states := []mail.SendState{mail.SendQueued, mail.SendSending}
	for _, state := range states {
		if err := d.mutate.SetSendStatus(ctx, d.user, mail.SendResult{Message: d.message.ID, State: state}); err != nil {
			return err
		}
	}
	if failure != "" {
		return d.mutate.SetSendStatus(ctx, d.user, mail.SendResult{Message: d.message.ID, State: mail.SendFailed, Error: failure})
	}
	if err := d.mutate.SetSendStatus(ctx, d.user, mail.SendResult{Message: d.message.ID, State: mail.SendSent}); err != nil {
		return err
	}
	if err := d.mutate.RemoveLabel(ctx, d.user, d.message.ID, mail.Drafts); err != nil {
		return err
	}
	return d.mutate.ApplyLabel(ctx, d.user, d.message.ID, mail.Sent)
}

// trash moves the draft from drafts to trash.
func (d *storedDraft) trash(ctx context.Context) error {
	if err := d.mutate.RemoveLabel(ctx, d.user, d.message.ID, mail.Drafts); err != nil {
		return err
	}
	return d.mutate.ApplyLabel(ctx, d.user, d.message.ID, mail.Trash)
}

func composeCommand() *cli.Command {
	var flags commonFlags
	var to []string
	var subject, body, failure, conversation string
	var send, discard bool
	return &cli.Command{
		Name:    "compose",
		Summary: "Write a draft in an editing session and optionally send it",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("compose", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringSliceVar(&to, "to", nil, "recipients")
			flagSet.StringVar(&subject, "subject", "", "subject line")
			flagSet.StringVar(&body, "body", "", "message body")
			flagSet.StringVar(&conversation, "reply-to", "", "conversation to reply in (default: a new one)")
			flagSet.BoolVar(&send, "send", false, "send the draft before closing the session")
			flagSet.StringVar(&failure, "fail", "", "with --send, record a failed delivery with this reason")
			flagSet.BoolVar(&discard, "discard", false, "discard the draft into trash instead of keeping it")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if send && discard {
				return fmt.Errorf("--send and --discard are mutually exclusive")
			}
			a, err := openApp("compose", flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireUser(); err != nil {
				return err
			}

			sessions := draftcache.NewMemorySessions()
			drafts := draftcache.New(sessions, a.logger)
			session := sessions.Start()
			defer sessions.End(session)

			id := uuid.NewString()
			if conversation == "" {
				conversation = id
			}
			draft := &storedDraft{
				mutate: a.mutate,
				user:   a.user,
				logger: a.logger.With("session", string(session)),
				message: mail.Message{
					ID:           id,
					Conversation: conversation,
					From:         string(a.user),
					To:           to,
					Subject:      subject,
					Body:         body,
					ContentType:  "text/plain",
					Time:         time.Now().UTC(),
					Labels:       []engine.LabelID{mail.Drafts},
				},
			}
			if err := a.mutate.PutMessage(ctx, a.user, draft.message); err != nil {
				return err
			}
			drafts.Add(draft)

			switch {
			case send:
				handle, err := drafts.Lookup()
				if err != nil {
					return err
				}
				if err := handle.(*storedDraft).send(ctx, failure); err != nil {
					return err
				}
			case discard:
				if err := draft.trash(ctx); err != nil {
					return err
				}
				drafts.Discard()
			}
			fmt.Fprintln(a.out, id)
			return nil
		},
	}
}
