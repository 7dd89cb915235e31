// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/mailbridge/lib/clock"
	"github.com/bureau-foundation/mailbridge/lib/compress"
	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
	"github.com/bureau-foundation/mailbridge/lib/mailstore"
	"github.com/bureau-foundation/mailbridge/lib/testutil"
)

const alice engine.UserID = "alice"

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openStore(t *testing.T, cfg mailstore.Config) *mailstore.Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "mail.db")
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 2
	}
	store, err := mailstore.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	store.SignIn(alice)
	return store
}

func message(id, conversation string, minute int, labels ...engine.LabelID) mail.Message {
	return mail.Message{
		ID:           id,
		Conversation: conversation,
		From:         "bob@example.com",
		To:           []string{"alice@example.com"},
		Subject:      "subject " + conversation,
		Body:         "body of " + id,
		ContentType:  "text/plain",
		Time:         baseTime.Add(time.Duration(minute) * time.Minute),
		Labels:       labels,
	}
}

func put(t *testing.T, store *mailstore.Store, messages ...mail.Message) {
	t.Helper()
	for _, m := range messages {
		if err := store.PutMessage(context.Background(), alice, m); err != nil {
			t.Fatalf("PutMessage(%s): %v", m.ID, err)
		}
	}
}

func messageIDs(messages []mail.Message) []string {
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return ids
}

// signal returns a callback that records each invocation on the
// returned channel without blocking the dispatcher.
func signal() (func(), chan struct{}) {
	fired := make(chan struct{}, 16)
	return func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, fired
}

func TestConversationDetailFiltersByLabel(t *testing.T) {
	for _, algorithm := range []compress.Algorithm{compress.None, compress.LZ4, compress.Zstd} {
		t.Run(algorithm.String(), func(t *testing.T) {
			store := openStore(t, mailstore.Config{Compression: algorithm})
			put(t, store,
				message("m1", "c1", 1, mail.Inbox),
				message("m2", "c1", 2, mail.Trash),
			)
			source := store.ConversationDetails()
			ctx := context.Background()

			tests := []struct {
				name string
				key  engine.Key
				want []string
			}{
				{"trash only", mail.ConversationKey(alice, "c1", mail.Trash, false), []string{"m2"}},
				{"show all", mail.ConversationKey(alice, "c1", mail.Trash, true), []string{"m1", "m2"}},
				{"unscoped", mail.ConversationKey(alice, "c1", "", false), []string{"m1", "m2"}},
			}
			for _, test := range tests {
				detail, err := source.Query(ctx, test.key)
				if err != nil {
					t.Fatalf("%s: Query: %v", test.name, err)
				}
				if diff := cmp.Diff(test.want, messageIDs(detail.Messages)); diff != "" {
					t.Errorf("%s: messages (-want +got):\n%s", test.name, diff)
				}
				if detail.Conversation.MessageCount != 2 {
					t.Errorf("%s: MessageCount = %d, want 2", test.name, detail.Conversation.MessageCount)
				}
			}

			detail, err := source.Query(ctx, mail.ConversationKey(alice, "c1", "", false))
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if diff := cmp.Diff(message("m1", "c1", 1, mail.Inbox), detail.Messages[0]); diff != "" {
				t.Errorf("stored message (-want +got):\n%s", diff)
			}
			wantLabels := []engine.LabelID{mail.Inbox, mail.Trash}
			if diff := cmp.Diff(wantLabels, detail.Conversation.Labels); diff != "" {
				t.Errorf("conversation labels (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryRequiresSession(t *testing.T) {
	store := openStore(t, mailstore.Config{})
	key := mail.ConversationKey("mallory", "c1", "", false)

	if _, err := store.ConversationDetails().Query(context.Background(), key); !errors.Is(err, engine.ErrNoUserSession) {
		t.Errorf("Query error = %v, want ErrNoUserSession", err)
	}
	if _, err := store.ConversationDetails().RegisterWatcher(context.Background(), key, func() {}); !errors.Is(err, engine.ErrNoUserSession) {
		t.Errorf("RegisterWatcher error = %v, want ErrNoUserSession", err)
	}
	if _, err := store.MessageList().NewPaginator(context.Background(), mail.ListKey("mallory", mail.Inbox, false), func() {}); !errors.Is(err, engine.ErrNoUserSession) {
		t.Errorf("NewPaginator error = %v, want ErrNoUserSession", err)
	}

	store.SignOut(alice)
	if _, err := store.ConversationDetails().Query(context.Background(), mail.ConversationKey(alice, "c1", "", false)); !errors.Is(err, engine.ErrNoUserSession) {
		t.Errorf("Query after SignOut error = %v, want ErrNoUserSession", err)
	}
}

func TestQueryMissingConversation(t *testing.T) {
	store := openStore(t, mailstore.Config{})
	_, err := store.ConversationDetails().Query(context.Background(), mail.ConversationKey(alice, "nope", "", false))
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Query error = %v, want ErrNotFound", err)
	}
}

func TestConversationWatcherFiresOnRelevantWrites(t *testing.T) {
	store := openStore(t, mailstore.Config{})
	ctx := context.Background()
	original := message("m1", "c1", 1, mail.Inbox)
	put(t, store, original)

	callback, fired := signal()
	handle, err := store.ConversationDetails().RegisterWatcher(ctx, mail.ConversationKey(alice, "c1", "", false), callback)
	if err != nil {
		t.Fatalf("RegisterWatcher: %v", err)
	}
	defer handle.Disconnect()

	put(t, store, message("m9", "c2", 2, mail.Inbox))
	testutil.RequireNoReceive(t, fired, "write to another conversation")

	put(t, store, original)
	testutil.RequireNoReceive(t, fired, "identical rewrite")

	if err := store.ApplyLabel(ctx, alice, "m1", mail.Starred); err != nil {
		t.Fatalf("ApplyLabel: %v", err)
	}
	testutil.RequireReceive(t, fired, time.Second, "label applied")

	if err := store.ApplyLabel(ctx, alice, "m1", mail.Starred); err != nil {
		t.Fatalf("ApplyLabel again: %v", err)
	}
	testutil.RequireNoReceive(t, fired, "label already present")

	if err := store.MarkRead(ctx, alice, "m1", false); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	testutil.RequireReceive(t, fired, time.Second, "marked unread")

	if err := store.MarkRead(ctx, alice, "m1", false); err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}
	testutil.RequireNoReceive(t, fired, "already unread")

	if err := store.RemoveLabel(ctx, alice, "m1", mail.Starred); err != nil {
		t.Fatalf("RemoveLabel: %v", err)
	}
	testutil.RequireReceive(t, fired, time.Second, "label removed")

	moved := original
	moved.Conversation = "c3"
	put(t, store, moved)
	testutil.RequireReceive(t, fired, time.Second, "message moved out")

	handle.Disconnect()
	handle.Disconnect()
	put(t, store, message("m2", "c1", 5, mail.Inbox))
	testutil.RequireNoReceive(t, fired, "after disconnect")
}

func TestMutationsOnMissingMessage(t *testing.T) {
	store := openStore(t, mailstore.Config{})
	ctx := context.Background()

	if err := store.ApplyLabel(ctx, alice, "ghost", mail.Inbox); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("ApplyLabel error = %v, want ErrNotFound", err)
	}
	if err := store.MarkRead(ctx, alice, "ghost", true); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("MarkRead error = %v, want ErrNotFound", err)
	}
	err := store.PutAttachment(ctx, alice, mail.Attachment{ID: "a1", Message: "ghost", Name: "x.pdf"})
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("PutAttachment error = %v, want ErrNotFound", err)
	}
	if err := store.PutMessage(ctx, alice, mail.Message{ID: "m1"}); !errors.Is(err, mailstore.ErrInvalid) {
		t.Errorf("PutMessage without conversation error = %v, want ErrInvalid", err)
	}
}

func TestAttachmentsAndSendStatus(t *testing.T) {
	fake := clock.Fake(baseTime)
	store := openStore(t, mailstore.Config{Clock: fake})
	ctx := context.Background()
	put(t, store, message("m1", "c1", 1, mail.Sent))
	key := mail.MessageKey(alice, "m1")

	attachments, err := store.Attachments().Query(ctx, key)
	if err != nil {
		t.Fatalf("Attachments: %v", err)
	}
	if attachments == nil || len(attachments) != 0 {
		t.Errorf("Attachments = %#v, want empty non-nil", attachments)
	}

	attachmentFired := make(chan struct{}, 4)
	handle, err := store.Attachments().RegisterWatcher(ctx, key, func() { attachmentFired <- struct{}{} })
	if err != nil {
		t.Fatalf("RegisterWatcher: %v", err)
	}
	defer handle.Disconnect()

	want := mail.Attachment{ID: "a1", Message: "m1", Name: "report.pdf", ContentType: "application/pdf", Size: 4096}
	if err := store.PutAttachment(ctx, alice, want); err != nil {
		t.Fatalf("PutAttachment: %v", err)
	}
	testutil.RequireReceive(t, attachmentFired, time.Second, "attachment watcher")
	attachments, err = store.Attachments().Query(ctx, key)
	if err != nil {
		t.Fatalf("Attachments: %v", err)
	}
	if diff := cmp.Diff([]mail.Attachment{want}, attachments); diff != "" {
		t.Errorf("attachments (-want +got):\n%s", diff)
	}

	sendFired := make(chan struct{}, 4)
	sendHandle, err := store.SendStatus().RegisterWatcher(ctx, key, func() { sendFired <- struct{}{} })
	if err != nil {
		t.Fatalf("RegisterWatcher: %v", err)
	}
	defer sendHandle.Disconnect()

	failedAt := baseTime.Add(-time.Hour)
	if err := store.SetSendStatus(ctx, alice, mail.SendResult{Message: "m1", State: mail.SendFailed, Error: "timeout", Time: failedAt}); err != nil {
		t.Fatalf("SetSendStatus: %v", err)
	}
	testutil.RequireReceive(t, sendFired, time.Second, "first send result")
	if err := store.SetSendStatus(ctx, alice, mail.SendResult{Message: "m1", State: mail.SendSent}); err != nil {
		t.Fatalf("SetSendStatus: %v", err)
	}
	testutil.RequireReceive(t, sendFired, time.Second, "second send result")

	results, err := store.SendStatus().Query(ctx, key)
	if err != nil {
		t.Fatalf("SendStatus: %v", err)
	}
	wantResults := []mail.SendResult{
		{Message: "m1", State: mail.SendFailed, Error: "timeout", Time: failedAt},
		{Message: "m1", State: mail.SendSent, Time: baseTime},
	}
	if diff := cmp.Diff(wantResults, results); diff != "" {
		t.Errorf("send results (-want +got):\n%s", diff)
	}
}

func TestStoreWatchersCount(t *testing.T) {
	store := openStore(t, mailstore.Config{})
	ctx := context.Background()
	first, err := store.SendStatus().RegisterWatcher(ctx, mail.MessageKey(alice, "m1"), func() {})
	if err != nil {
		t.Fatalf("RegisterWatcher: %v", err)
	}
	paginator, err := store.ConversationList().NewPaginator(ctx, mail.ListKey(alice, mail.Inbox, false), func() {})
	if err != nil {
		t.Fatalf("NewPaginator: %v", err)
	}
	if got := store.Watchers(); got != 2 {
		t.Errorf("Watchers = %d, want 2", got)
	}
	first.Disconnect()
	paginator.Disconnect()
	if got := store.Watchers(); got != 0 {
		t.Errorf("Watchers after disconnect = %d, want 0", got)
	}
}
