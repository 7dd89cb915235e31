// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invalidation

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/mailbridge/lib/testutil"
)

const receiveTimeout = 2 * time.Second

func TestSetOperations(t *testing.T) {
	set := NewSet(Messages, Labels, Messages)
	if !set.Contains(Labels) || !set.Contains(Messages) || set.Contains(Drafts) {
		t.Fatalf("membership wrong for %s", set)
	}
	if got, want := set.String(), "{labels,messages}"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	union := set.Union(NewSet(Drafts))
	if diff := cmp.Diff([]Source{Labels, Messages, Drafts}, union.Sources()); diff != "" {
		t.Fatalf("union mismatch (-want +got):\n%s", diff)
	}
	if !set.Intersect(NewSet(Attachments)).IsEmpty() {
		t.Fatal("disjoint intersection should be empty")
	}
	if len(All().Sources()) != int(sourceCount) {
		t.Fatalf("All() has %d members, want %d", len(All().Sources()), sourceCount)
	}
}

func TestSubscribeFiltersByInterest(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conversations := bus.Subscribe(ctx, NewSet(Conversations, Labels))
	drafts := bus.Subscribe(ctx, NewSet(Drafts))

	bus.NotifyInvalidation(Labels, Messages)

	got := testutil.RequireReceive(t, conversations, receiveTimeout, "labels invalidation")
	if got != NewSet(Labels) {
		t.Fatalf("received %s, want {labels}", got)
	}
	testutil.RequireNoReceive(t, drafts, "drafts subscriber has no matching interest")
}

func TestNotificationsCoalesceUntilDrained(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := bus.Subscribe(ctx, All())
	bus.NotifyInvalidation(Labels)
	// Let the forwarder pick up the first set and park on the send.
	testutil.RequireEventually(t, receiveTimeout, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		for sub := range bus.subscribers {
			return sub.pending.IsEmpty() && len(sub.wake) == 0
		}
		return false
	}, "forwarder took the first set")

	bus.NotifyInvalidation(Messages)
	bus.NotifyInvalidation(Drafts)
	bus.NotifyInvalidation(Messages)

	first := testutil.RequireReceive(t, channel, receiveTimeout, "first set")
	second := testutil.RequireReceive(t, channel, receiveTimeout, "coalesced set")
	if first != NewSet(Labels) {
		t.Fatalf("first = %s, want {labels}", first)
	}
	if second != NewSet(Messages, Drafts) {
		t.Fatalf("second = %s, want {messages,drafts}", second)
	}
	testutil.RequireNoReceive(t, channel, "no duplicate delivery")
}

func TestConcurrentNotifyIsLossless(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	channel := bus.Subscribe(ctx, All())

	var group errgroup.Group
	for _, source := range All().Sources() {
		group.Go(func() error {
			for range 50 {
				bus.NotifyInvalidation(source)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatal(err)
	}

	var seen Set
	for seen != All() {
		seen = seen.Union(testutil.RequireReceive(t, channel, receiveTimeout, "have %s", seen))
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	channel := bus.Subscribe(ctx, All())
	if bus.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", bus.Subscribers())
	}

	cancel()
	testutil.RequireClosed(t, channel, receiveTimeout, "subscription channel")
	testutil.RequireEventually(t, receiveTimeout, func() bool { return bus.Subscribers() == 0 }, "subscriber removed")

	bus.NotifyInvalidation(Labels)
}

func TestDefaultIsProcessScoped(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default() returned different buses")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	labels := Default().Subscribe(ctx, NewSet(Labels))
	Default().NotifyInvalidation(Labels)
	if got := testutil.RequireReceive(t, labels, receiveTimeout, "default bus"); got != NewSet(Labels) {
		t.Fatalf("received %s, want {labels}", got)
	}
}
