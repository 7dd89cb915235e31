// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"testing"
	"time"

	"github.com/bureau-foundation/mailbridge/lib/testutil"
)

func TestSubscribeReplaysLatest(t *testing.T) {
	var cell Cell[string]
	if !cell.Publish(0, "first") {
		t.Fatal("publish at current epoch rejected")
	}

	channel, cancel := cell.Subscribe()
	defer cancel()
	if got := testutil.RequireReceive(t, channel, time.Second, "replay"); got != "first" {
		t.Fatalf("replayed %q, want first", got)
	}
	testutil.RequireNoReceive(t, channel, "only one replay")
}

func TestPublishConflatesUnreadValues(t *testing.T) {
	var cell Cell[int]
	channel, cancel := cell.Subscribe()
	defer cancel()

	for i := 1; i <= 5; i++ {
		cell.Publish(0, i)
	}
	if got := testutil.RequireReceive(t, channel, time.Second, "newest value"); got != 5 {
		t.Fatalf("received %d, want 5", got)
	}
	testutil.RequireNoReceive(t, channel, "older values are replaced")
}

func TestStaleEpochIsRejected(t *testing.T) {
	var cell Cell[string]
	channel, cancel := cell.Subscribe()
	defer cancel()

	cell.Reset(3)
	if cell.Publish(2, "stale") {
		t.Fatal("stale publish accepted")
	}
	testutil.RequireNoReceive(t, channel, "stale value delivered")
	if _, ok := cell.Latest(); ok {
		t.Fatal("stale value stored")
	}

	if !cell.Publish(3, "current") {
		t.Fatal("current publish rejected")
	}
	if got, _ := cell.Latest(); got != "current" {
		t.Fatalf("Latest() = %q, want current", got)
	}
	if cell.Epoch() != 3 {
		t.Fatalf("Epoch() = %d, want 3", cell.Epoch())
	}
}

func TestResetClearsReplayAndPending(t *testing.T) {
	var cell Cell[string]
	channel, cancel := cell.Subscribe()
	defer cancel()

	cell.Publish(0, "unread")
	cell.Reset(1)

	testutil.RequireNoReceive(t, channel, "pending value survived reset")
	late, lateCancel := cell.Subscribe()
	defer lateCancel()
	testutil.RequireNoReceive(t, late, "replay survived reset")

	cell.Publish(1, "after")
	if got := testutil.RequireReceive(t, channel, time.Second, "post-reset value"); got != "after" {
		t.Fatalf("received %q, want after", got)
	}
}

func TestCancelClosesChannelOnce(t *testing.T) {
	var cell Cell[string]
	channel, cancel := cell.Subscribe()
	if cell.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", cell.Subscribers())
	}
	cancel()
	cancel()
	testutil.RequireClosed(t, channel, time.Second, "cancelled subscription")
	if cell.Subscribers() != 0 {
		t.Fatalf("Subscribers() = %d after cancel, want 0", cell.Subscribers())
	}
	if !cell.Publish(0, "after cancel") {
		t.Fatal("publish with no subscribers rejected")
	}
}
