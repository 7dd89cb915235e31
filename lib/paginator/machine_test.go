// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package paginator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/engine/enginetest"
	"github.com/bureau-foundation/mailbridge/lib/invalidation"
	"github.com/bureau-foundation/mailbridge/lib/resource"
	"github.com/bureau-foundation/mailbridge/lib/testutil"
)

func listKey(user, label string, unread bool) engine.Key {
	filters := []string{"label:" + label}
	if unread {
		filters = append(filters, "unread")
	}
	return engine.Key{User: engine.UserID(user), Filters: engine.NewFilterSet(filters...)}
}

func items(prefix string, count int) []string {
	result := make([]string, count)
	for i := range result {
		result[i] = fmt.Sprintf("%s-%02d", prefix, i)
	}
	return result
}

type fixture struct {
	machine  *Machine[string]
	source   *enginetest.PaginatorSource[string]
	registry *resource.Registry
	bus      *invalidation.Bus
}

func newFixture(t *testing.T, pageSize int) fixture {
	t.Helper()
	source := enginetest.NewPaginatorSource[string](pageSize)
	registry := resource.New(nil)
	bus := invalidation.NewBus(nil)
	machine := New[string](source, Options{
		Name:     "conversations",
		Registry: registry,
		Bus:      bus,
		Sources:  invalidation.NewSet(invalidation.Conversations),
	})
	t.Cleanup(machine.Close)
	return fixture{machine: machine, source: source, registry: registry, bus: bus}
}

func TestNextReusesPaginatorAndAdvances(t *testing.T) {
	f := newFixture(t, 3)
	key := listKey("u1", "inbox", false)
	all := items("c", 8)
	f.source.SetItems(key, all)
	ctx := context.Background()

	var pages [][]string
	for range 4 {
		pages = append(pages, f.machine.Page(ctx, key, Next))
	}
	want := [][]string{all[0:3], all[3:6], all[6:8], {}}
	if diff := cmp.Diff(want, pages, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("pages mismatch (-want +got):\n%s", diff)
	}
	if got := len(f.source.Created()); got != 1 {
		t.Fatalf("paginators created = %d, want 1", got)
	}
}

// Page 1 and 2 load on one paginator, an unrelated label change
// invalidates, and First starts again from scratch on a new paginator.
func TestInvalidationThenFirstRestarts(t *testing.T) {
	f := newFixture(t, 2)
	key := listKey("U", "L", false)
	all := items("c", 5)
	f.source.SetItems(key, all)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	invalidations := f.bus.Subscribe(ctx, invalidation.NewSet(invalidation.Labels, invalidation.Conversations))

	if diff := cmp.Diff(all[0:2], f.machine.Page(ctx, key, First)); diff != "" {
		t.Fatalf("page 1 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(all[2:4], f.machine.Page(ctx, key, Next)); diff != "" {
		t.Fatalf("page 2 mismatch (-want +got):\n%s", diff)
	}
	if got := len(f.source.Created()); got != 1 {
		t.Fatalf("paginators after two pages = %d, want 1", got)
	}

	f.bus.NotifyInvalidation(invalidation.Labels)
	signal := testutil.RequireReceive(t, invalidations, time.Second, "labels invalidation")
	if !signal.Contains(invalidation.Labels) {
		t.Fatalf("received %s, want labels", signal)
	}

	if diff := cmp.Diff(all[0:2], f.machine.Page(ctx, key, First)); diff != "" {
		t.Fatalf("restarted page 1 mismatch (-want +got):\n%s", diff)
	}
	if got := len(f.source.Created()); got != 2 {
		t.Fatalf("paginators after First = %d, want 2", got)
	}
	if f.source.Live() != 1 {
		t.Fatalf("live paginators = %d, want 1", f.source.Live())
	}
}

func TestAllReloadsWithoutReplacingPaginator(t *testing.T) {
	f := newFixture(t, 2)
	key := listKey("u1", "inbox", false)
	all := items("c", 6)
	f.source.SetItems(key, all)
	ctx := context.Background()

	f.machine.Page(ctx, key, First)
	f.machine.Page(ctx, key, Next)
	if diff := cmp.Diff(all[0:4], f.machine.Page(ctx, key, All)); diff != "" {
		t.Fatalf("reload mismatch (-want +got):\n%s", diff)
	}
	if got := len(f.source.Created()); got != 1 {
		t.Fatalf("All created a paginator: %d created", got)
	}
	// Reload does not move the cursor.
	if diff := cmp.Diff(all[4:6], f.machine.Page(ctx, key, Next)); diff != "" {
		t.Fatalf("page after reload mismatch (-want +got):\n%s", diff)
	}
}

func TestAllWithoutPaginatorCreatesOne(t *testing.T) {
	f := newFixture(t, 2)
	key := listKey("u1", "inbox", false)
	all := items("c", 5)
	f.source.SetItems(key, all)

	if diff := cmp.Diff(all[0:2], f.machine.Page(context.Background(), key, All)); diff != "" {
		t.Fatalf("initial reload mismatch (-want +got):\n%s", diff)
	}
	if got := len(f.source.Created()); got != 1 {
		t.Fatalf("paginators created = %d, want 1", got)
	}
}

func TestKeyChangeReplacesPaginator(t *testing.T) {
	f := newFixture(t, 2)
	inbox := listKey("u1", "inbox", false)
	unread := listKey("u1", "inbox", true)
	f.source.SetItems(inbox, items("all", 4))
	f.source.SetItems(unread, items("unread", 4))
	ctx := context.Background()

	f.machine.Page(ctx, inbox, Next)
	got := f.machine.Page(ctx, unread, Next)
	if diff := cmp.Diff(items("unread", 2), got); diff != "" {
		t.Fatalf("unread page mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]engine.Key{inbox}, f.source.Disconnected()); diff != "" {
		t.Fatalf("disconnected mismatch (-want +got):\n%s", diff)
	}
	if f.source.Live() != 1 || f.registry.Len() != 1 {
		t.Fatalf("live = %d, registered = %d, want 1 and 1", f.source.Live(), f.registry.Len())
	}
	if stats := f.machine.Stats(); !stats.Live || !stats.Key.Equal(unread) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestFailuresReturnEmptyPage(t *testing.T) {
	ctx := context.Background()

	t.Run("no user", func(t *testing.T) {
		f := newFixture(t, 2)
		if got := f.machine.Page(ctx, engine.Key{}, First); len(got) != 0 {
			t.Fatalf("got %v, want empty", got)
		}
		if len(f.source.Created()) != 0 {
			t.Fatal("a paginator was created without a user")
		}
	})

	t.Run("create fails", func(t *testing.T) {
		f := newFixture(t, 2)
		key := listKey("u1", "inbox", false)
		f.source.SetItems(key, items("c", 3))
		f.source.FailCreate(key, errors.New("engine offline"))
		if got := f.machine.Page(ctx, key, First); len(got) != 0 {
			t.Fatalf("got %v, want empty", got)
		}
		if f.machine.Stats().Live {
			t.Fatal("machine holds a paginator after failed creation")
		}
		f.source.FailCreate(key, nil)
		if got := f.machine.Page(ctx, key, Next); len(got) != 2 {
			t.Fatalf("retry returned %d items, want 2", len(got))
		}
	})

	t.Run("page fails", func(t *testing.T) {
		f := newFixture(t, 2)
		key := listKey("u1", "inbox", false)
		f.source.SetItems(key, items("c", 3))
		f.machine.Page(ctx, key, First)
		f.source.FailPages(errors.New("cursor expired"))
		if got := f.machine.Page(ctx, key, Next); len(got) != 0 {
			t.Fatalf("got %v, want empty", got)
		}
		if !f.machine.Stats().Live {
			t.Fatal("page failure should keep the paginator")
		}
	})
}

func TestChangeNotificationGoesToBus(t *testing.T) {
	f := newFixture(t, 2)
	key := listKey("u1", "inbox", false)
	f.source.SetItems(key, items("c", 4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	invalidations := f.bus.Subscribe(ctx, invalidation.All())

	f.machine.Page(ctx, key, First)
	if fired := f.source.Fire(key); fired != 1 {
		t.Fatalf("fired %d callbacks, want 1", fired)
	}
	got := testutil.RequireReceive(t, invalidations, time.Second, "change notification")
	if got != invalidation.NewSet(invalidation.Conversations) {
		t.Fatalf("received %s, want {conversations}", got)
	}
	if len(f.source.Created()) != 1 {
		t.Fatal("change notification recreated the paginator")
	}
}

func TestRegistryTeardownDisconnectsPaginator(t *testing.T) {
	f := newFixture(t, 2)
	key := listKey("u1", "inbox", false)
	f.source.SetItems(key, items("c", 4))
	f.machine.Page(context.Background(), key, First)

	if got := f.registry.DisconnectAll(); got != 1 {
		t.Fatalf("DisconnectAll = %d, want 1", got)
	}
	if f.source.Live() != 0 || f.machine.Stats().Live {
		t.Fatal("paginator survived registry teardown")
	}
	f.machine.Close()
	if got := len(f.source.Disconnected()); got != 1 {
		t.Fatalf("disconnects = %d, want 1", got)
	}
}

func TestConcurrentPagesHoldOnePaginator(t *testing.T) {
	f := newFixture(t, 1)
	keys := []engine.Key{
		listKey("u1", "inbox", false),
		listKey("u1", "inbox", true),
		listKey("u1", "sent", false),
	}
	for _, key := range keys {
		f.source.SetItems(key, items(key.Filters.String(), 100))
	}

	var group errgroup.Group
	for worker := range 16 {
		group.Go(func() error {
			for iteration := range 25 {
				key := keys[(worker+iteration)%len(keys)]
				f.machine.Page(context.Background(), key, Request(iteration%3))
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatal(err)
	}

	if f.source.Live() != 1 {
		t.Fatalf("live paginators = %d, want 1", f.source.Live())
	}
	if created, disconnected := len(f.source.Created()), len(f.source.Disconnected()); created != disconnected+1 {
		t.Fatalf("created %d, disconnected %d: a paginator leaked", created, disconnected)
	}
}

func TestParseRequest(t *testing.T) {
	for _, request := range []Request{First, Next, All} {
		parsed, err := ParseRequest(request.String())
		if err != nil || parsed != request {
			t.Fatalf("ParseRequest(%q) = %v, %v", request, parsed, err)
		}
	}
	if _, err := ParseRequest("last"); err == nil {
		t.Fatal("unknown request parsed")
	}
}
