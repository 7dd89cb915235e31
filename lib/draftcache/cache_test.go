// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package draftcache

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/mailbridge/lib/engine"
)

type fakeDraft struct {
	name   string
	closes atomic.Int32
	err    error
}

func (d *fakeDraft) Close() error {
	d.closes.Add(1)
	return d.err
}

func requirePanic(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		recovered := recover()
		if recovered == nil {
			t.Fatalf("expected panic containing %q", contains)
		}
		message, ok := recovered.(string)
		if !ok || !strings.Contains(message, contains) {
			t.Fatalf("panic %v does not contain %q", recovered, contains)
		}
	}()
	fn()
}

func TestAddThenGetReturnsHandle(t *testing.T) {
	sessions := NewMemorySessions()
	cache := New(sessions, nil)
	sessions.Start()

	draft := &fakeDraft{name: "d1"}
	cache.Add(draft)
	if got := cache.Get(); got != draft {
		t.Fatalf("Get() = %v, want %v", got, draft)
	}
	if got := cache.Get(); got != draft {
		t.Fatal("second Get() returned a different handle")
	}
}

func TestUnregisterRemovesEntry(t *testing.T) {
	sessions := NewMemorySessions()
	cache := New(sessions, nil)
	owner := sessions.Start()
	draft := &fakeDraft{name: "d1"}
	cache.Add(draft)

	sessions.End(owner)
	if draft.closes.Load() != 1 {
		t.Fatalf("draft closed %d times, want 1", draft.closes.Load())
	}
	if cache.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", cache.Len())
	}

	sessions.Start()
	requirePanic(t, ErrNoDraft.Error(), func() { cache.Get() })
	if _, err := cache.Lookup(); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("Lookup error = %v, want ErrNoDraft", err)
	}
}

func TestUnregisterOfNonCurrentSessionRemovesItsEntry(t *testing.T) {
	sessions := NewMemorySessions()
	cache := New(sessions, nil)

	background := sessions.Start()
	backgroundDraft := &fakeDraft{name: "background"}
	cache.Add(backgroundDraft)

	sessions.Start()
	foregroundDraft := &fakeDraft{name: "foreground"}
	cache.Add(foregroundDraft)

	sessions.End(background)
	if backgroundDraft.closes.Load() != 1 {
		t.Fatal("background draft not closed when its session ended")
	}
	if foregroundDraft.closes.Load() != 0 {
		t.Fatal("foreground draft closed by another session's unregister")
	}
	if got := cache.Get(); got != foregroundDraft {
		t.Fatalf("Get() = %v, want foreground draft", got)
	}
}

func TestNoActiveSessionPanics(t *testing.T) {
	cache := New(NewMemorySessions(), nil)
	requirePanic(t, "no active editing session", func() { cache.Add(&fakeDraft{}) })
	requirePanic(t, engine.ErrNoActiveSession.Error(), func() { cache.Get() })
	if _, err := cache.Lookup(); !errors.Is(err, engine.ErrNoActiveSession) {
		t.Fatalf("Lookup error = %v, want ErrNoActiveSession", err)
	}
	if cache.Discard() {
		t.Fatal("Discard with no session reported a removal")
	}
}

func TestReAddClosesReplacedHandle(t *testing.T) {
	sessions := NewMemorySessions()
	cache := New(sessions, nil)
	sessions.Start()

	first := &fakeDraft{name: "first", err: errors.New("flush failed")}
	second := &fakeDraft{name: "second"}
	cache.Add(first)
	cache.Add(first)
	if first.closes.Load() != 0 {
		t.Fatal("re-adding the same handle closed it")
	}
	cache.Add(second)
	if first.closes.Load() != 1 {
		t.Fatalf("replaced handle closed %d times, want 1", first.closes.Load())
	}
	if cache.Len() != 1 || cache.Get() != second {
		t.Fatal("cache should hold exactly the second handle")
	}
}

func TestDiscardClosesActiveDraft(t *testing.T) {
	sessions := NewMemorySessions()
	cache := New(sessions, nil)
	session := sessions.Start()
	draft := &fakeDraft{}
	cache.Add(draft)

	if !cache.Discard() {
		t.Fatal("Discard reported nothing removed")
	}
	if draft.closes.Load() != 1 {
		t.Fatalf("draft closed %d times, want 1", draft.closes.Load())
	}
	sessions.End(session)
	if draft.closes.Load() != 1 {
		t.Fatal("session end closed an already discarded draft")
	}
}

func TestActivateSwitchesLatestInstance(t *testing.T) {
	sessions := NewMemorySessions()
	cache := New(sessions, nil)
	first := sessions.Start()
	firstDraft := &fakeDraft{name: "first"}
	cache.Add(firstDraft)
	sessions.Start()
	cache.Add(&fakeDraft{name: "second"})

	if !sessions.Activate(first) {
		t.Fatal("Activate of an open session failed")
	}
	if got := cache.Get(); got != firstDraft {
		t.Fatalf("Get() after Activate = %v, want first draft", got)
	}
	if sessions.Activate("not-a-session") {
		t.Fatal("Activate of an unknown session succeeded")
	}
}

func TestConcurrentSessionsAreIsolated(t *testing.T) {
	sessions := NewMemorySessions()
	cache := New(sessions, nil)
	ids := make([]SessionID, 32)
	for i := range ids {
		ids[i] = sessions.Start()
	}
	latest := ids[len(ids)-1]
	cache.Add(&fakeDraft{name: "latest"})

	var group errgroup.Group
	for _, id := range ids[:len(ids)-1] {
		group.Go(func() error {
			sessions.End(id)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatal(err)
	}

	if got, ok := sessions.LatestActiveInstance(); !ok || got != latest {
		t.Fatalf("latest = %q, %v; want %q", got, ok, latest)
	}
	if cache.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cache.Len())
	}
}

// endingSessions reports a session as active but ends it on that same
// call, before the caller can store anything for it.
type endingSessions struct {
	session    SessionID
	unregister func(SessionID)
}

func (s *endingSessions) SetUnregisterCallback(fn func(SessionID)) { s.unregister = fn }

func (s *endingSessions) LatestActiveInstance() (SessionID, bool) {
	s.unregister(s.session)
	return s.session, true
}

func TestAddForSessionThatEndedMeanwhileClosesHandle(t *testing.T) {
	sessions := &endingSessions{session: "s1"}
	cache := New(sessions, nil)

	draft := &fakeDraft{name: "d1"}
	cache.Add(draft)
	if cache.Len() != 0 {
		t.Fatalf("Len() = %d after Add for an ended session, want 0", cache.Len())
	}
	if draft.closes.Load() != 1 {
		t.Fatalf("draft closed %d times, want 1", draft.closes.Load())
	}
}

func TestDiscardDoesNotEndSession(t *testing.T) {
	sessions := NewMemorySessions()
	cache := New(sessions, nil)
	sessions.Start()

	first := &fakeDraft{name: "d1"}
	cache.Add(first)
	if !cache.Discard() {
		t.Fatal("Discard() = false with a stored draft")
	}
	second := &fakeDraft{name: "d2"}
	cache.Add(second)
	if got := cache.Get(); got != second {
		t.Fatalf("Get() = %v after re-adding, want %v", got, second)
	}
	if second.closes.Load() != 0 {
		t.Fatalf("re-added draft closed %d times", second.closes.Load())
	}
}
