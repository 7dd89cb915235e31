// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailstore

import (
	"context"
	"slices"
	"sync"

	"github.com/bureau-foundation/mailbridge/lib/engine"
)

type watchKind uint8

const (
	watchConversation watchKind = iota
	watchAttachments
	watchSendStatus
	watchConversationList
	watchMessageList
)

func (k watchKind) String() string {
	switch k {
	case watchConversation:
		return "conversation"
	case watchAttachments:
		return "attachments"
	case watchSendStatus:
		return "send_status"
	case watchConversationList:
		return "conversation_list"
	case watchMessageList:
		return "message_list"
	default:
		return "unknown"
	}
}

// registration is one native watcher or paginator callback.
type registration struct {
	kind     watchKind
	user     engine.UserID
	entity   string
	label    engine.LabelID
	onChange func()
}

// change describes what a committed write touched.
type change struct {
	// all fires every registration; user is ignored.
	all  bool
	user engine.UserID

	conversations []string
	labels        []engine.LabelID
	attachmentsOf []string
	sendStatusOf  []string
}

func (r *registration) affectedBy(c change) bool {
	if c.all {
		return true
	}
	if r.user != c.user {
		return false
	}
	switch r.kind {
	case watchConversation:
		return slices.Contains(c.conversations, r.entity)
	case watchAttachments:
		return slices.Contains(c.attachmentsOf, r.entity)
	case watchSendStatus:
		return slices.Contains(c.sendStatusOf, r.entity)
	case watchConversationList, watchMessageList:
		// An unscoped list covers every message.
		if r.label == "" {
			return len(c.labels) > 0 || len(c.conversations) > 0
		}
		return slices.Contains(c.labels, r.label)
	default:
		return false
	}
}

type watcherSet struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[uint64]*registration
}

func newWatcherSet() *watcherSet {
	return &watcherSet{entries: make(map[uint64]*registration)}
}

func (w *watcherSet) add(r *registration) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	w.entries[w.nextID] = r
	return w.nextID
}

func (w *watcherSet) remove(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, id)
}

func (w *watcherSet) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// matching returns the callbacks of every registration affected by c.
func (w *watcherSet) matching(c change) []func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	var callbacks []func()
	for _, r := range w.entries {
		if r.affectedBy(c) {
			callbacks = append(callbacks, r.onChange)
		}
	}
	return callbacks
}

// changeQueue is an unbounded FIFO so that writers never wait for the
// dispatcher.
type changeQueue struct {
	mu      sync.Mutex
	pending []change
	wake    chan struct{}
}

func newChangeQueue() *changeQueue {
	return &changeQueue{wake: make(chan struct{}, 1)}
}

func (q *changeQueue) push(c change) {
	q.mu.Lock()
	q.pending = append(q.pending, c)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *changeQueue) drain() []change {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.pending
	q.pending = nil
	return drained
}

// notify queues c for the dispatcher.
func (s *Store) notify(c change) {
	s.changes.push(c)
}

// dispatch is the engine-owned goroutine that runs watcher callbacks.
func (s *Store) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.changes.wake:
		}
		for _, c := range s.changes.drain() {
			callbacks := s.watchers.matching(c)
			if len(callbacks) == 0 {
				continue
			}
			s.logger.Debug("firing watchers",
				"user", string(c.user),
				"all", c.all,
				"watchers", len(callbacks),
			)
			for _, callback := range callbacks {
				callback()
			}
		}
	}
}

// register adds a callback and returns the handle that removes it.
func (s *Store) register(r *registration) engine.Handle {
	id := s.watchers.add(r)
	s.logger.Debug("watcher registered",
		"kind", r.kind.String(),
		"user", string(r.user),
		"entity", r.entity,
		"label", string(r.label),
	)
	return engine.OnceHandle(func() {
		s.watchers.remove(id)
		s.logger.Debug("watcher removed", "kind", r.kind.String(), "user", string(r.user))
	})
}

// Watchers returns the number of registered watchers and paginators.
func (s *Store) Watchers() int {
	return s.watchers.len()
}
