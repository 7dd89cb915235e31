// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/bureau-foundation/mailbridge/lib/engine"
)

// Source is a fake [engine.Source]. Snapshots are set per key with
// Set; queries for keys without a snapshot fail with engine.ErrNotFound.
type Source[S any] struct {
	mu sync.Mutex

	snapshots   map[string]S
	queryErrors map[string]error
	registerErr map[string]error
	gate        chan struct{}

	watchers     map[int]*watcher
	nextID       int
	maxLive      int
	queries      int
	registered   []engine.Key
	disconnected []engine.Key
}

type watcher struct {
	id       int
	key      engine.Key
	onChange func()
}

// NewSource returns an empty fake source.
func NewSource[S any]() *Source[S] {
	return &Source[S]{
		snapshots:   make(map[string]S),
		queryErrors: make(map[string]error),
		registerErr: make(map[string]error),
		watchers:    make(map[int]*watcher),
	}
}

// Set stores the snapshot returned for key and clears any injected
// query failure for it.
func (s *Source[S]) Set(key engine.Key, snapshot S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key.String()] = snapshot
	delete(s.queryErrors, key.String())
}

// FailQuery makes every subsequent query for key fail with err until
// the next Set for the same key.
func (s *Source[S]) FailQuery(key engine.Key, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryErrors[key.String()] = err
}

// FailRegister makes RegisterWatcher for key fail with err. A nil err
// clears the injection.
func (s *Source[S]) FailRegister(key engine.Key, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.registerErr, key.String())
		return
	}
	s.registerErr[key.String()] = err
}

// HoldQueries makes every query block until the returned release
// function is called (or the query's context ends). Used to keep a
// creation in flight while another goroutine races it.
func (s *Source[S]) HoldQueries() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Query implements engine.Source.
func (s *Source[S]) Query(ctx context.Context, key engine.Key) (S, error) {
	s.mu.Lock()
	gate := s.gate
	s.queries++
	s.mu.Unlock()

	var zero S
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.queryErrors[key.String()]; ok {
		return zero, err
	}
	snapshot, ok := s.snapshots[key.String()]
	if !ok {
		return zero, fmt.Errorf("query %s: %w", key, engine.ErrNotFound)
	}
	return snapshot, nil
}

// RegisterWatcher implements engine.Source.
func (s *Source[S]) RegisterWatcher(ctx context.Context, key engine.Key, onChange func()) (engine.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.registerErr[key.String()]; ok {
		return nil, err
	}
	s.nextID++
	w := &watcher{id: s.nextID, key: key, onChange: onChange}
	s.watchers[w.id] = w
	s.registered = append(s.registered, key)
	if len(s.watchers) > s.maxLive {
		s.maxLive = len(s.watchers)
	}
	return engine.OnceHandle(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, w.id)
		s.disconnected = append(s.disconnected, w.key)
	}), nil
}

// Fire invokes the change callback of every live watcher for key, on
// the calling goroutine (standing in for the engine's own thread).
// Returns the number of callbacks invoked.
func (s *Source[S]) Fire(key engine.Key) int {
	callbacks := s.callbacksFor(func(candidate engine.Key) bool { return candidate.Equal(key) })
	for _, callback := range callbacks {
		callback()
	}
	return len(callbacks)
}

// FireCaptured returns the change callback of the live watcher for key
// without invoking it, so a test can fire it after the watcher has
// been replaced (a late callback from the engine). Returns nil if no
// watcher for key is live.
func (s *Source[S]) FireCaptured(key engine.Key) func() {
	callbacks := s.callbacksFor(func(candidate engine.Key) bool { return candidate.Equal(key) })
	if len(callbacks) == 0 {
		return nil
	}
	return callbacks[0]
}

func (s *Source[S]) callbacksFor(match func(engine.Key) bool) []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var callbacks []func()
	for _, w := range s.watchers {
		if match(w.key) {
			callbacks = append(callbacks, w.onChange)
		}
	}
	return callbacks
}

// Live returns the number of watchers not yet disconnected.
func (s *Source[S]) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// MaxLive returns the highest number of simultaneously live watchers
// observed since construction.
func (s *Source[S]) MaxLive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxLive
}

// Queries returns the number of Query calls made.
func (s *Source[S]) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// Registered returns the keys of every watcher ever registered, in
// registration order.
func (s *Source[S]) Registered() []engine.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.Key(nil), s.registered...)
}

// Disconnected returns the keys of every watcher disconnected, in
// disconnect order.
func (s *Source[S]) Disconnected() []engine.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.Key(nil), s.disconnected...)
}
