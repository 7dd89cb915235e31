// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package draftcache

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/mailbridge/lib/engine"
)

// SessionID identifies one UI editing session.
type SessionID string

// ActiveSessions is the external registry of editing sessions.
type ActiveSessions interface {
	// SetUnregisterCallback installs fn, replacing any previous
	// callback. fn is called with the id of every session that ends.
	SetUnregisterCallback(fn func(SessionID))

	// LatestActiveInstance returns the most recently active session.
	LatestActiveInstance() (SessionID, bool)
}

// DraftHandle is an open draft. The cache calls Close exactly once
// when the entry is removed or replaced. Handles must be comparable.
type DraftHandle interface {
	Close() error
}

const reasonSessionEnded = "session ended"

// ErrNoDraft means the active session has no draft stored.
var ErrNoDraft = errors.New("no draft for session")

// Cache holds at most one draft per session. Safe for concurrent use.
type Cache struct {
	sessions ActiveSessions
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[SessionID]DraftHandle
	// ended holds every session whose unregister callback has run, so
	// an Add that raced the end of its session is not stored.
	ended map[SessionID]struct{}
}

// New returns an empty cache and installs its unregister callback on
// sessions. A nil logger discards.
func New(sessions ActiveSessions, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cache := &Cache{
		sessions: sessions,
		logger:   logger,
		entries:  make(map[SessionID]DraftHandle),
		ended:    make(map[SessionID]struct{}),
	}
	sessions.SetUnregisterCallback(cache.remove)
	return cache
}

// Add stores handle for the active session, closing the handle it
// replaces. Panics if no session is active. If the session ended
// before the entry could be stored, handle is closed instead.
func (c *Cache) Add(handle DraftHandle) {
	session, ok := c.sessions.LatestActiveInstance()
	if !ok {
		panic("draftcache: Add called with no active editing session")
	}

	c.mu.Lock()
	if _, gone := c.ended[session]; gone {
		c.mu.Unlock()
		c.closeHandle(session, handle, reasonSessionEnded)
		return
	}
	replaced, existed := c.entries[session]
	c.entries[session] = handle
	c.mu.Unlock()

	c.logger.Debug("draft stored", "session", string(session), "replaced", existed)
	if existed && replaced != handle {
		c.closeHandle(session, replaced, "replaced")
	}
}

// Get returns the draft for the active session. Panics if no session is
// active or the active session has no draft; use Lookup to probe.
func (c *Cache) Get() DraftHandle {
	handle, err := c.Lookup()
	if err != nil {
		panic("draftcache: Get: " + err.Error())
	}
	return handle
}

// Lookup returns the draft for the active session, or an error
// matching engine.ErrNoActiveSession or ErrNoDraft.
func (c *Cache) Lookup() (DraftHandle, error) {
	session, ok := c.sessions.LatestActiveInstance()
	if !ok {
		return nil, engine.ErrNoActiveSession
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	handle, ok := c.entries[session]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", session, ErrNoDraft)
	}
	return handle, nil
}

// Discard removes and closes the active session's draft. Returns
// whether there was one.
func (c *Cache) Discard() bool {
	session, ok := c.sessions.LatestActiveInstance()
	if !ok {
		return false
	}
	return c.removeWithReason(session, "discarded")
}

// remove is the unregister callback.
func (c *Cache) remove(session SessionID) {
	c.removeWithReason(session, reasonSessionEnded)
}

func (c *Cache) removeWithReason(session SessionID, reason string) bool {
	c.mu.Lock()
	if reason == reasonSessionEnded {
		c.ended[session] = struct{}{}
	}
	handle, ok := c.entries[session]
	delete(c.entries, session)
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.closeHandle(session, handle, reason)
	return true
}

func (c *Cache) closeHandle(session SessionID, handle DraftHandle, reason string) {
	if err := handle.Close(); err != nil {
		c.logger.Warn("closing draft failed",
			"session", string(session),
			"reason", reason,
			"error", err,
		)
		return
	}
	c.logger.Debug("draft closed", "session", string(session), "reason", reason)
}

// Len returns the number of stored drafts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
