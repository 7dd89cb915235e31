// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package draftcache

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemorySessions is an in-process ActiveSessions. The latest active
// instance is the most recently started or activated session that has
// not ended.
type MemorySessions struct {
	mu           sync.Mutex
	order        []SessionID
	onUnregister func(SessionID)
}

// NewMemorySessions returns a registry with no sessions.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{}
}

// Start opens a new session and makes it the latest active one.
func (s *MemorySessions) Start() SessionID {
	id := SessionID(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, id)
	return id
}

// Activate makes id the latest active session. Returns false if id is
// not open.
func (s *MemorySessions) Activate(id SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := slices.Index(s.order, id)
	if index < 0 {
		return false
	}
	s.order = append(slices.Delete(s.order, index, index+1), id)
	return true
}

// End closes id and invokes the unregister callback for it. Ending an
// unknown session does nothing.
func (s *MemorySessions) End(id SessionID) {
	s.mu.Lock()
	index := slices.Index(s.order, id)
	if index < 0 {
		s.mu.Unlock()
		return
	}
	s.order = slices.Delete(s.order, index, index+1)
	callback := s.onUnregister
	s.mu.Unlock()

	if callback != nil {
		callback(id)
	}
}

// SetUnregisterCallback implements ActiveSessions.
func (s *MemorySessions) SetUnregisterCallback(fn func(SessionID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUnregister = fn
}

// LatestActiveInstance implements ActiveSessions.
func (s *MemorySessions) LatestActiveInstance() (SessionID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return "", false
	}
	return s.order[len(s.order)-1], true
}

// Sessions returns the open sessions, oldest first.
func (s *MemorySessions) Sessions() []SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}
