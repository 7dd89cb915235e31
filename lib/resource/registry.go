// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"log/slog"
	"sync"
)

// Disconnector is a resource that can be released. Implementations
// must be comparable (pointer types) because the registry is a set.
type Disconnector interface {
	Disconnect()
}

// Registry is a mutex-guarded set of live resources. Its membership is
// always a subset of the resources that have not been disconnected:
// DisconnectAll removes members before disconnecting them, and owners
// unregister before disconnecting on their own.
type Registry struct {
	mu      sync.Mutex
	members map[Disconnector]struct{}
	logger  *slog.Logger
}

// New returns an empty registry. A nil logger discards output.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		members: make(map[Disconnector]struct{}),
		logger:  logger,
	}
}

var defaultRegistry = New(slog.Default())

// Default returns the process-scoped registry. Teardown triggers
// (sign-out, account switch) call DisconnectAll on it.
func Default() *Registry {
	return defaultRegistry
}

// Register adds resource to the set. Registering a member twice is a
// no-op.
func (r *Registry) Register(resource Disconnector) {
	if resource == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[resource] = struct{}{}
}

// Unregister removes resource from the set without disconnecting it.
// Returns whether it was a member.
func (r *Registry) Unregister(resource Disconnector) bool {
	if resource == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[resource]
	delete(r.members, resource)
	return ok
}

// Contains reports whether resource is currently registered.
func (r *Registry) Contains(resource Disconnector) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[resource]
	return ok
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// DisconnectAll disconnects every current member exactly once and
// leaves the set empty. The membership is taken and cleared under the
// lock; the disconnects run after it is released, so a resource whose
// Disconnect calls back into Unregister cannot deadlock. Resources
// registered while DisconnectAll runs are not affected. Returns the
// number of resources disconnected.
func (r *Registry) DisconnectAll() int {
	r.mu.Lock()
	members := make([]Disconnector, 0, len(r.members))
	for member := range r.members {
		members = append(members, member)
	}
	clear(r.members)
	r.mu.Unlock()

	for _, member := range members {
		member.Disconnect()
	}
	if len(members) > 0 {
		r.logger.Info("disconnected all registered resources", "count", len(members))
	}
	return len(members)
}
