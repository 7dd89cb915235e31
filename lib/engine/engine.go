// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Handle is a native resource owned by exactly one bridge or paginator
// at a time. Disconnect releases it and is idempotent: the second and
// later calls do nothing.
type Handle interface {
	Disconnect()
}

// OnceHandle returns a Handle whose Disconnect runs release exactly
// once, no matter how many times or from how many goroutines it is
// called.
func OnceHandle(release func()) Handle {
	return &onceHandle{release: release}
}

type onceHandle struct {
	once    sync.Once
	release func()
}

func (h *onceHandle) Disconnect() {
	h.once.Do(h.release)
}

// Source is the native query surface for one kind of snapshot.
//
// Query returns the current snapshot for key. RegisterWatcher asks the
// engine to call onChange whenever data behind key may have changed.
// onChange runs on an engine-owned goroutine and must not block or
// touch caller state directly; bridges hand the signal off to their
// own serialized work.
type Source[S any] interface {
	Query(ctx context.Context, key Key) (S, error)
	RegisterWatcher(ctx context.Context, key Key, onChange func()) (Handle, error)
}

// Paginator is a native cursor over an ordered collection. NextPage
// returns the next sequential page (empty once exhausted). Reload
// returns every item up to and including the current cursor position
// without moving the cursor backwards; when nothing has been loaded
// yet it returns the first page.
type Paginator[T any] interface {
	Handle
	NextPage(ctx context.Context) ([]T, error)
	Reload(ctx context.Context) ([]T, error)
}

// PaginatorSource creates paginators. onChange is invoked from an
// engine-owned goroutine whenever the collection behind key changes.
type PaginatorSource[T any] interface {
	NewPaginator(ctx context.Context, key Key, onChange func()) (Paginator[T], error)
}

var (
	// ErrNoUserSession means the key's user has no signed-in session.
	// Never retried by this module.
	ErrNoUserSession = errors.New("no user session")

	// ErrNoActiveSession means no UI editing session is active.
	ErrNoActiveSession = errors.New("no active editing session")

	// ErrNotFound means the key's entity does not exist in the engine.
	ErrNotFound = errors.New("not found")

	// ErrDisconnected means the operation targeted a handle that was
	// already disconnected.
	ErrDisconnected = errors.New("handle disconnected")
)

// EngineError wraps a native failure with the operation and key that
// produced it. Use errors.As to inspect, errors.Is to match the cause.
type EngineError struct {
	Op  string
	Key Key
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Wrap returns err wrapped in an EngineError for op and key. Session
// errors pass through unwrapped so callers can match them directly
// with errors.Is without unpacking. A nil err returns nil.
func Wrap(op string, key Key, err error) error {
	if err == nil {
		return nil
	}
	if IsSessionError(err) {
		return err
	}
	var existing *EngineError
	if errors.As(err, &existing) {
		return err
	}
	return &EngineError{Op: op, Key: key, Err: err}
}

// IsSessionError reports whether err is a session/context error.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrNoUserSession) || errors.Is(err, ErrNoActiveSession)
}
