// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine defines the identity types and the narrow contracts
// through which the rest of mailbridge reaches the native query engine.
//
// The native engine is opaque: it answers queries, holds watchers that
// invoke a callback when the data behind a query changes, and hands out
// paginators that walk an ordered collection one page at a time. This
// package describes only that call/callback surface:
//
//   - [Key] is the composite identity of a query (owning user, target
//     entity, active filter set, view variant). Two keys are the same
//     watcher identity iff [Key.Equal] reports true.
//   - [Source] answers queries and registers change watchers.
//   - [PaginatorSource] creates [Paginator] cursors.
//   - [Handle] is any native resource with an idempotent Disconnect.
//   - [Result] is a single element of an observe stream: a snapshot
//     or an error, tagged with the key that produced it.
//
// Errors fall into the classes callers care about: session errors
// ([ErrNoUserSession], [ErrNoActiveSession]) are returned immediately
// and never retried; native failures are wrapped in [*EngineError] at
// the call site so the operation and key travel with the cause.
//
// Subpackage enginetest provides a deterministic fake engine for tests.
package engine
