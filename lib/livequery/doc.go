// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package livequery bridges the native engine's watcher callbacks into
// subscriber streams.
//
// A [Bridge] holds at most one live native watcher. Callers ask for a
// stream of snapshots for a [engine.Key] with [Bridge.Observe] (an
// iterator) or [Bridge.Subscribe] (a channel). The first subscription
// for a key queries the engine, registers a change watcher, and
// publishes the snapshot; later subscriptions with an equal key share
// that watcher. A subscription for a different key replaces it: the
// old watcher is disconnected before the new one is created, all under
// the bridge's creation lock, so two racing callers can never both
// create one.
//
// Every change callback from the engine re-queries and republishes.
// Callbacks run on the engine's goroutine; the bridge only hands the
// signal off to its own goroutine there. Re-fetches are serialized
// against each other but not against the creation lock. Each watcher
// carries a generation, and the shared [replay.Cell] only accepts
// values for the current generation, so a callback that lands after a
// key switch or a teardown can never publish a snapshot for the old
// key.
//
// All subscribers share one latest-value replay container. When the
// last subscription closes (explicitly or through its context), the
// watcher is disconnected and the replay value cleared.
//
// Failure handling: a failed creation publishes one error result and
// keeps no watcher, so the next subscription retries from scratch. A
// failed re-fetch publishes the error and keeps the watcher; the next
// change callback tries again. Nothing in this package retries on its
// own.
//
// Live watchers are registered with a [resource.Registry] so sign-out
// can tear them down without going through each bridge.
package livequery
