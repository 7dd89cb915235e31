// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for mailbridge
// packages.
//
// [RequireReceive], [RequireNoReceive], and [RequireClosed] wrap the
// select-with-timeout pattern for channel assertions so that tests do
// not scatter time.After calls. [RequireEventually] polls a condition
// that settles asynchronously (a goroutine finishing teardown, a
// callback landing). These are the only helpers in the test suite that
// use wall-clock time, and only as a hang guard: a passing test never
// waits for a timeout except in RequireNoReceive, whose quiet window is
// deliberately short.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation (message ids, session ids, conversation ids).
//
// All helpers call t.Fatalf on failure.
//
// This package has no mailbridge dependencies.
package testutil
