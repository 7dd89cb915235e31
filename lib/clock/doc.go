// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source injected into the mail store.
//
// The store stamps send results and debounces bursts of filesystem
// events. Both go through a [Clock] so tests can run them on a
// [FakeClock] that moves only when the test calls Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	store := mailstore.Open(mailstore.Config{Clock: c, ...})
//	c.WaitForTimers(1)
//	c.Advance(debounce)
package clock
