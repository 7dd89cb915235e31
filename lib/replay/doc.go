// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package replay provides [Cell], a single-slot publish/subscribe
// container with latest-value replay.
//
// A Cell has one logical producer and any number of subscribers. A new
// subscriber immediately receives the most recent value (if any), then
// every later value. Each subscriber has a one-element conflating
// buffer: when a subscriber falls behind, the undelivered value is
// replaced by the newer one, so a consumer always converges on the
// latest state without ever blocking the producer.
//
// Publishing is epoch-guarded. [Cell.Reset] moves the cell to a new
// epoch and clears the replay value; [Cell.Publish] with any other
// epoch is dropped. The epoch comparison and the delivery happen under
// the same lock, so a producer that was superseded between computing a
// value and publishing it can never leak that value to subscribers.
//
// This package depends on no other mailbridge packages.
package replay
