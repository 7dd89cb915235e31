// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package invalidation broadcasts "data in these categories changed"
// signals to interested consumers.
//
// Paginators never refresh themselves when the engine reports a
// change. Instead they (and unrelated mutations, such as a label
// applied from another screen) notify a [Bus] with a [Set] of
// [Source] categories, and list consumers subscribed with a matching
// interest decide whether to ask for a fresh first page.
//
// Delivery is lossless but coalesced: while a subscriber has not yet
// drained its channel, further notifications are merged into the
// pending set rather than queued, so a slow consumer sees one union
// instead of a backlog. Notify never blocks, which makes it safe to
// call from an engine-owned callback goroutine.
package invalidation
