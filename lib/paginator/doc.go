// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package paginator drives a native engine paginator for one list
// screen.
//
// A [Machine] owns at most one native paginator and the key it was
// created for. [Machine.Page] takes a [Request]:
//
//   - [First] always discards the current paginator and creates a new
//     one, then loads its first page.
//   - [Next] reuses the current paginator when the key is unchanged and
//     loads the following page; otherwise it reinitializes first.
//   - [All] reloads everything loaded so far on the current paginator
//     without replacing it. It is not an alias for First, even when the
//     key is unchanged.
//
// The reinitialize decision, the disconnect of the old paginator, the
// creation of the new one, and the page load happen in one critical
// section.
//
// Page never returns an error. Any failure (missing session, creation
// failure, page failure) is logged and yields an empty page; the
// caller retries by asking again.
//
// Engine change notifications do not touch the paginator. They are
// forwarded to an [invalidation.Bus] with the machine's configured
// sources; list consumers subscribed to the bus respond with a First
// request.
package paginator
