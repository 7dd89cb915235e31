// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package draftcache maps UI editing sessions to the draft being
// edited in them.
//
// The current session comes from an external [ActiveSessions]
// registry. [Cache.Add] stores a draft handle under the session that
// is active at the time of the call, and [Cache.Get] returns the
// handle for whichever session is active when it is called. Calling
// either with no active session, or Get with no draft stored for the
// active session, is a programming error and panics: the editor must
// not be reachable without a session and a draft.
//
// An entry lives until the session registry reports that its session
// unregistered (whether or not that session is still the current one)
// or until the editor discards the draft explicitly. Either way the
// handle is closed.
package draftcache
