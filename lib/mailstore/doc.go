// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mailstore is a SQLite-backed mail engine: the native side
// the live-query bridges and paginator machines sit on.
//
// A [Store] keeps messages, labels, attachments, and send results per
// user in one database file (through lib/sqlitepool). Message metadata
// is CBOR (lib/codec) and bodies are framed with lib/compress.
//
// The store exposes the engine contracts the sync layer consumes:
//
//   - [Store.ConversationDetails], [Store.Attachments], and
//     [Store.SendStatus] implement engine.Source.
//   - [Store.ConversationList] and [Store.MessageList] implement
//     engine.PaginatorSource with a keyset cursor ordered newest
//     first: (time DESC, id DESC).
//
// Queries need a signed-in user ([Store.SignIn]); otherwise they fail
// with engine.ErrNoUserSession.
//
// Mutations ([Store.PutMessage], [Store.ApplyLabel], [Store.MarkRead],
// ...) commit, then queue a change description. A single dispatcher
// goroutine owned by the store matches queued changes against
// registered watchers and paginators and invokes their callbacks, so
// callbacks never run on the mutating goroutine and never run
// concurrently with each other. A write that changes nothing fires
// nothing.
//
// [Store.WatchExternalChanges] notices commits made by other processes
// sharing the database file (fsnotify on the directory, confirmed by
// PRAGMA data_version) and fires every watcher. It cannot tell another
// process's commit from one made through a different connection of
// this store's own pool, so local writes may cause one extra,
// harmless, re-fetch.
package mailstore
