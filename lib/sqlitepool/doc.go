// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool is the SQLite connection pool behind the mail
// store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every connection
// gets the same pragmas and the caller's schema script on first use:
//
//   - journal_mode=WAL so list readers never block a writer applying a
//     label change.
//   - synchronous=NORMAL: survives a process crash, not a power loss.
//     The mail server is the source of truth; this is a local replica.
//   - busy_timeout from [Config.BusyTimeout] (5s by default).
//   - foreign_keys=ON: label and attachment rows reference messages.
//   - cache_size=-8192, temp_store=MEMORY.
//
// Connections are not safe for concurrent use. Either Take and Put
// explicitly or use [Pool.Read] and [Pool.Write], which hand a
// connection to a callback and return it afterwards. Write runs the
// callback in an IMMEDIATE transaction that commits when the callback
// returns nil and rolls back otherwise.
//
//	err := pool.Write(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "UPDATE messages SET unread = 0 WHERE id = ?",
//	        &sqlitex.ExecOptions{Args: []any{id}})
//	})
package sqlitepool
