// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/mailbridge/lib/clock"
	"github.com/bureau-foundation/mailbridge/lib/compress"
	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/sqlitepool"
)

// DefaultPageSize is used when Config.PageSize is zero.
const DefaultPageSize = 25

// DefaultDebounce is used when Config.ExternalDebounce is zero.
const DefaultDebounce = 100 * time.Millisecond

const schema = `
CREATE TABLE IF NOT EXISTS labels (
	user   TEXT NOT NULL,
	id     TEXT NOT NULL,
	name   TEXT NOT NULL,
	system INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user, id)
);

CREATE TABLE IF NOT EXISTS messages (
	user         TEXT NOT NULL,
	id           TEXT NOT NULL,
	conversation TEXT NOT NULL,
	time         INTEGER NOT NULL,
	unread       INTEGER NOT NULL DEFAULT 0,
	meta         BLOB NOT NULL,
	body         BLOB NOT NULL,
	PRIMARY KEY (user, id)
);
CREATE INDEX IF NOT EXISTS messages_by_conversation ON messages (user, conversation, time);
CREATE INDEX IF NOT EXISTS messages_by_time ON messages (user, time DESC, id DESC);

CREATE TABLE IF NOT EXISTS message_labels (
	user    TEXT NOT NULL,
	message TEXT NOT NULL,
	label   TEXT NOT NULL,
	PRIMARY KEY (user, message, label),
	FOREIGN KEY (user, message) REFERENCES messages (user, id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS message_labels_by_label ON message_labels (user, label);

CREATE TABLE IF NOT EXISTS attachments (
	user    TEXT NOT NULL,
	id      TEXT NOT NULL,
	message TEXT NOT NULL,
	meta    BLOB NOT NULL,
	PRIMARY KEY (user, id),
	FOREIGN KEY (user, message) REFERENCES messages (user, id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS attachments_by_message ON attachments (user, message);

CREATE TABLE IF NOT EXISTS send_results (
	user    TEXT NOT NULL,
	message TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	record  BLOB NOT NULL,
	PRIMARY KEY (user, message, seq)
);
`

// Config holds the parameters for Open. Path is required.
type Config struct {
	// Path is the database file. Its directory must exist.
	Path string

	// PoolSize is the connection pool size. WatchExternalChanges holds
	// one connection for as long as it runs.
	PoolSize int

	// BusyTimeout bounds waits for the write lock.
	BusyTimeout time.Duration

	// PageSize is the number of items per list page.
	PageSize int

	// Compression is the body compression for new messages. The zero
	// value stores bodies uncompressed.
	Compression compress.Algorithm

	// ExternalDebounce is how long WatchExternalChanges waits for a
	// burst of filesystem events to settle before checking the
	// database.
	ExternalDebounce time.Duration

	// Clock stamps send results and drives the debounce. Nil uses the
	// wall clock.
	Clock clock.Clock

	// Logger receives store messages. Nil discards.
	Logger *slog.Logger
}

// Store is the SQLite mail engine. Safe for concurrent use.
type Store struct {
	pool        *sqlitepool.Pool
	logger      *slog.Logger
	clock       clock.Clock
	pageSize    int
	compression compress.Algorithm
	debounce    time.Duration

	watchers *watcherSet
	changes  *changeQueue

	sessionsMu sync.Mutex
	sessions   map[engine.UserID]struct{}

	cancel     context.CancelFunc
	background *errgroup.Group
	closeOnce  sync.Once
	closeErr   error
}

// Open opens (creating if needed) the database at cfg.Path and starts
// the change dispatcher. Call Close when done.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	debounce := cfg.ExternalDebounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	storeClock := cfg.Clock
	if storeClock == nil {
		storeClock = clock.Real()
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:        cfg.Path,
		PoolSize:    cfg.PoolSize,
		BusyTimeout: cfg.BusyTimeout,
		Schema:      schema,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("mailstore: %w", err)
	}

	// Apply the schema now so a bad file fails Open rather than the
	// first query.
	if err := pool.Read(context.Background(), func(*sqlite.Conn) error { return nil }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("mailstore: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	background, ctx := errgroup.WithContext(ctx)
	store := &Store{
		pool:        pool,
		logger:      logger.With("component", "mailstore"),
		clock:       storeClock,
		pageSize:    pageSize,
		compression: cfg.Compression,
		debounce:    debounce,
		watchers:    newWatcherSet(),
		changes:     newChangeQueue(),
		sessions:    make(map[engine.UserID]struct{}),
		cancel:      cancel,
		background:  background,
	}
	background.Go(func() error {
		store.dispatch(ctx)
		return nil
	})
	return store, nil
}

// Close stops the dispatcher and closes the database. Callbacks queued
// but not yet dispatched are dropped. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.background.Wait()
		s.closeErr = s.pool.Close()
	})
	return s.closeErr
}

// SignIn opens a session for user. Queries and watcher registrations
// for users without a session fail with engine.ErrNoUserSession.
func (s *Store) SignIn(user engine.UserID) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[user] = struct{}{}
	s.logger.Info("user signed in", "user", string(user))
}

// SignOut ends user's session. Existing watchers stay registered until
// their owners disconnect them.
func (s *Store) SignOut(user engine.UserID) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, user)
	s.logger.Info("user signed out", "user", string(user))
}

func (s *Store) requireSession(user engine.UserID) error {
	if user == "" {
		return fmt.Errorf("mailstore: %w", engine.ErrNoUserSession)
	}
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if _, ok := s.sessions[user]; !ok {
		return fmt.Errorf("mailstore: user %s: %w", user, engine.ErrNoUserSession)
	}
	return nil
}

// PageSize returns the number of items per list page.
func (s *Store) PageSize() int {
	return s.pageSize
}
