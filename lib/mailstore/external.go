// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bureau-foundation/mailbridge/lib/clock"
	"github.com/bureau-foundation/mailbridge/lib/sqlitepool"
)

// WatchExternalChanges fires every registered watcher and paginator
// when another process commits to the database file. It watches the
// database directory, waits for a burst of events to settle, then
// compares PRAGMA data_version on a held connection. Commits made
// through this Store also move data_version, so they fire twice; the
// second firing refetches unchanged data.
//
// Blocks until ctx is cancelled and returns nil, or returns the error
// that stopped the watch.
func (s *Store) WatchExternalChanges(ctx context.Context) error {
	path := s.pool.Path()
	watched := map[string]struct{}{
		filepath.Base(path):          {},
		filepath.Base(path) + "-wal": {},
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("mailstore: external watch: %w", err)
	}
	defer s.pool.Put(conn)
	version, err := sqlitepool.DataVersion(conn)
	if err != nil {
		return fmt.Errorf("mailstore: external watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("mailstore: external watch: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("mailstore: external watch %s: %w", filepath.Dir(path), err)
	}
	s.logger.Info("watching for external changes", "path", path, "debounce", s.debounce)

	settled := make(chan struct{}, 1)
	var pending clock.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, relevant := watched[filepath.Base(event.Name)]; !relevant {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = s.clock.AfterFunc(s.debounce, func() {
				select {
				case settled <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("external watch error", "error", err)

		case <-settled:
			current, err := sqlitepool.DataVersion(conn)
			if err != nil {
				return fmt.Errorf("mailstore: external watch: %w", err)
			}
			if current == version {
				continue
			}
			version = current
			s.logger.Debug("external change detected", "data_version", current)
			s.notify(change{all: true})
		}
	}
}
