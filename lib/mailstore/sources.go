// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailstore

import (
	"context"
	"fmt"
	"sync"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
)

// snapshotSource adapts one query/watch pair to engine.Source.
type snapshotSource[S any] struct {
	store *Store
	kind  watchKind
	load  func(conn *sqlite.Conn, key engine.Key) (S, error)
}

func (s *snapshotSource[S]) Query(ctx context.Context, key engine.Key) (S, error) {
	var snapshot S
	if err := s.store.requireSession(key.User); err != nil {
		return snapshot, err
	}
	err := s.store.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		snapshot, err = s.load(conn, key)
		return err
	})
	if err != nil {
		return snapshot, fmt.Errorf("mailstore: %s %s: %w", s.kind, key, err)
	}
	return snapshot, nil
}

func (s *snapshotSource[S]) RegisterWatcher(ctx context.Context, key engine.Key, onChange func()) (engine.Handle, error) {
	if err := s.store.requireSession(key.User); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.register(&registration{
		kind:     s.kind,
		user:     key.User,
		entity:   string(key.Entity),
		onChange: onChange,
	}), nil
}

// ConversationDetails serves conversation snapshots for keys built by
// mail.ConversationKey.
func (s *Store) ConversationDetails() engine.Source[mail.ConversationDetail] {
	return &snapshotSource[mail.ConversationDetail]{store: s, kind: watchConversation, load: s.loadDetail}
}

// Attachments serves a message's attachments for keys built by
// mail.MessageKey.
func (s *Store) Attachments() engine.Source[[]mail.Attachment] {
	return &snapshotSource[[]mail.Attachment]{
		store: s,
		kind:  watchAttachments,
		load: func(conn *sqlite.Conn, key engine.Key) ([]mail.Attachment, error) {
			return loadAttachments(conn, key.User, string(key.Entity))
		},
	}
}

// SendStatus serves a message's delivery history for keys built by
// mail.MessageKey.
func (s *Store) SendStatus() engine.Source[[]mail.SendResult] {
	return &snapshotSource[[]mail.SendResult]{
		store: s,
		kind:  watchSendStatus,
		load: func(conn *sqlite.Conn, key engine.Key) ([]mail.SendResult, error) {
			return loadSendResults(conn, key.User, string(key.Entity))
		},
	}
}

// pageLoader reads one window of a list.
type pageLoader[T any] func(conn *sqlite.Conn, filter listFilter, w window) ([]T, []position, error)

type listSource[T any] struct {
	store *Store
	kind  watchKind
	load  pageLoader[T]
}

// ConversationList pages conversation summaries, newest activity
// first, for keys built by mail.ListKey.
func (s *Store) ConversationList() engine.PaginatorSource[mail.Conversation] {
	return &listSource[mail.Conversation]{store: s, kind: watchConversationList, load: loadConversationPage}
}

// MessageList pages messages, newest first, for keys built by
// mail.ListKey. Bodies are not loaded.
func (s *Store) MessageList() engine.PaginatorSource[mail.Message] {
	return &listSource[mail.Message]{store: s, kind: watchMessageList, load: loadMessagePage}
}

func (l *listSource[T]) NewPaginator(ctx context.Context, key engine.Key, onChange func()) (engine.Paginator[T], error) {
	if err := l.store.requireSession(key.User); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter := listFilterOf(key)
	paginator := &listPaginator[T]{
		store:  l.store,
		kind:   l.kind,
		key:    key,
		filter: filter,
		load:   l.load,
	}
	paginator.handle = l.store.register(&registration{
		kind:     l.kind,
		user:     key.User,
		label:    filter.label,
		onChange: onChange,
	})
	return paginator, nil
}

// listPaginator is a keyset cursor over one list. The cursor only
// moves forward; Reload re-reads everything up to it.
type listPaginator[T any] struct {
	store  *Store
	kind   watchKind
	key    engine.Key
	filter listFilter
	load   pageLoader[T]
	handle engine.Handle

	mu     sync.Mutex
	cursor *position
	closed bool
}

func (p *listPaginator[T]) NextPage(ctx context.Context) ([]T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("mailstore: %s %s: %w", p.kind, p.key, engine.ErrDisconnected)
	}
	items, positions, err := p.read(ctx, window{after: p.cursor, limit: p.store.pageSize})
	if err != nil {
		return nil, err
	}
	if len(positions) > 0 {
		last := positions[len(positions)-1]
		p.cursor = &last
	}
	return items, nil
}

func (p *listPaginator[T]) Reload(ctx context.Context) ([]T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("mailstore: %s %s: %w", p.kind, p.key, engine.ErrDisconnected)
	}
	if p.cursor == nil {
		items, positions, err := p.read(ctx, window{limit: p.store.pageSize})
		if err != nil {
			return nil, err
		}
		if len(positions) > 0 {
			last := positions[len(positions)-1]
			p.cursor = &last
		}
		return items, nil
	}
	items, _, err := p.read(ctx, window{through: p.cursor})
	return items, err
}

func (p *listPaginator[T]) read(ctx context.Context, w window) ([]T, []position, error) {
	if err := p.store.requireSession(p.key.User); err != nil {
		return nil, nil, err
	}
	var items []T
	var positions []position
	err := p.store.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		items, positions, err = p.load(conn, p.filter, w)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("mailstore: %s %s: %w", p.kind, p.key, err)
	}
	return items, positions, nil
}

func (p *listPaginator[T]) Disconnect() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.handle.Disconnect()
}
