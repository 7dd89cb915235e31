// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package enginetest

import (
	"context"
	"sync"

	"github.com/bureau-foundation/mailbridge/lib/engine"
)

// PaginatorSource is a fake [engine.PaginatorSource] serving fixed
// item lists per key in pages of PageSize.
type PaginatorSource[T any] struct {
	mu sync.Mutex

	pageSize  int
	items     map[string][]T
	createErr map[string]error
	pageErr   error

	live         map[int]*Paginator[T]
	nextID       int
	created      []engine.Key
	disconnected []engine.Key
}

// NewPaginatorSource returns a fake serving pages of pageSize items.
func NewPaginatorSource[T any](pageSize int) *PaginatorSource[T] {
	if pageSize <= 0 {
		pageSize = 1
	}
	return &PaginatorSource[T]{
		pageSize:  pageSize,
		items:     make(map[string][]T),
		createErr: make(map[string]error),
		live:      make(map[int]*Paginator[T]),
	}
}

// SetItems replaces the full ordered collection behind key.
func (s *PaginatorSource[T]) SetItems(key engine.Key, items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key.String()] = append([]T(nil), items...)
}

// FailCreate makes NewPaginator for key fail with err. A nil err
// clears the injection.
func (s *PaginatorSource[T]) FailCreate(key engine.Key, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.createErr, key.String())
		return
	}
	s.createErr[key.String()] = err
}

// FailPages makes every NextPage and Reload fail with err. A nil err
// clears the injection.
func (s *PaginatorSource[T]) FailPages(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageErr = err
}

// NewPaginator implements engine.PaginatorSource.
func (s *PaginatorSource[T]) NewPaginator(ctx context.Context, key engine.Key, onChange func()) (engine.Paginator[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.createErr[key.String()]; ok {
		return nil, err
	}
	s.nextID++
	paginator := &Paginator[T]{
		ID:       s.nextID,
		Key:      key,
		source:   s,
		onChange: onChange,
	}
	s.live[paginator.ID] = paginator
	s.created = append(s.created, key)
	return paginator, nil
}

// Fire invokes the change callback of every live paginator for key.
func (s *PaginatorSource[T]) Fire(key engine.Key) int {
	s.mu.Lock()
	var callbacks []func()
	for _, paginator := range s.live {
		if paginator.Key.Equal(key) && paginator.onChange != nil {
			callbacks = append(callbacks, paginator.onChange)
		}
	}
	s.mu.Unlock()
	for _, callback := range callbacks {
		callback()
	}
	return len(callbacks)
}

// Live returns the number of paginators not yet disconnected.
func (s *PaginatorSource[T]) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Created returns the keys of every paginator created, in order.
func (s *PaginatorSource[T]) Created() []engine.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.Key(nil), s.created...)
}

// Disconnected returns the keys of every paginator disconnected.
func (s *PaginatorSource[T]) Disconnected() []engine.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.Key(nil), s.disconnected...)
}

// Paginator is the fake cursor handed out by PaginatorSource.
type Paginator[T any] struct {
	ID  int
	Key engine.Key

	source       *PaginatorSource[T]
	onChange     func()
	cursor       int
	disconnected bool
}

// NextPage implements engine.Paginator.
func (p *Paginator[T]) NextPage(ctx context.Context) ([]T, error) {
	p.source.mu.Lock()
	defer p.source.mu.Unlock()
	if p.disconnected {
		return nil, engine.ErrDisconnected
	}
	if p.source.pageErr != nil {
		return nil, p.source.pageErr
	}
	items := p.source.items[p.Key.String()]
	start := min(p.cursor, len(items))
	end := min(start+p.source.pageSize, len(items))
	p.cursor = end
	return append([]T(nil), items[start:end]...), nil
}

// Reload implements engine.Paginator.
func (p *Paginator[T]) Reload(ctx context.Context) ([]T, error) {
	p.source.mu.Lock()
	defer p.source.mu.Unlock()
	if p.disconnected {
		return nil, engine.ErrDisconnected
	}
	if p.source.pageErr != nil {
		return nil, p.source.pageErr
	}
	items := p.source.items[p.Key.String()]
	if p.cursor == 0 {
		p.cursor = min(p.source.pageSize, len(items))
	}
	end := min(p.cursor, len(items))
	return append([]T(nil), items[:end]...), nil
}

// Disconnect implements engine.Handle.
func (p *Paginator[T]) Disconnect() {
	p.source.mu.Lock()
	defer p.source.mu.Unlock()
	if p.disconnected {
		return
	}
	p.disconnected = true
	delete(p.source.live, p.ID)
	p.source.disconnected = append(p.source.disconnected, p.Key)
}
