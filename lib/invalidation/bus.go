// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invalidation

import (
	"context"
	"log/slog"
	"sync"
)

// Bus fans invalidation sets out to subscribers. The zero value is not
// usable; construct with [NewBus].
type Bus struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

// subscriber holds the sources notified since the consumer last read.
// wake has capacity one: a pending wake-up already covers any later
// notification because the forwarder reads pending under the lock.
type subscriber struct {
	interest Set
	pending  Set
	wake     chan struct{}
}

// NewBus returns a bus with no subscribers. A nil logger discards.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		logger:      logger,
		subscribers: make(map[*subscriber]struct{}),
	}
}

var defaultBus = NewBus(slog.Default())

// Default returns the process-scoped bus. Mutations made through
// mailwatch notify it, and list consumers subscribe to it.
func Default() *Bus {
	return defaultBus
}

// Notify marks every source in set as invalidated for each subscriber
// whose interest intersects it. Never blocks.
func (b *Bus) Notify(set Set) {
	if set.IsEmpty() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for sub := range b.subscribers {
		matched := set.Intersect(sub.interest)
		if matched.IsEmpty() {
			continue
		}
		sub.pending = sub.pending.Union(matched)
		select {
		case sub.wake <- struct{}{}:
		default:
		}
		delivered++
	}
	b.logger.Debug("invalidation notified",
		"sources", set.String(),
		"subscribers", delivered,
	)
}

// NotifyInvalidation is Notify for a literal list of sources.
func (b *Bus) NotifyInvalidation(sources ...Source) {
	b.Notify(NewSet(sources...))
}

// Subscribe returns a channel that receives the union of every
// notified set intersecting interest, restricted to interest, since
// the previous receive. The channel is closed once ctx ends.
func (b *Bus) Subscribe(ctx context.Context, interest Set) <-chan Set {
	sub := &subscriber{
		interest: interest,
		wake:     make(chan struct{}, 1),
	}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	out := make(chan Set)
	go b.forward(ctx, sub, out)
	return out
}

func (b *Bus) forward(ctx context.Context, sub *subscriber, out chan<- Set) {
	defer close(out)
	defer func() {
		b.mu.Lock()
		delete(b.subscribers, sub)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.wake:
		}

		b.mu.Lock()
		pending := sub.pending
		sub.pending = Set{}
		b.mu.Unlock()
		if pending.IsEmpty() {
			continue
		}

		select {
		case out <- pending:
		case <-ctx.Done():
			return
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
