// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import "sync"

// Cell is a latest-value replay broadcast container. The zero value is
// ready to use at epoch 0 with no value.
type Cell[T any] struct {
	mu          sync.Mutex
	epoch       uint64
	value       T
	hasValue    bool
	subscribers map[chan T]struct{}
}

// Publish stores v as the latest value and delivers it to every
// subscriber, provided epoch is the cell's current epoch. Returns false
// (and does nothing) for a stale epoch.
func (c *Cell[T]) Publish(epoch uint64, v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	c.value = v
	c.hasValue = true
	for channel := range c.subscribers {
		deliver(channel, v)
	}
	return true
}

// deliver places v in a one-slot channel, replacing any value the
// consumer has not read yet. Only publishers send, and they hold the
// cell lock, so after the drain there is always room.
func deliver[T any](channel chan T, v T) {
	select {
	case channel <- v:
		return
	default:
	}
	select {
	case <-channel:
	default:
	}
	channel <- v
}

// Reset moves the cell to epoch, clears the replay value, and discards
// values delivered to subscribers but not yet read. Subscriptions stay
// open.
func (c *Cell[T]) Reset(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch = epoch
	var zero T
	c.value = zero
	c.hasValue = false
	for channel := range c.subscribers {
		select {
		case <-channel:
		default:
		}
	}
}

// Epoch returns the current epoch.
func (c *Cell[T]) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Latest returns the replay value and whether one is present.
func (c *Cell[T]) Latest() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.hasValue
}

// Subscribe registers a new subscriber. The returned channel holds the
// replay value immediately if one is present. cancel unsubscribes and
// closes the channel; it is safe to call more than once.
func (c *Cell[T]) Subscribe() (<-chan T, func()) {
	channel := make(chan T, 1)
	c.mu.Lock()
	if c.subscribers == nil {
		c.subscribers = make(map[chan T]struct{})
	}
	c.subscribers[channel] = struct{}{}
	if c.hasValue {
		channel <- c.value
	}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subscribers[channel]; !ok {
			return
		}
		delete(c.subscribers, channel)
		close(channel)
	}
	return channel, cancel
}

// Subscribers returns the number of open subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}
