// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package livequery

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/replay"
	"github.com/bureau-foundation/mailbridge/lib/resource"
)

const tracerName = "github.com/bureau-foundation/mailbridge/lib/livequery"

// Options configures a Bridge. All fields are optional.
type Options struct {
	// Name identifies the bridge in logs and spans, e.g.
	// "conversation-detail".
	Name string

	// Logger receives lifecycle and failure messages. Nil discards.
	Logger *slog.Logger

	// Registry tracks the live watcher for bulk teardown. Nil uses
	// resource.Default().
	Registry *resource.Registry

	// Tracer wraps watcher creation and re-fetches in spans. Nil uses
	// the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// Bridge keeps exactly one native watcher alive for the key its
// subscribers are interested in and republishes a fresh snapshot on
// every change callback. Safe for concurrent use.
type Bridge[S any] struct {
	name     string
	source   engine.Source[S]
	logger   *slog.Logger
	registry *resource.Registry
	tracer   trace.Tracer

	// mu guards state, generation, and subscribers. It is held for
	// the whole create-and-store sequence, including the engine query.
	mu          sync.Mutex
	state       *watcherState[S]
	generation  uint64
	subscribers int

	// refetchMu serializes change-callback re-fetches with each other.
	refetchMu sync.Mutex

	cell replay.Cell[engine.Result[S]]
}

// watcherState is the live watcher: its key, native handle, and the
// generation its results are published under. It is also the unit
// registered with the resource registry.
type watcherState[S any] struct {
	bridge     *Bridge[S]
	key        engine.Key
	handle     engine.Handle
	generation uint64

	// ctx is cancelled when the watcher is retired so in-flight
	// re-fetches stop early.
	ctx    context.Context
	cancel context.CancelFunc
}

// Disconnect retires the watcher through its bridge. Called by the
// resource registry during bulk teardown.
func (w *watcherState[S]) Disconnect() {
	w.bridge.retire(w, "registry teardown")
}

// New returns a Bridge over source.
func New[S any](source engine.Source[S], options Options) *Bridge[S] {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registry := options.Registry
	if registry == nil {
		registry = resource.Default()
	}
	tracer := options.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	name := options.Name
	if name == "" {
		name = "bridge"
	}
	return &Bridge[S]{
		name:     name,
		source:   source,
		logger:   logger.With("bridge", name),
		registry: registry,
		tracer:   tracer,
	}
}

// Subscription is one caller's attachment to a Bridge. Read results
// from C; call Close when no longer interested. Closing the last
// subscription tears the watcher down.
type Subscription[S any] struct {
	bridge     *Bridge[S]
	key        engine.Key
	channel    <-chan engine.Result[S]
	cancelCell func()
	stopAfter  func() bool
	closeOnce  sync.Once
}

// C returns the result channel. It holds at most one undelivered
// result (the newest) and is closed when the subscription closes.
func (s *Subscription[S]) C() <-chan engine.Result[S] {
	return s.channel
}

// Key returns the key this subscription asked for.
func (s *Subscription[S]) Key() engine.Key {
	return s.key
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription[S]) Close() {
	s.stopAfter()
	s.detach()
}

// detach is Close without stopping the context hook; the hook itself
// calls it.
func (s *Subscription[S]) detach() {
	s.closeOnce.Do(func() {
		s.cancelCell()
		s.bridge.release()
	})
}

// Subscribe attaches a subscriber for key, creating or replacing the
// native watcher if needed. The subscription closes automatically when
// ctx ends. A key without a user fails immediately with
// engine.ErrNoUserSession; all other failures arrive on the channel.
func (b *Bridge[S]) Subscribe(ctx context.Context, key engine.Key) (*Subscription[S], error) {
	if key.IsZero() {
		return nil, fmt.Errorf("livequery: %s: %w", b.name, engine.ErrNoUserSession)
	}

	channel, cancelCell := b.cell.Subscribe()
	subscription := &Subscription[S]{
		bridge:     b,
		key:        key,
		channel:    channel,
		cancelCell: cancelCell,
	}

	b.mu.Lock()
	b.subscribers++
	b.ensureWatcherLocked(ctx, key)
	b.mu.Unlock()

	subscription.stopAfter = context.AfterFunc(ctx, subscription.detach)
	return subscription, nil
}

// Observe returns a lazy stream of snapshots for key. Each range over
// the returned sequence subscribes afresh; the subscription ends when
// the loop breaks or ctx ends. Errors are yielded in-band as
// (zero value, err) pairs and do not end the stream.
func (b *Bridge[S]) Observe(ctx context.Context, key engine.Key) iter.Seq2[S, error] {
	return func(yield func(S, error) bool) {
		subscription, err := b.Subscribe(ctx, key)
		if err != nil {
			var zero S
			yield(zero, err)
			return
		}
		defer subscription.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case result, ok := <-subscription.C():
				if !ok {
					return
				}
				if !yield(result.Value, result.Err) {
					return
				}
			}
		}
	}
}

// ensureWatcherLocked reuses the live watcher when its key equals key,
// otherwise disconnects it and creates one for key. Must be called
// with b.mu held.
func (b *Bridge[S]) ensureWatcherLocked(ctx context.Context, key engine.Key) {
	if b.state != nil && b.state.key.Equal(key) {
		return
	}
	if b.state != nil {
		b.clearLocked("key changed")
	}

	b.generation++
	generation := b.generation
	b.cell.Reset(generation)

	// The watcher is shared, so the native calls must not end with
	// the first subscriber's context. The span still parents to it.
	watcherContext, cancel := context.WithCancel(context.WithoutCancel(ctx))
	_, span := b.tracer.Start(ctx, "livequery.create", trace.WithAttributes(
		attribute.String("bridge", b.name),
		attribute.String("key", key.String()),
	))
	defer span.End()
	ctx = trace.ContextWithSpan(watcherContext, span)

	snapshot, err := b.source.Query(ctx, key)
	if err != nil {
		cancel()
		b.failCreateLocked(span, generation, key, engine.Wrap("query", key, err))
		return
	}

	state := &watcherState[S]{
		bridge:     b,
		key:        key,
		generation: generation,
		ctx:        watcherContext,
		cancel:     cancel,
	}
	handle, err := b.source.RegisterWatcher(ctx, key, func() { b.onChange(state) })
	if err != nil {
		cancel()
		b.failCreateLocked(span, generation, key, engine.Wrap("register watcher", key, err))
		return
	}
	state.handle = handle
	b.state = state
	b.registry.Register(state)

	b.logger.Debug("watcher created",
		"key", key.String(),
		"fingerprint", key.Fingerprint().String(),
		"generation", generation,
	)
	b.cell.Publish(generation, engine.Result[S]{Key: key, Value: snapshot})
}

func (b *Bridge[S]) failCreateLocked(span trace.Span, generation uint64, key engine.Key, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "watcher creation failed")
	b.logger.Warn("watcher creation failed",
		"key", key.String(),
		"op", "create",
		"error", err,
	)
	b.cell.Publish(generation, engine.Result[S]{Key: key, Err: err})
}

// clearLocked disconnects the live watcher and clears the replay
// value. Must be called with b.mu held and b.state non-nil.
func (b *Bridge[S]) clearLocked(reason string) {
	state := b.state
	b.state = nil
	b.registry.Unregister(state)

	// Move the epoch first so a refetch woken by the cancel below
	// cannot publish for the old generation.
	b.generation++
	b.cell.Reset(b.generation)

	state.cancel()
	state.handle.Disconnect()

	b.logger.Debug("watcher disconnected",
		"key", state.key.String(),
		"generation", state.generation,
		"reason", reason,
	)
}

// retire disconnects state if it is still the live watcher.
func (b *Bridge[S]) retire(state *watcherState[S], reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != state {
		return
	}
	b.clearLocked(reason)
}

// release drops one subscriber and tears the watcher down when none
// remain. The check runs under the creation lock, so a subscriber that
// attached concurrently keeps the watcher alive.
func (b *Bridge[S]) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers--
	if b.subscribers > 0 || b.state == nil {
		return
	}
	b.clearLocked("last subscriber left")
}

// onChange is the engine callback. It only hands off; the engine's
// goroutine never touches bridge state.
func (b *Bridge[S]) onChange(state *watcherState[S]) {
	go b.refetch(state)
}

// refetch re-queries the engine for state's key and publishes the
// result if state is still the live generation.
func (b *Bridge[S]) refetch(state *watcherState[S]) {
	b.refetchMu.Lock()
	defer b.refetchMu.Unlock()

	if b.cell.Epoch() != state.generation {
		b.logger.Debug("dropping change callback for superseded watcher",
			"key", state.key.String(),
			"generation", state.generation,
		)
		return
	}

	ctx, span := b.tracer.Start(state.ctx, "livequery.refetch", trace.WithAttributes(
		attribute.String("bridge", b.name),
		attribute.String("key", state.key.String()),
	))
	defer span.End()

	snapshot, err := b.source.Query(ctx, state.key)
	result := engine.Result[S]{Key: state.key, Value: snapshot}
	if err != nil {
		result = engine.Result[S]{Key: state.key, Err: engine.Wrap("refetch", state.key, err)}
		span.RecordError(err)
		span.SetStatus(codes.Error, "refetch failed")
	}

	if !b.cell.Publish(state.generation, result) {
		b.logger.Debug("discarding refetch result for superseded watcher",
			"key", state.key.String(),
			"generation", state.generation,
		)
		return
	}
	if err != nil {
		b.logger.Warn("refetch failed, keeping watcher",
			"key", state.key.String(),
			"op", "refetch",
			"error", err,
		)
	}
}

// Teardown disconnects the live watcher, if any, regardless of
// subscribers. Open subscriptions stay attached and receive results
// again once a later Subscribe recreates a watcher.
func (b *Bridge[S]) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != nil {
		b.clearLocked("teardown")
	}
}

// Stats is a point-in-time view of a bridge.
type Stats struct {
	// Key is the live watcher's key; zero when Live is false.
	Key engine.Key

	// Live reports whether a native watcher is held.
	Live bool

	// Subscribers is the number of open subscriptions.
	Subscribers int

	// Generation increases on every create and every teardown.
	Generation uint64
}

// Stats returns the bridge's current state.
func (b *Bridge[S]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := Stats{
		Subscribers: b.subscribers,
		Generation:  b.generation,
	}
	if b.state != nil {
		stats.Key = b.state.key
		stats.Live = true
	}
	return stats
}
