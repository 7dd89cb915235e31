// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package paginator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/invalidation"
	"github.com/bureau-foundation/mailbridge/lib/resource"
)

const tracerName = "github.com/bureau-foundation/mailbridge/lib/paginator"

// Request selects which page Machine.Page loads.
type Request int

const (
	// First starts over with a new paginator.
	First Request = iota
	// Next loads the following page.
	Next
	// All reloads every item loaded so far.
	All
)

func (r Request) String() string {
	switch r {
	case First:
		return "first"
	case Next:
		return "next"
	case All:
		return "all"
	default:
		return fmt.Sprintf("request(%d)", int(r))
	}
}

// ParseRequest converts "first", "next", or "all" to a Request.
func ParseRequest(name string) (Request, error) {
	for _, request := range []Request{First, Next, All} {
		if request.String() == name {
			return request, nil
		}
	}
	return 0, fmt.Errorf("paginator: unknown request %q (want first, next, or all)", name)
}

// Options configures a Machine. All fields are optional.
type Options struct {
	// Name identifies the machine in logs and spans.
	Name string

	// Logger receives failures and lifecycle messages. Nil discards.
	Logger *slog.Logger

	// Registry tracks the live paginator for bulk teardown. Nil uses
	// resource.Default().
	Registry *resource.Registry

	// Tracer wraps each page load in a span. Nil uses the global
	// OpenTelemetry tracer provider.
	Tracer trace.Tracer

	// Bus receives Sources whenever the engine reports a change behind
	// the live paginator. Nil drops change notifications.
	Bus *invalidation.Bus

	// Sources is the set notified on change.
	Sources invalidation.Set
}

// Machine is the paginator state machine for one list. Safe for
// concurrent use.
type Machine[T any] struct {
	name     string
	source   engine.PaginatorSource[T]
	logger   *slog.Logger
	registry *resource.Registry
	tracer   trace.Tracer
	bus      *invalidation.Bus
	sources  invalidation.Set

	mu    sync.Mutex
	state *paginatorState[T]

	// current mirrors state for the change callback, which runs on an
	// engine goroutine and must not wait for mu.
	current atomic.Pointer[paginatorState[T]]
}

// paginatorState pairs a native paginator with the key it serves. It is
// the unit registered with the resource registry.
type paginatorState[T any] struct {
	machine   *Machine[T]
	key       engine.Key
	paginator engine.Paginator[T]
}

// Disconnect retires the paginator through its machine.
func (p *paginatorState[T]) Disconnect() {
	p.machine.retire(p)
}

// New returns a Machine over source.
func New[T any](source engine.PaginatorSource[T], options Options) *Machine[T] {
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
		name = "paginator"
	}
	return &Machine[T]{
		name:     name,
		source:   source,
		logger:   logger.With("paginator", name),
		registry: registry,
		tracer:   tracer,
		bus:      options.Bus,
		sources:  options.Sources,
	}
}

// Page loads the page selected by request for key. It returns an empty
// page on any failure.
func (m *Machine[T]) Page(ctx context.Context, key engine.Key, request Request) []T {
	ctx, span := m.tracer.Start(ctx, "paginator.page", trace.WithAttributes(
		attribute.String("paginator", m.name),
		attribute.String("key", key.String()),
		attribute.String("request", request.String()),
	))
	defer span.End()

	if key.IsZero() {
		m.fail(span, key, request, "session", engine.ErrNoUserSession)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldInitLocked(key, request) {
		if err := m.reinitLocked(ctx, key); err != nil {
			m.fail(span, key, request, "create", err)
			return nil
		}
	}

	paginator := m.state.paginator
	var items []T
	var err error
	switch request {
	case All:
		items, err = paginator.Reload(ctx)
	default:
		items, err = paginator.NextPage(ctx)
	}
	if err != nil {
		m.fail(span, key, request, request.String(), engine.Wrap(request.String(), key, err))
		return nil
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	return items
}

func (m *Machine[T]) fail(span trace.Span, key engine.Key, request Request, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	m.logger.Warn("page request failed, returning empty page",
		"key", key.String(),
		"request", request.String(),
		"op", op,
		"error", err,
	)
}

// shouldInitLocked reports whether request for key needs a new
// paginator. Must be called with m.mu held.
func (m *Machine[T]) shouldInitLocked(key engine.Key, request Request) bool {
	return m.state == nil || !m.state.key.Equal(key) || request == First
}

// reinitLocked replaces the current paginator with a new one for key.
// On failure no paginator is held. Must be called with m.mu held.
func (m *Machine[T]) reinitLocked(ctx context.Context, key engine.Key) error {
	if m.state != nil {
		m.clearLocked("reinitialize")
	}

	state := &paginatorState[T]{machine: m, key: key}
	paginator, err := m.source.NewPaginator(ctx, key, func() { m.onChange(state) })
	if err != nil {
		return engine.Wrap("create paginator", key, err)
	}
	state.paginator = paginator
	m.state = state
	m.current.Store(state)
	m.registry.Register(state)
	m.logger.Debug("paginator created",
		"key", key.String(),
		"fingerprint", key.Fingerprint().String(),
	)
	return nil
}

// clearLocked disconnects the current paginator. Must be called with
// m.mu held and m.state non-nil.
func (m *Machine[T]) clearLocked(reason string) {
	state := m.state
	m.state = nil
	m.current.Store(nil)
	m.registry.Unregister(state)
	state.paginator.Disconnect()
	m.logger.Debug("paginator disconnected",
		"key", state.key.String(),
		"reason", reason,
	)
}

func (m *Machine[T]) retire(state *paginatorState[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != state {
		return
	}
	m.clearLocked("registry teardown")
}

// onChange forwards an engine change notification to the bus. A
// notification from a paginator that has since been replaced is
// dropped.
func (m *Machine[T]) onChange(state *paginatorState[T]) {
	if m.current.Load() != state {
		m.logger.Debug("dropping change notification for replaced paginator",
			"key", state.key.String(),
		)
		return
	}
	if m.bus == nil {
		return
	}
	m.bus.Notify(m.sources)
}

// Close disconnects the current paginator, if any. The machine stays
// usable; the next Page creates a new paginator.
func (m *Machine[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.clearLocked("close")
	}
}

// Stats is a point-in-time view of a machine.
type Stats struct {
	// Key is the live paginator's key; zero when Live is false.
	Key engine.Key

	// Live reports whether a native paginator is held.
	Live bool
}

// Stats returns the machine's current state.
func (m *Machine[T]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return Stats{}
	}
	return Stats{Key: m.state.key, Live: true}
}

// Sources returns the invalidation set the machine notifies on change.
func (m *Machine[T]) Sources() invalidation.Set {
	return m.sources
}
