package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrDuplicateSlot indicates a slot name was declared twice.
	ErrDuplicateSlot = errors.New("slot already declared")

	// ErrUndeclaredSlot indicates EnsureReady was asked for a slot that
	// was never declared.
	ErrUndeclaredSlot = errors.New("slot not declared")

	// ErrSealed indicates Declare was called after Seal.
	ErrSealed = errors.New("registry is sealed")

	// ErrClosed indicates EnsureReady was called after Close.
	ErrClosed = errors.New("registry is closed")
)

// DefaultConstructTimeout bounds a single construction attempt. Client
// constructors perform network handshakes; without a bound a hung remote
// would pin the slot in Initializing forever.
const DefaultConstructTimeout = 30 * time.Second

// Constructor produces the client handle for a slot. It is invoked at
// most once at a time per slot, with a context that is detached from any
// individual caller. Constructors read their connection parameters
// (URLs, keys) from configuration at call time, so declaring a slot
// never requires configuration to already be valid.
type Constructor func(ctx context.Context) (any, error)

// Handles maps slot names to their constructed client handles.
type Handles map[string]any

// HandleAs retrieves a typed handle from Handles.
func HandleAs[T any](h Handles, name string) (T, error) {
	var zero T
	v, ok := h[name]
	if !ok {
		return zero, fmt.Errorf("no handle for slot %q", name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("slot %q holds %T, not %T", name, v, zero)
	}
	return t, nil
}

// InitError reports that constructing the client for a slot failed.
// Every caller waiting on the failed attempt receives the same InitError.
type InitError struct {
	Slot string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing client %q: %v", e.Slot, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// State describes the observable lifecycle position of a slot. A failed
// attempt is reported to its waiters and the slot returns to
// StateUninitialized, so failure is never an observable resting state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// attempt is one in-flight construction. The outcome fields are written
// exactly once, before done is closed; waiters read them only after done.
type attempt struct {
	done   chan struct{}
	handle any
	err    error
}

// slot holds per-client lifecycle state. Guarded by Registry.mu.
type slot struct {
	construct Constructor
	ready     bool
	handle    any
	inflight  *attempt
}

// Registry owns the lazily constructed external clients. Safe for
// concurrent use; mutual exclusion is per slot, so independent slots may
// construct in parallel.
type Registry struct {
	mu     sync.Mutex
	slots  map[string]*slot
	order  []string
	sealed bool
	closed bool

	constructTimeout time.Duration
	logger           *slog.Logger
}

// Option configures optional Registry behavior.
type Option func(*Registry)

// WithConstructTimeout overrides DefaultConstructTimeout.
func WithConstructTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.constructTimeout = d
		}
	}
}

// New creates an empty registry. Creating a registry performs no I/O;
// all construction happens inside EnsureReady.
func New(logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		slots:            make(map[string]*slot),
		constructTimeout: DefaultConstructTimeout,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Declare registers a named slot. Declaration is a wiring-time operation:
// it fails with ErrDuplicateSlot or ErrSealed, both programmer errors
// that should abort startup.
func (r *Registry) Declare(name string, construct Constructor) error {
	if name == "" {
		return errors.New("slot name is required")
	}
	if construct == nil {
		return fmt.Errorf("slot %q: constructor is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("declaring slot %q: %w", name, ErrSealed)
	}
	if _, exists := r.slots[name]; exists {
		return fmt.Errorf("declaring slot %q: %w", name, ErrDuplicateSlot)
	}

	r.slots[name] = &slot{construct: construct}
	r.order = append(r.order, name)
	return nil
}

// Seal marks wiring as complete. Subsequent Declare calls fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// State reports the current lifecycle state of a slot. Undeclared slots
// report StateUninitialized.
func (r *Registry) State(name string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[name]
	switch {
	case !ok:
		return StateUninitialized
	case s.ready:
		return StateReady
	case s.inflight != nil:
		return StateInitializing
	default:
		return StateUninitialized
	}
}

// Slots returns the declared slot names in declaration order.
func (r *Registry) Slots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// EnsureReady returns handles for the requested slots, constructing any
// that are not yet ready. For a Ready slot the stored handle is returned
// without blocking. For an Uninitialized slot exactly one caller runs the
// constructor; everyone else requesting the same slot waits on that
// attempt and observes its outcome. A failed attempt yields an *InitError
// naming the slot, and the slot resets so the next EnsureReady call
// re-attempts construction.
//
// The caller's ctx bounds only this caller's wait. Construction itself
// runs under a registry-owned context so one caller's cancellation never
// aborts an attempt other callers depend on.
func (r *Registry) EnsureReady(ctx context.Context, names ...string) (Handles, error) {
	handles := make(Handles, len(names))
	for _, name := range names {
		h, err := r.ensureSlot(ctx, name)
		if err != nil {
			return nil, err
		}
		handles[name] = h
	}
	return handles, nil
}

func (r *Registry) ensureSlot(ctx context.Context, name string) (any, error) {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	s, ok := r.slots[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("slot %q: %w", name, ErrUndeclaredSlot)
	}
	if s.ready {
		h := s.handle
		r.mu.Unlock()
		return h, nil
	}

	a := s.inflight
	if a == nil {
		// This caller wins the race: transition to Initializing and
		// start the single construction attempt.
		a = &attempt{done: make(chan struct{})}
		s.inflight = a
		go r.runConstruct(ctx, name, s, a)
	}
	r.mu.Unlock()

	select {
	case <-a.done:
		if a.err != nil {
			return nil, &InitError{Slot: name, Err: a.err}
		}
		return a.handle, nil
	case <-ctx.Done():
		// This waiter gives up; the attempt keeps running for the others.
		return nil, fmt.Errorf("waiting for slot %q: %w", name, ctx.Err())
	}
}

// runConstruct executes one construction attempt and publishes its
// outcome. It runs detached from the triggering caller: values from that
// caller's context are preserved, its cancellation is not.
func (r *Registry) runConstruct(ctx context.Context, name string, s *slot, a *attempt) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.constructTimeout)
	defer cancel()

	start := time.Now()
	r.logger.Info("constructing client", "slot", name)

	handle, err := s.construct(cctx)

	r.mu.Lock()
	if err != nil {
		// Report to waiters, then reset to Uninitialized for retry.
		s.inflight = nil
	} else {
		s.ready = true
		s.handle = handle
		s.inflight = nil
	}
	r.mu.Unlock()

	a.handle = handle
	a.err = err
	close(a.done)

	if err != nil {
		r.logger.Warn("client construction failed",
			"slot", name, "elapsed", time.Since(start), "error", err)
		return
	}
	r.logger.Info("client ready", "slot", name, "elapsed", time.Since(start))
}

// Close waits for in-flight constructions to settle, then releases every
// Ready handle that implements io.Closer, in reverse declaration order.
// The registry refuses further EnsureReady calls afterwards.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	var pending []*attempt
	for _, s := range r.slots {
		if s.inflight != nil {
			pending = append(pending, s.inflight)
		}
	}
	r.mu.Unlock()

	for _, a := range pending {
		select {
		case <-a.done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for in-flight construction: %w", ctx.Err())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		s := r.slots[name]
		if !s.ready {
			continue
		}
		if closer, ok := s.handle.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing client %q: %w", name, err))
				continue
			}
			r.logger.Info("client closed", "slot", name)
		}
	}
	return errors.Join(errs...)
}
