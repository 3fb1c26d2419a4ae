package event

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Entry is one callback registration: the callback plus its metadata.
// Entries are owned exclusively by the Registry; callers observe them
// through accessors only.
type Entry struct {
	key      any
	callback Callback
	priority int
	enabled  bool
	owner    any
	onError  ErrorHandler
	seq      uint64
}

// Priority returns the entry's priority.
func (e *Entry) Priority() int { return e.priority }

// Enabled returns true if the entry is currently enabled.
func (e *Entry) Enabled() bool { return e.enabled }

// Owner returns the entry's owner value, or nil.
func (e *Entry) Owner() any { return e.owner }

// Protected returns true if the entry has an error handler.
func (e *Entry) Protected() bool { return e.onError != nil }

// eventType is the bookkeeping for one named event.
type eventType struct {
	name    string
	base    Callback
	entries map[any]*Entry
	ordered []*Entry // cached ascending-priority view of enabled entries
}

// Registry stores callback entries per named event type and maintains the
// ordered view used to drive dispatch. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]*eventType
	fallback map[string]Callback
	warn     WarnFunc
	seq      uint64
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithWarnFunc routes non-fatal registry warnings to fn. The default
// discards them.
func WithWarnFunc(fn WarnFunc) RegistryOption {
	return func(r *Registry) {
		r.warn = fn
	}
}

// WithFallback installs an explicit fallback table of base handlers. When an
// event type has no local base handler, the fallback table is consulted by
// event name. Lookup is layered and explicit: local first, fallback second.
func WithFallback(handlers map[string]Callback) RegistryOption {
	return func(r *Registry) {
		r.fallback = handlers
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		types: make(map[string]*eventType),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterType creates bookkeeping for the named event type.
//
// Re-registering an existing type is idempotent and emits a warning, unless
// WithFailIfExists was given, in which case it returns ErrDuplicateEvent.
// A base handler supplied on re-registration is ignored for an existing type.
func (r *Registry) RegisterType(name string, opts ...TypeOption) error {
	var cfg typeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; exists {
		if cfg.failIfExists {
			return fmt.Errorf("%w: %q", ErrDuplicateEvent, name)
		}
		if r.warn != nil {
			r.warn("event type %q already registered", name)
		}
		return nil
	}

	r.types[name] = &eventType{
		name:    name,
		base:    cfg.base,
		entries: make(map[any]*Entry),
	}
	return nil
}

// Has returns true if the event type is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.types[name]
	return ok
}

// Types returns the names of all registered event types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Add inserts a callback entry for the event, keyed by callback identity.
// Adding the same callback twice for the same event overwrites the prior
// entry. The entry is enabled unless WithDisabled was given.
//
// Returns ErrUnknownEvent if the event type was never registered and
// ErrInvalidCallback if cb is nil.
func (r *Registry) Add(event string, cb Callback, opts ...CallbackOption) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback for event %q", ErrInvalidCallback, event)
	}

	e := &Entry{
		callback: cb,
		priority: PriorityDefault,
		enabled:  true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.key == nil {
		e.key = identityKey(cb)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.types[event]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	r.seq++
	e.seq = r.seq
	t.entries[e.key] = e
	rebuild(t)
	return nil
}

// Remove deletes the entry keyed by the callback's identity.
// Returns ErrUnregisteredCallback if no matching entry exists.
func (r *Registry) Remove(event string, cb Callback) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback for event %q", ErrInvalidCallback, event)
	}
	return r.RemoveKey(event, identityKey(cb))
}

// RemoveKey deletes the entry registered under an explicit key.
func (r *Registry) RemoveKey(event string, key any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.types[event]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if _, ok := t.entries[key]; !ok {
		return fmt.Errorf("%w: event %q", ErrUnregisteredCallback, event)
	}

	delete(t.entries, key)
	rebuild(t)
	return nil
}

// SetEnabled flips the enabled flag of the entry keyed by the callback's
// identity. Toggling never changes relative priority ordering.
// Returns ErrUnregisteredCallback if no matching entry exists.
func (r *Registry) SetEnabled(event string, cb Callback, enabled bool) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback for event %q", ErrInvalidCallback, event)
	}
	return r.SetEnabledKey(event, identityKey(cb), enabled)
}

// SetEnabledKey flips the enabled flag of the entry registered under an
// explicit key.
func (r *Registry) SetEnabledKey(event string, key any, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.types[event]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	e, ok := t.entries[key]
	if !ok {
		return fmt.Errorf("%w: event %q", ErrUnregisteredCallback, event)
	}

	if e.enabled == enabled {
		return nil
	}
	e.enabled = enabled
	rebuild(t)
	return nil
}

// OrderedEnabled returns the cached ascending-priority sequence of enabled
// entries for the event, ties broken by insertion order. The returned slice
// is a snapshot: later registry mutations do not affect it.
//
// Returns ErrUnknownEvent if the event type was never registered; an event
// with no callbacks yields an empty sequence.
func (r *Registry) OrderedEnabled(event string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	view := make([]*Entry, len(t.ordered))
	copy(view, t.ordered)
	return view, nil
}

// Count returns the number of entries (enabled or not) for the event,
// or zero if the event type is not registered.
func (r *Registry) Count(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[event]
	if !ok {
		return 0
	}
	return len(t.entries)
}

// BaseHandler returns the base handler for the event: the type's local
// handler if set, otherwise the fallback table's handler for that name.
// Returns nil when neither layer has one.
func (r *Registry) BaseHandler(event string) Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.types[event]; ok && t.base != nil {
		return t.base
	}
	return r.fallback[event]
}

// rebuild recomputes the ordered view for a type. Callers must hold r.mu.
// The view is replaced, never mutated in place, so snapshots handed out by
// OrderedEnabled stay valid.
func rebuild(t *eventType) {
	view := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.enabled {
			view = append(view, e)
		}
	}
	sort.Slice(view, func(i, j int) bool {
		if view[i].priority != view[j].priority {
			return view[i].priority < view[j].priority
		}
		return view[i].seq < view[j].seq
	})
	t.ordered = view
}

// identityKey derives the default identity key for a callback: its code
// pointer. Two closures built from the same function literal share a code
// pointer; bridges that need to tell such callbacks apart use WithKey.
func identityKey(cb Callback) any {
	return reflect.ValueOf(cb).Pointer()
}
