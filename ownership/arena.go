package ownership

import (
	"sync"

	"github.com/wippyai/embed-runtime/errors"
)

// Arena is a handle table of keep-alive registrations for values owned by
// one runtime and referenced from the other. Registering the same value
// twice shares one entry and bumps its count; the entry is freed when the
// count reaches zero.
type Arena[T comparable] struct {
	name      string
	entries   []entry[T]
	freeList  []uint32
	index     map[T]Handle
	observers []Observer
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry[T comparable] struct {
	value T
	count int32
	gen   uint32
	valid bool
}

// NewArena creates an empty arena. The name appears in lifetime errors.
func NewArena[T comparable](name string) *Arena[T] {
	return &Arena[T]{
		name:     name,
		entries:  make([]entry[T], 0, 64),
		freeList: make([]uint32, 0, 16),
		index:    make(map[T]Handle),
	}
}

// Name returns the arena name.
func (a *Arena[T]) Name() string {
	return a.name
}

// Retain registers one keep-alive for v and returns its handle.
func (a *Arena[T]) Retain(v T) (Handle, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return 0, errors.Closed(errors.PhaseLifetime, a.name+" arena")
	}

	if h, ok := a.index[v]; ok {
		e := &a.entries[h.slot()-1]
		e.count++
		count := e.count
		a.mu.Unlock()
		a.notify(Event{Type: EventAcquired, Handle: h, Count: count, Value: v})
		return h, nil
	}

	var slot uint32
	if n := len(a.freeList); n > 0 {
		slot = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		e := &a.entries[slot-1]
		e.value = v
		e.count = 1
		e.gen++
		e.valid = true
	} else {
		a.entries = append(a.entries, entry[T]{value: v, count: 1, gen: 1, valid: true})
		slot = uint32(len(a.entries))
	}

	h := makeHandle(slot, a.entries[slot-1].gen)
	a.index[v] = h
	a.mu.Unlock()

	a.notify(Event{Type: EventRetained, Handle: h, Count: 1, Value: v})
	return h, nil
}

// Acquire adds one keep-alive to an existing registration.
func (a *Arena[T]) Acquire(h Handle) error {
	a.mu.Lock()
	e, err := a.lookup(h)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	e.count++
	count, v := e.count, e.value
	a.mu.Unlock()

	a.notify(Event{Type: EventAcquired, Handle: h, Count: count, Value: v})
	return nil
}

// Release drops one keep-alive. Releasing a freed handle is a lifetime error.
func (a *Arena[T]) Release(h Handle) error {
	a.mu.Lock()
	e, err := a.lookup(h)
	if err != nil {
		a.mu.Unlock()
		return err
	}

	e.count--
	count, v := e.count, e.value
	typ := EventReleased
	if count == 0 {
		typ = EventFreed
		delete(a.index, e.value)
		var zero T
		e.value = zero
		e.valid = false
		a.freeList = append(a.freeList, h.slot())
	}
	a.mu.Unlock()

	a.notify(Event{Type: typ, Handle: h, Count: count, Value: v})
	return nil
}

// Get dereferences a handle.
func (a *Arena[T]) Get(h Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, err := a.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return e.value, nil
}

// Lookup returns the live handle registered for v, if any.
func (a *Arena[T]) Lookup(v T) (Handle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.index[v]
	return h, ok
}

// Count returns the keep-alive count for a handle, 0 when it is not live.
func (a *Arena[T]) Count(h Handle) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, err := a.lookup(h)
	if err != nil {
		return 0
	}
	return e.count
}

// Len returns the number of live entries.
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.index)
}

// Each iterates over live entries until fn returns false.
func (a *Arena[T]) Each(fn func(Handle, T, int32) bool) {
	a.mu.Lock()
	type live struct {
		v     T
		h     Handle
		count int32
	}
	snapshot := make([]live, 0, len(a.index))
	for i, e := range a.entries {
		if e.valid {
			snapshot = append(snapshot, live{h: makeHandle(uint32(i+1), e.gen), v: e.value, count: e.count})
		}
	}
	a.mu.Unlock()

	for _, l := range snapshot {
		if !fn(l.h, l.v, l.count) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (a *Arena[T]) Subscribe(o Observer) {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	a.observers = append(a.observers, o)
}

// Close frees every entry and rejects further registrations.
func (a *Arena[T]) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true

	var freed []Event
	for i := range a.entries {
		e := &a.entries[i]
		if !e.valid {
			continue
		}
		freed = append(freed, Event{Type: EventFreed, Handle: makeHandle(uint32(i+1), e.gen), Value: e.value})
		var zero T
		e.value = zero
		e.valid = false
		e.count = 0
	}
	a.entries = nil
	a.freeList = nil
	a.index = make(map[T]Handle)
	a.mu.Unlock()

	for _, ev := range freed {
		a.notify(ev)
	}
	return nil
}

// lookup must be called with mu held.
func (a *Arena[T]) lookup(h Handle) (*entry[T], error) {
	if a.closed {
		return nil, errors.Closed(errors.PhaseLifetime, a.name+" arena")
	}
	slot := h.slot()
	if h == 0 || slot == 0 || int(slot) > len(a.entries) {
		return nil, errors.Released(a.name, uint64(h))
	}
	e := &a.entries[slot-1]
	if !e.valid || e.gen != h.gen() {
		return nil, errors.Released(a.name, uint64(h))
	}
	return e, nil
}

func (a *Arena[T]) notify(e Event) {
	e.Arena = a.name
	a.obsMu.RLock()
	defer a.obsMu.RUnlock()
	for _, o := range a.observers {
		o.OnRefEvent(e)
	}
}
