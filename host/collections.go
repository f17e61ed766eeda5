package host

import (
	"context"
	"math"
	"sync"
)

// listStore backs java.util.ArrayList and embed.UnmodifiableList.
type listStore struct {
	mu       sync.RWMutex
	items    []Value
	readOnly bool
}

// NewList creates a java.util.ArrayList holding items.
func (cp *ClassPath) NewList(items ...Value) *Object {
	return newObject(cp.MustLookup(ArrayListClass), &listStore{items: cp.boxAll(items)})
}

// NewUnmodifiableList creates an embed.UnmodifiableList holding items.
func (cp *ClassPath) NewUnmodifiableList(items ...Value) *Object {
	return newObject(cp.MustLookup(UnmodifiableListClass), &listStore{items: cp.boxAll(items), readOnly: true})
}

// boxAll copies items, boxing primitives: collections hold references only.
func (cp *ClassPath) boxAll(items []Value) []Value {
	out := make([]Value, len(items))
	for i, v := range items {
		if k, ok := KindOf(v); ok {
			v = newObject(cp.MustLookup(boxNames[k]), v)
		}
		out[i] = v
	}
	return out
}

// ListItems returns a snapshot of a host list created by this package.
func ListItems(o *Object) ([]Value, bool) {
	if o == nil {
		return nil, false
	}
	s, ok := o.Payload().(*listStore)
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Value(nil), s.items...), true
}

// snapshot backs embed.SnapshotIterator.
type snapshot struct {
	mu    sync.Mutex
	items []Value
	pos   int
}

func iterOf(self *Object) *snapshot {
	s, _ := self.Payload().(*snapshot)
	return s
}

func (s *snapshot) hasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos < len(s.items)
}

func (s *snapshot) next() (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.items) {
		return nil, false
	}
	v := s.items[s.pos]
	s.pos++
	return v, true
}

// Each walks a java.lang.Iterable through its iterator, calling fn for
// every element until fn fails or the iterator is exhausted.
func Each(ctx context.Context, iterable *Object, fn func(Value) error) error {
	it, err := InvokeByName(ctx, iterable, "iterator")
	if err != nil {
		return err
	}
	iter, _ := it.(*Object)
	if iter == nil {
		return iterable.class.cp.Throw("java.lang.NullPointerException", "%s.iterator() returned null", iterable.class.name)
	}
	for {
		more, err := InvokeByName(ctx, iter, "hasNext")
		if err != nil {
			return err
		}
		if more != true {
			return nil
		}
		v, err := InvokeByName(ctx, iter, "next")
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

func listOf(self *Object) *listStore {
	s, _ := self.Payload().(*listStore)
	return s
}

func (s *listStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *listStore) get(cp *ClassPath, i int) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.items) {
		return nil, cp.Throw("java.lang.IndexOutOfBoundsException", "Index %d out of bounds for length %d", i, len(s.items))
	}
	return s.items[i], nil
}

func (s *listStore) set(cp *ClassPath, i int, v Value) (Value, error) {
	if s.readOnly {
		return nil, cp.Throw("java.lang.UnsupportedOperationException", "unmodifiable list")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.items) {
		return nil, cp.Throw("java.lang.IndexOutOfBoundsException", "Index %d out of bounds for length %d", i, len(s.items))
	}
	old := s.items[i]
	s.items[i] = v
	return old, nil
}

func (s *listStore) insert(cp *ClassPath, i int, v Value) error {
	if s.readOnly {
		return cp.Throw("java.lang.UnsupportedOperationException", "unmodifiable list")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i > len(s.items) {
		return cp.Throw("java.lang.IndexOutOfBoundsException", "Index: %d, Size: %d", i, len(s.items))
	}
	s.items = append(s.items, nil)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = v
	return nil
}

func (s *listStore) removeAt(cp *ClassPath, i int) (Value, error) {
	if s.readOnly {
		return nil, cp.Throw("java.lang.UnsupportedOperationException", "unmodifiable list")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.items) {
		return nil, cp.Throw("java.lang.IndexOutOfBoundsException", "Index %d out of bounds for length %d", i, len(s.items))
	}
	old := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return old, nil
}

func (s *listStore) indexOf(v Value) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := keyOf(v)
	for i, it := range s.items {
		if keyOf(it) == k {
			return i
		}
	}
	return -1
}

func (s *listStore) clear(cp *ClassPath) error {
	if s.readOnly {
		return cp.Throw("java.lang.UnsupportedOperationException", "unmodifiable list")
	}
	s.mu.Lock()
	s.items = s.items[:0]
	s.mu.Unlock()
	return nil
}

// DefaultLoadFactor is the load factor of java.util.HashMap.
const DefaultLoadFactor = 0.75

// CapacityFor returns the initial capacity that holds n entries without
// rehashing at the given load factor.
func CapacityFor(n int, loadFactor float64) int {
	if loadFactor <= 0 {
		loadFactor = DefaultLoadFactor
	}
	return int(math.Ceil(float64(n)/loadFactor)) + 1
}

// mapKey gives host values equals()/hashCode() semantics: strings and
// boxes compare by content, other objects by identity.
type mapKey struct {
	p   *Object
	s   string
	n   int64
	f   float64
	tag Kind
}

func keyOf(v Value) mapKey {
	switch x := v.(type) {
	case nil:
		return mapKey{}
	case *Object:
		if u, ok := StringUnits(x); ok {
			b := make([]byte, 2*len(u))
			for i, c := range u {
				b[2*i] = byte(c)
				b[2*i+1] = byte(c >> 8)
			}
			return mapKey{tag: KindClass, s: string(b)}
		}
		if p, ok := Unbox(x); ok {
			return keyOf(p)
		}
		return mapKey{tag: KindArray, p: x}
	case bool:
		if x {
			return mapKey{tag: KindBoolean, n: 1}
		}
		return mapKey{tag: KindBoolean}
	case int8:
		return mapKey{tag: KindByte, n: int64(x)}
	case uint16:
		return mapKey{tag: KindChar, n: int64(x)}
	case int16:
		return mapKey{tag: KindShort, n: int64(x)}
	case int32:
		return mapKey{tag: KindInt, n: int64(x)}
	case int64:
		return mapKey{tag: KindLong, n: x}
	case float32:
		return mapKey{tag: KindFloat, f: float64(x)}
	case float64:
		return mapKey{tag: KindDouble, f: x}
	}
	return mapKey{}
}

// mapStore backs java.util.HashMap. Iteration follows insertion order.
type mapStore struct {
	mu       sync.RWMutex
	keys     []Value
	vals     []Value
	index    map[mapKey]int
	capacity int
}

// NewMap creates an empty java.util.HashMap sized for capacity entries.
func (cp *ClassPath) NewMap(capacity int) *Object {
	return newObject(cp.MustLookup(HashMapClass), newMapStore(capacity))
}

func newMapStore(capacity int) *mapStore {
	if capacity < 0 {
		capacity = 0
	}
	return &mapStore{
		keys:     make([]Value, 0, capacity),
		vals:     make([]Value, 0, capacity),
		index:    make(map[mapKey]int, capacity),
		capacity: capacity,
	}
}

// MapCapacity returns the initial capacity a host map was created with.
func MapCapacity(o *Object) int {
	if s, ok := o.Payload().(*mapStore); ok {
		return s.capacity
	}
	return -1
}

// MapEntries returns a snapshot of the keys and values of a host map, in
// insertion order.
func MapEntries(o *Object) (keys, vals []Value, ok bool) {
	if o == nil {
		return nil, nil, false
	}
	s, ok := o.Payload().(*mapStore)
	if !ok {
		return nil, nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Value(nil), s.keys...), append([]Value(nil), s.vals...), true
}

func mapOf(self *Object) *mapStore {
	s, _ := self.Payload().(*mapStore)
	return s
}

func (s *mapStore) get(k Value) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[keyOf(k)]
	if !ok {
		return nil, false
	}
	return s.vals[i], true
}

func (s *mapStore) put(k, v Value) Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := keyOf(k)
	if i, ok := s.index[key]; ok {
		old := s.vals[i]
		s.vals[i] = v
		return old
	}
	s.index[key] = len(s.keys)
	s.keys = append(s.keys, k)
	s.vals = append(s.vals, v)
	return nil
}

func (s *mapStore) remove(k Value) Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := keyOf(k)
	i, ok := s.index[key]
	if !ok {
		return nil
	}
	old := s.vals[i]
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	s.vals = append(s.vals[:i], s.vals[i+1:]...)
	delete(s.index, key)
	for j := i; j < len(s.keys); j++ {
		s.index[keyOf(s.keys[j])] = j
	}
	return old
}

func (s *mapStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

func (s *mapStore) clear() {
	s.mu.Lock()
	s.keys = s.keys[:0]
	s.vals = s.vals[:0]
	s.index = make(map[mapKey]int)
	s.mu.Unlock()
}
