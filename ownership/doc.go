// Package ownership tracks cross-boundary references.
//
// A value that lives in one runtime and is addressed from the other stays
// valid only while at least one keep-alive registration exists for it on
// the owning side. Each runtime gets its own Arena: the host keep-alive
// arena pins host objects referenced by dynamic wrappers, the dynamic
// reference arena pins dynamic objects referenced by host wrappers. The
// two arenas never share state because neither collector can see the
// other's roots.
//
// # Arena
//
//	arena := ownership.NewArena[*host.Object]("host")
//
//	h, _ := arena.Retain(obj) // count 1
//	h2, _ := arena.Retain(obj) // same handle, count 2
//
//	v, err := arena.Get(h) // dereference
//	_ = arena.Release(h)   // count 1
//	_ = arena.Release(h)   // freed
//
//	_, err = arena.Get(h) // errors.KindReleased
//
// Handles carry a slot generation, so a stale handle is detected even
// after its slot has been recycled for another value.
//
// # Wrapper lifetime
//
// A wrapper registers one keep-alive at construction and binds it to its
// own lifetime:
//
//	ref := ownership.Bind(wrapper, arena, h)
//	...
//	ref.Release() // explicit, or automatic once wrapper is collected
//
// # Observers
//
//	arena.Subscribe(ownership.ObserverFunc(func(e ownership.Event) {
//	    log.Printf("%s %d %s", e.Arena, e.Handle, e.Type)
//	}))
package ownership
