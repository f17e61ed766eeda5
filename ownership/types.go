package ownership

// Handle is an opaque reference to a registration in an arena.
// The low 32 bits are the slot, the high 32 bits the slot generation,
// so a handle whose slot has been recycled never aliases the new entry.
// Handle 0 is reserved and always invalid.
type Handle uint64

func makeHandle(slot uint32, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot))
}

func (h Handle) slot() uint32 { return uint32(h) }
func (h Handle) gen() uint32  { return uint32(h >> 32) }

// EventType enumerates keep-alive lifecycle notifications.
type EventType uint8

const (
	EventRetained EventType = iota // first registration of a value
	EventAcquired                  // additional keep-alive on an existing entry
	EventReleased                  // one keep-alive dropped, entry still alive
	EventFreed                     // last keep-alive dropped, entry gone
)

func (t EventType) String() string {
	switch t {
	case EventRetained:
		return "retained"
	case EventAcquired:
		return "acquired"
	case EventReleased:
		return "released"
	case EventFreed:
		return "freed"
	default:
		return "unknown"
	}
}

// Event describes one keep-alive change.
type Event struct {
	Value  any
	Arena  string
	Handle Handle
	Count  int32
	Type   EventType
}

// Observer receives keep-alive lifecycle events.
type Observer interface {
	OnRefEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnRefEvent(e Event) { f(e) }

// Releaser drops one keep-alive registration.
type Releaser interface {
	Release(Handle) error
}
