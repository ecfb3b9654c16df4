package resource

// EventKind names an instance lifecycle transition.
type EventKind uint8

const (
	EventCreated EventKind = iota
	EventDropped
	EventBorrowed
	EventReturned
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventReturned:
		return "returned"
	}
	return "unknown"
}

// Event describes one lifecycle transition. Value is set for created and
// dropped events only.
type Event struct {
	Value     any
	Interface string
	Handle    Handle
	Kind      EventKind
}

// Observer receives lifecycle events. Events are delivered synchronously
// after the table lock is released.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Dropper is implemented by instances that release something when removed
// from a table.
type Dropper interface {
	Drop()
}
