package resource

import (
	"sync"
)

type slot struct {
	value   any
	iface   string
	borrows uint32
	gen     uint8
	live    bool
}

// Table holds live instances behind generation checked handles. It is safe
// for concurrent use.
type Table struct {
	watchers map[int]Observer
	slots    []slot
	free     []int
	nextID   int
	mu       sync.Mutex
	closed   bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		slots:    make([]slot, 0, 16),
		watchers: make(map[int]Observer),
	}
}

// resolve returns the live slot for h. An empty iface matches any
// interface. Callers hold t.mu.
func (t *Table) resolve(h Handle, iface string) (*slot, error) {
	i := h.slot()
	if i < 0 || i >= len(t.slots) {
		return nil, ErrInvalidHandle
	}
	s := &t.slots[i]
	if !s.live || s.gen != h.generation() {
		return nil, ErrStaleHandle
	}
	if iface != "" && s.iface != iface {
		return nil, ErrWrongInterface
	}
	return s, nil
}

// Insert stores value as an instance of iface.
func (t *Table) Insert(iface string, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	var i int
	if n := len(t.free); n > 0 {
		i = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.slots) >= maxSlots {
			t.mu.Unlock()
			return 0, ErrTableFull
		}
		t.slots = append(t.slots, slot{})
		i = len(t.slots) - 1
	}
	s := &t.slots[i]
	s.value, s.iface, s.borrows, s.live = value, iface, 0, true
	h := makeHandle(i, s.gen)
	t.mu.Unlock()

	t.emit(Event{Kind: EventCreated, Interface: iface, Handle: h, Value: value})
	return h, nil
}

// Get returns the instance behind h.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.resolve(h, "")
	if err != nil {
		return nil, false
	}
	return s.value, true
}

// Lookup returns the instance behind h if it belongs to iface.
func (t *Table) Lookup(h Handle, iface string) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.resolve(h, iface)
	if err != nil {
		return nil, err
	}
	return s.value, nil
}

// Remove drops the instance behind h and calls its Drop method. It fails
// while borrows are outstanding. The slot is reused under a new generation.
func (t *Table) Remove(h Handle) (any, error) {
	return t.remove(h, "")
}

func (t *Table) remove(h Handle, iface string) (any, error) {
	t.mu.Lock()
	s, err := t.resolve(h, iface)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if s.borrows > 0 {
		t.mu.Unlock()
		return nil, ErrOutstandingBorrow
	}
	value, iface := s.value, s.iface
	*s = slot{gen: s.gen + 1}
	t.free = append(t.free, h.slot())
	t.mu.Unlock()

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	t.emit(Event{Kind: EventDropped, Interface: iface, Handle: h, Value: value})
	return value, nil
}

// Borrow pins the instance behind h until a matching Return.
func (t *Table) Borrow(h Handle) error {
	return t.borrow(h, "")
}

func (t *Table) borrow(h Handle, iface string) error {
	t.mu.Lock()
	s, err := t.resolve(h, iface)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	s.borrows++
	iface = s.iface
	t.mu.Unlock()

	t.emit(Event{Kind: EventBorrowed, Interface: iface, Handle: h})
	return nil
}

// Return ends one borrow of h.
func (t *Table) Return(h Handle) error {
	t.mu.Lock()
	s, err := t.resolve(h, "")
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if s.borrows == 0 {
		t.mu.Unlock()
		return ErrNotBorrowed
	}
	s.borrows--
	iface := s.iface
	t.mu.Unlock()

	t.emit(Event{Kind: EventReturned, Interface: iface, Handle: h})
	return nil
}

// Borrows returns the outstanding borrow count of h.
func (t *Table) Borrows(h Handle) (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.resolve(h, "")
	if err != nil {
		return 0, false
	}
	return s.borrows, true
}

// Len returns the number of live instances.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots) - len(t.free)
}

// Watch registers o for lifecycle events. The returned function removes it.
func (t *Table) Watch(o Observer) (cancel func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.watchers[id] = o
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.watchers, id)
		t.mu.Unlock()
	}
}

// Close drops every live instance regardless of borrows and rejects
// further inserts. Closing twice is a no-op.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	var dropped []Event
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		dropped = append(dropped, Event{
			Kind:      EventDropped,
			Interface: s.iface,
			Handle:    makeHandle(i, s.gen),
			Value:     s.value,
		})
	}
	t.slots, t.free = nil, nil
	t.mu.Unlock()

	for _, e := range dropped {
		if d, ok := e.Value.(Dropper); ok {
			d.Drop()
		}
		t.emit(e)
	}
	return nil
}

func (t *Table) emit(e Event) {
	t.mu.Lock()
	watchers := make([]Observer, 0, len(t.watchers))
	for _, o := range t.watchers {
		watchers = append(watchers, o)
	}
	t.mu.Unlock()

	for _, o := range watchers {
		o.Observe(e)
	}
}
