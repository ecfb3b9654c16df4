package resource

import "errors"

var (
	ErrClosed            = errors.New("instance table closed")
	ErrInvalidHandle     = errors.New("invalid instance handle")
	ErrStaleHandle       = errors.New("instance handle refers to a dropped instance")
	ErrWrongInterface    = errors.New("instance belongs to another interface")
	ErrOutstandingBorrow = errors.New("cannot drop instance with outstanding borrows")
	ErrNotBorrowed       = errors.New("instance is not borrowed")
	ErrTableFull         = errors.New("instance table full")
)

// Handle identifies an instance in a Table. The low 24 bits select a slot
// (one based) and the high 8 bits carry the slot generation, so a handle
// kept after its instance was dropped does not reach the slot's next
// occupant. Handle 0 is never issued.
type Handle uint32

const (
	slotBits = 24
	slotMask = 1<<slotBits - 1
	maxSlots = slotMask
)

func makeHandle(slot int, gen uint8) Handle {
	return Handle(uint32(gen)<<slotBits | uint32(slot+1))
}

// slot returns the zero based slot index, or -1 for the zero handle.
func (h Handle) slot() int {
	return int(uint32(h)&slotMask) - 1
}

func (h Handle) generation() uint8 {
	return uint8(uint32(h) >> slotBits)
}
