package memory

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/savefile/errors"
)

// addressSpace is the largest 32-bit linear memory.
const addressSpace = 1 << 32

// PageSize is the size of one wasm memory page.
const PageSize = 65536

// Exchange moves frames in and out of a module's linear memory, growing
// the memory when a frame does not fit.
type Exchange struct {
	Mem api.Memory
}

// Write copies data to offset.
func (x Exchange) Write(offset uint32, data []byte) error {
	if err := x.ensure(uint64(offset) + uint64(len(data))); err != nil {
		return err
	}
	if !x.Mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// Read returns a copy of length bytes at offset.
func (x Exchange) Read(offset, length uint32) ([]byte, error) {
	data, ok := x.Mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return append([]byte(nil), data...), nil
}

// ensure grows the memory until end bytes are addressable.
func (x Exchange) ensure(end uint64) error {
	size := uint64(x.Mem.Size())
	if end <= size {
		return nil
	}
	if end > addressSpace {
		return errors.CapacityExceeded(errors.PhaseLinking, nil, int(end), addressSpace)
	}
	pages := (end - size + PageSize - 1) / PageSize
	if _, ok := x.Mem.Grow(uint32(pages)); !ok {
		return fmt.Errorf("cannot grow memory by %d pages", pages)
	}
	return nil
}

// Align8 rounds n up to a multiple of eight.
func Align8(n uint32) uint32 {
	return (n + 7) &^ 7
}
