package host

import (
	"sync/atomic"
	"unsafe"
)

// Allocator hands out byte buffers with a guaranteed start alignment.
type Allocator interface {
	Allocate(size, alignment int) []byte
	Deallocate(b []byte)
}

// MallocAllocator allocates from the Go heap and tracks live bytes.
type MallocAllocator struct {
	live atomic.Int64
}

// NewMallocAllocator returns a heap-backed allocator.
func NewMallocAllocator() *MallocAllocator {
	return &MallocAllocator{}
}

// Allocate returns a zeroed slice of length size whose first byte is aligned
// to alignment, which must be a power of two.
func (a *MallocAllocator) Allocate(size, alignment int) []byte {
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		panic("host: alignment must be a positive power of two")
	}
	raw := make([]byte, size+alignment)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	off := int((uintptr(alignment) - addr%uintptr(alignment)) % uintptr(alignment))
	a.live.Add(int64(size))
	return raw[off : off+size : off+size]
}

// Deallocate releases the accounting for b. The memory itself is reclaimed by
// the garbage collector once nothing references it.
func (a *MallocAllocator) Deallocate(b []byte) {
	a.live.Add(-int64(len(b)))
}

// LiveBytes reports bytes allocated and not yet deallocated.
func (a *MallocAllocator) LiveBytes() int64 {
	return a.live.Load()
}
