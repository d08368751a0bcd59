package artifact

import (
	"runtime"

	"github.com/seantiz/kiln/internal/host"
)

// AlignedBuffer owns artifact bytes whose first byte sits on an Alignment
// boundary. Its memory is returned to the allocator once the buffer, and
// every File opened from it, is unreachable.
type AlignedBuffer struct {
	data []byte
}

// NewAlignedBuffer copies src into memory obtained from alloc.
func NewAlignedBuffer(alloc host.Allocator, src []byte) *AlignedBuffer {
	data := alloc.Allocate(len(src), Alignment)
	copy(data, src)
	b := &AlignedBuffer{data: data}
	runtime.AddCleanup(b, alloc.Deallocate, data)
	return b
}

// Bytes returns the buffer contents. Callers must not modify them.
func (b *AlignedBuffer) Bytes() []byte { return b.data }

// Len returns the artifact size in bytes.
func (b *AlignedBuffer) Len() int { return len(b.data) }
