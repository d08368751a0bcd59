package artifact

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Alignment is the boundary every artifact buffer and section starts on.
const Alignment = 8

// MaxSectionSize bounds a single section payload (64 MiB).
const MaxSectionSize = 64 << 20

const (
	magic             = "KILN"
	formatVersion     = 1
	headerSize        = 8
	sectionHeaderSize = 8

	// flagStripped marks an artifact compiled without optional sections.
	flagStripped = 1 << 0
)

type sectionID uint8

const (
	sectionKernels   sectionID = 1
	sectionTypes     sectionID = 2
	sectionFunctions sectionID = 3
	sectionDebug     sectionID = 4
)

func (s sectionID) String() string {
	switch s {
	case sectionKernels:
		return "kernels"
	case sectionTypes:
		return "types"
	case sectionFunctions:
		return "functions"
	case sectionDebug:
		return "debug"
	default:
		return fmt.Sprintf("section(%d)", uint8(s))
	}
}

// ErrInvalidArtifact is returned when artifact bytes fail validation.
var ErrInvalidArtifact = errors.New("invalid artifact")

func writeHeader(buf *bytes.Buffer, flags byte) {
	buf.WriteString(magic)
	buf.WriteByte(formatVersion)
	buf.WriteByte(flags)
	buf.Write([]byte{0, 0})
}

// writeSection appends a framed section and pads to the next Alignment
// boundary.
func writeSection(buf *bytes.Buffer, id sectionID, payload []byte) error {
	if len(payload) > MaxSectionSize {
		return fmt.Errorf("section %s size %d exceeds maximum %d", id, len(payload), MaxSectionSize)
	}
	var hdr [sectionHeaderSize]byte
	hdr[0] = byte(id)
	binary.BigEndian.PutUint32(hdr[4:], uint32(len(payload)))
	buf.Write(hdr[:])
	buf.Write(payload)
	if pad := padding(len(payload)); pad > 0 {
		buf.Write(make([]byte, pad))
	}
	return nil
}

func padding(n int) int {
	return (Alignment - n%Alignment) % Alignment
}

// parsed is the validated section table of an artifact. Section payloads
// alias the artifact buffer.
type parsed struct {
	flags    byte
	sections map[sectionID][]byte
}

func (p parsed) stripped() bool { return p.flags&flagStripped != 0 }

func readSections(data []byte) (parsed, error) {
	if len(data) < headerSize {
		return parsed{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidArtifact, len(data))
	}
	if string(data[:4]) != magic {
		return parsed{}, fmt.Errorf("%w: bad magic %q", ErrInvalidArtifact, data[:4])
	}
	if data[4] != formatVersion {
		return parsed{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidArtifact, data[4])
	}

	p := parsed{flags: data[5], sections: make(map[sectionID][]byte)}
	off := headerSize
	for off < len(data) {
		if len(data)-off < sectionHeaderSize {
			return parsed{}, fmt.Errorf("%w: truncated section header at offset %d", ErrInvalidArtifact, off)
		}
		id := sectionID(data[off])
		length := int(binary.BigEndian.Uint32(data[off+4 : off+8]))
		if length > MaxSectionSize {
			return parsed{}, fmt.Errorf("%w: section %s size %d exceeds maximum %d", ErrInvalidArtifact, id, length, MaxSectionSize)
		}
		start := off + sectionHeaderSize
		end := start + length
		if end > len(data) {
			return parsed{}, fmt.Errorf("%w: section %s overruns artifact", ErrInvalidArtifact, id)
		}
		if _, dup := p.sections[id]; dup {
			return parsed{}, fmt.Errorf("%w: duplicate section %s", ErrInvalidArtifact, id)
		}
		p.sections[id] = data[start:end]
		off = end + padding(length)
	}

	for _, id := range []sectionID{sectionKernels, sectionTypes, sectionFunctions} {
		if _, ok := p.sections[id]; !ok {
			return parsed{}, fmt.Errorf("%w: missing %s section", ErrInvalidArtifact, id)
		}
	}
	return p, nil
}

// Encoded section payloads. Register numbering: arguments occupy registers
// 0..n-1, then op i writes register n+i.

type encodedFunction struct {
	Name        string      `msgpack:"name"`
	ArgTypes    []int       `msgpack:"arg_types"`
	ResultTypes []int       `msgpack:"result_types"`
	NumRegs     int         `msgpack:"num_regs"`
	Ops         []encodedOp `msgpack:"ops"`
	Results     []int       `msgpack:"results"`
}

type encodedOp struct {
	Kernel int    `msgpack:"kernel"`
	Args   []int  `msgpack:"args"`
	Result int    `msgpack:"result"`
	Attrs  []byte `msgpack:"attrs,omitempty"`
}

type encodedDebugFunction struct {
	Name     string   `msgpack:"name"`
	Location string   `msgpack:"location"`
	OpNames  []string `msgpack:"op_names"`
	OpLocs   []string `msgpack:"op_locs"`
}
