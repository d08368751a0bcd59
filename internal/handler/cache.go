package handler

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/seantiz/kiln/internal/artifact"
	"github.com/seantiz/kiln/internal/host"
	"github.com/seantiz/kiln/internal/program"
)

var (
	// ErrParse is returned when program text cannot be parsed.
	ErrParse = errors.New("parse program")
	// ErrCompile is returned when a parsed program cannot be lowered.
	ErrCompile = errors.New("compile program")
	// ErrOpen is returned when a compiled artifact cannot be opened.
	ErrOpen = errors.New("open artifact")
)

// disableOptionalSections strips debug info from cached artifacts.
const disableOptionalSections = true

// FunctionCache maps program identities to opened artifacts. The mutex
// guards only the map: compiling and opening happen outside it, so Prepare
// never waits on a compilation.
type FunctionCache struct {
	host *host.HostContext

	mu      sync.Mutex
	entries map[string]*artifact.File
}

// NewFunctionCache creates an empty cache whose artifacts are opened
// against h.
func NewFunctionCache(h *host.HostContext) *FunctionCache {
	return &FunctionCache{
		host:    h,
		entries: make(map[string]*artifact.File),
	}
}

// Register compiles and opens m, then makes it the entry for name. On any
// failure the existing entry, if any, is left in place.
func (c *FunctionCache) Register(name string, m *program.Module) error {
	if m == nil {
		return fmt.Errorf("%w %s: no module", ErrCompile, name)
	}
	data, err := artifact.Compile(m, disableOptionalSections)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrCompile, name, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w %s: empty artifact", ErrCompile, name)
	}

	buf := artifact.NewAlignedBuffer(c.host.Allocator(), data)
	f, err := artifact.Open(buf, c.host.Registry(), c.diagFor(name))
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrOpen, name, err)
	}

	c.mu.Lock()
	c.entries[name] = f
	c.mu.Unlock()
	return nil
}

// Prepare returns the current artifact for name, or nil. The returned file
// stays valid after a later Register replaces the entry.
func (c *FunctionCache) Prepare(name string) *artifact.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[name]
}

// Len returns the number of cached programs.
func (c *FunctionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Names returns the cached program identities, sorted.
func (c *FunctionCache) Names() []string {
	c.mu.Lock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	c.mu.Unlock()
	sort.Strings(names)
	return names
}

// diagFor tags diagnostics raised while opening name's artifact.
func (c *FunctionCache) diagFor(name string) host.DiagHandler {
	return func(d host.Diagnostic) {
		if d.Program == "" {
			d.Program = name
		}
		c.host.EmitDiag(d)
	}
}
