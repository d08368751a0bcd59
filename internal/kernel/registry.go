package kernel

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKernel is returned when a kernel name has no registration.
var ErrUnknownKernel = errors.New("unknown kernel")

// Info describes a registered kernel for listing.
type Info struct {
	Name     string `json:"name"`
	Arity    int    `json:"arity"`
	Blocking bool   `json:"blocking"`
	Doc      string `json:"doc,omitempty"`
}

// Registry maps kernel names to implementations. It is safe for concurrent
// use; artifacts resolve against it while new kernels may still be added.
type Registry struct {
	mu      sync.RWMutex
	kernels map[string]Kernel
}

// NewRegistry creates an empty kernel registry.
func NewRegistry() *Registry {
	return &Registry{
		kernels: make(map[string]Kernel),
	}
}

// Register adds k under k.Name, replacing any existing kernel with that name.
func (r *Registry) Register(k Kernel) {
	if k.Name == "" || k.Fn == nil {
		panic(fmt.Sprintf("kernel: invalid registration %q", k.Name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kernels[k.Name] = k
}

// Lookup returns the kernel registered under name.
func (r *Registry) Lookup(name string) (Kernel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.kernels[name]
	if !ok {
		return Kernel{}, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
	}
	return k, nil
}

// List returns information about all registered kernels, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.kernels))
	for _, k := range r.kernels {
		infos = append(infos, Info{
			Name:     k.Name,
			Arity:    k.Arity,
			Blocking: k.Blocking,
			Doc:      k.Doc,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
