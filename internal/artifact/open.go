package artifact

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	ctymsgpack "github.com/zclconf/go-cty/cty/msgpack"

	"github.com/seantiz/kiln/internal/host"
	"github.com/seantiz/kiln/internal/kernel"
)

// File is an opened artifact: its functions with kernels resolved. A File is
// immutable and safe for concurrent use; it keeps its buffer alive for as
// long as it is referenced.
type File struct {
	buf       *AlignedBuffer
	functions map[string]*Function
	names     []string
	stripped  bool
}

// GetFunction returns the named function, or nil.
func (f *File) GetFunction(name string) *Function {
	return f.functions[name]
}

// FunctionNames returns the function names in declaration order.
func (f *File) FunctionNames() []string {
	return append([]string(nil), f.names...)
}

// Buffer returns the buffer the file was opened from.
func (f *File) Buffer() *AlignedBuffer { return f.buf }

// HasDebugInfo reports whether the artifact carried the optional debug section.
func (f *File) HasDebugInfo() bool { return !f.stripped }

// Open validates the artifact in buf and resolves every kernel it references
// against reg. Each problem found is also reported to diag.
func Open(buf *AlignedBuffer, reg *kernel.Registry, diag host.DiagHandler) (*File, error) {
	f, err := open(buf, reg, diag)
	if err != nil {
		diag(host.Diagnostic{Message: err.Error()})
		return nil, err
	}
	return f, nil
}

func open(buf *AlignedBuffer, reg *kernel.Registry, diag host.DiagHandler) (*File, error) {
	if buf == nil || buf.Len() == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrInvalidArtifact)
	}
	p, err := readSections(buf.Bytes())
	if err != nil {
		return nil, err
	}

	var kernelNames []string
	if err := msgpack.Unmarshal(p.sections[sectionKernels], &kernelNames); err != nil {
		return nil, fmt.Errorf("%w: decode kernels: %v", ErrInvalidArtifact, err)
	}
	kernels := make([]kernel.Kernel, len(kernelNames))
	var unresolved []error
	for i, name := range kernelNames {
		k, err := reg.Lookup(name)
		if err != nil {
			// Report every unresolved kernel, not only the first.
			diag(host.Diagnostic{Message: err.Error()})
			unresolved = append(unresolved, err)
			continue
		}
		kernels[i] = k
	}
	if len(unresolved) > 0 {
		return nil, fmt.Errorf("resolve kernels: %w", errors.Join(unresolved...))
	}

	var encTypes [][]byte
	if err := msgpack.Unmarshal(p.sections[sectionTypes], &encTypes); err != nil {
		return nil, fmt.Errorf("%w: decode types: %v", ErrInvalidArtifact, err)
	}
	types := make([]cty.Type, len(encTypes))
	for i, enc := range encTypes {
		ty, err := ctyjson.UnmarshalType(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: type %d: %v", ErrInvalidArtifact, i, err)
		}
		types[i] = ty
	}

	var encFuncs []encodedFunction
	if err := msgpack.Unmarshal(p.sections[sectionFunctions], &encFuncs); err != nil {
		return nil, fmt.Errorf("%w: decode functions: %v", ErrInvalidArtifact, err)
	}

	debug := make(map[string]encodedDebugFunction)
	if raw, ok := p.sections[sectionDebug]; ok {
		var encDebug []encodedDebugFunction
		if err := msgpack.Unmarshal(raw, &encDebug); err != nil {
			return nil, fmt.Errorf("%w: decode debug info: %v", ErrInvalidArtifact, err)
		}
		for _, d := range encDebug {
			debug[d.Name] = d
		}
	}

	f := &File{
		buf:       buf,
		functions: make(map[string]*Function, len(encFuncs)),
		stripped:  p.stripped(),
	}
	for _, ef := range encFuncs {
		if _, dup := f.functions[ef.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate function %q", ErrInvalidArtifact, ef.Name)
		}
		fn, err := decodeFunction(f, ef, kernels, types, debug[ef.Name])
		if err != nil {
			return nil, fmt.Errorf("%w: function %q: %v", ErrInvalidArtifact, ef.Name, err)
		}
		f.functions[ef.Name] = fn
		f.names = append(f.names, ef.Name)
	}
	return f, nil
}

func decodeFunction(f *File, ef encodedFunction, kernels []kernel.Kernel, types []cty.Type, dbg encodedDebugFunction) (*Function, error) {
	typeAt := func(i int) (cty.Type, error) {
		if i < 0 || i >= len(types) {
			return cty.NilType, fmt.Errorf("type index %d out of range", i)
		}
		return types[i], nil
	}
	regOK := func(r int) bool { return r >= 0 && r < ef.NumRegs }

	fn := &Function{
		name:     ef.Name,
		file:     f,
		numRegs:  ef.NumRegs,
		location: dbg.Location,
	}
	for _, ti := range ef.ArgTypes {
		ty, err := typeAt(ti)
		if err != nil {
			return nil, err
		}
		fn.argTypes = append(fn.argTypes, ty)
	}
	if len(fn.argTypes) > ef.NumRegs {
		return nil, fmt.Errorf("%d arguments exceed %d registers", len(fn.argTypes), ef.NumRegs)
	}
	for _, ti := range ef.ResultTypes {
		ty, err := typeAt(ti)
		if err != nil {
			return nil, err
		}
		fn.resultTypes = append(fn.resultTypes, ty)
	}
	if len(ef.Results) != len(fn.resultTypes) {
		return nil, fmt.Errorf("%d results but %d result types", len(ef.Results), len(fn.resultTypes))
	}
	for _, r := range ef.Results {
		if !regOK(r) {
			return nil, fmt.Errorf("result register %d out of range", r)
		}
	}
	fn.results = ef.Results

	// Registers must be written before they are read.
	defined := make([]bool, ef.NumRegs)
	for i := range fn.argTypes {
		defined[i] = true
	}
	for i, eo := range ef.Ops {
		if eo.Kernel < 0 || eo.Kernel >= len(kernels) {
			return nil, fmt.Errorf("op %d: kernel index %d out of range", i, eo.Kernel)
		}
		if !regOK(eo.Result) {
			return nil, fmt.Errorf("op %d: result register %d out of range", i, eo.Result)
		}
		for _, r := range eo.Args {
			if !regOK(r) {
				return nil, fmt.Errorf("op %d: argument register %d out of range", i, r)
			}
			if !defined[r] {
				return nil, fmt.Errorf("op %d: argument register %d read before written", i, r)
			}
		}
		defined[eo.Result] = true
		o := op{
			kernel: kernels[eo.Kernel],
			args:   eo.Args,
			result: eo.Result,
			attrs:  cty.NilVal,
			name:   fmt.Sprintf("#%d", i),
		}
		if len(eo.Attrs) > 0 {
			attrs, err := ctymsgpack.Unmarshal(eo.Attrs, cty.DynamicPseudoType)
			if err != nil {
				return nil, fmt.Errorf("op %d: decode attrs: %v", i, err)
			}
			o.attrs = attrs
		}
		if i < len(dbg.OpNames) {
			o.name = dbg.OpNames[i]
		}
		if i < len(dbg.OpLocs) {
			o.location = dbg.OpLocs[i]
		}
		fn.ops = append(fn.ops, o)
	}
	for _, r := range fn.results {
		if !defined[r] {
			return nil, fmt.Errorf("result register %d never written", r)
		}
	}
	return fn, nil
}
