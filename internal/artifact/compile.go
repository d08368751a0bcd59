package artifact

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	ctymsgpack "github.com/zclconf/go-cty/cty/msgpack"

	"github.com/seantiz/kiln/internal/program"
)

// ErrInvalidProgram is returned when a module cannot be lowered.
var ErrInvalidProgram = errors.New("invalid program")

// Compile lowers m into artifact bytes. With disableOptionalSections the
// debug section (value names and source locations) is omitted.
func Compile(m *program.Module, disableOptionalSections bool) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: no module", ErrInvalidProgram)
	}
	if len(m.Functions) == 0 {
		return nil, fmt.Errorf("%w: %s defines no functions", ErrInvalidProgram, m.Filename)
	}

	c := &compiler{
		kernelIndex: make(map[string]int),
		typeIndex:   make(map[string]int),
	}
	seen := make(map[string]bool, len(m.Functions))
	for _, fn := range m.Functions {
		if seen[fn.Name] {
			return nil, invalid(fn.Range, "duplicate function %q", fn.Name)
		}
		seen[fn.Name] = true
		if err := c.function(fn); err != nil {
			return nil, err
		}
	}

	kernels, err := msgpack.Marshal(c.kernels)
	if err != nil {
		return nil, fmt.Errorf("encode kernels: %w", err)
	}
	types, err := msgpack.Marshal(c.types)
	if err != nil {
		return nil, fmt.Errorf("encode types: %w", err)
	}
	functions, err := msgpack.Marshal(c.functions)
	if err != nil {
		return nil, fmt.Errorf("encode functions: %w", err)
	}

	var flags byte
	if disableOptionalSections {
		flags |= flagStripped
	}
	var buf bytes.Buffer
	writeHeader(&buf, flags)
	if err := writeSection(&buf, sectionKernels, kernels); err != nil {
		return nil, err
	}
	if err := writeSection(&buf, sectionTypes, types); err != nil {
		return nil, err
	}
	if err := writeSection(&buf, sectionFunctions, functions); err != nil {
		return nil, err
	}
	if !disableOptionalSections {
		debug, err := msgpack.Marshal(c.debug)
		if err != nil {
			return nil, fmt.Errorf("encode debug info: %w", err)
		}
		if err := writeSection(&buf, sectionDebug, debug); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

type compiler struct {
	kernels     []string
	kernelIndex map[string]int
	types       [][]byte
	typeIndex   map[string]int
	functions   []encodedFunction
	debug       []encodedDebugFunction
}

func (c *compiler) function(fn *program.Function) error {
	regs := make(map[string]int, len(fn.Arguments)+len(fn.Ops))
	define := func(name string, rng hcl.Range) (int, error) {
		if name == "" {
			return 0, invalid(rng, "function %q: empty value name", fn.Name)
		}
		if _, dup := regs[name]; dup {
			return 0, invalid(rng, "function %q: value %q defined twice", fn.Name, name)
		}
		r := len(regs)
		regs[name] = r
		return r, nil
	}

	ef := encodedFunction{Name: fn.Name}
	dbg := encodedDebugFunction{Name: fn.Name, Location: fn.Range.String()}

	for _, arg := range fn.Arguments {
		if _, err := define(arg.Name, arg.Range); err != nil {
			return err
		}
		ti, err := c.typeRef(arg.Type)
		if err != nil {
			return invalid(arg.Range, "function %q: argument %q: %v", fn.Name, arg.Name, err)
		}
		ef.ArgTypes = append(ef.ArgTypes, ti)
	}

	for _, op := range fn.Ops {
		if op.Kernel == "" {
			return invalid(op.Range, "function %q: op %q has no kernel", fn.Name, op.Name)
		}
		eo := encodedOp{Kernel: c.kernelRef(op.Kernel)}
		for _, a := range op.Args {
			r, ok := regs[a]
			if !ok {
				return invalid(op.Range, "function %q: op %q uses undefined value %q", fn.Name, op.Name, a)
			}
			eo.Args = append(eo.Args, r)
		}
		if op.Attrs != cty.NilVal {
			attrs, err := ctymsgpack.Marshal(op.Attrs, cty.DynamicPseudoType)
			if err != nil {
				return invalid(op.Range, "function %q: op %q: encode attrs: %v", fn.Name, op.Name, err)
			}
			eo.Attrs = attrs
		}
		// Define after resolving args so an op cannot consume its own value.
		r, err := define(op.Name, op.Range)
		if err != nil {
			return err
		}
		eo.Result = r
		ef.Ops = append(ef.Ops, eo)
		dbg.OpNames = append(dbg.OpNames, op.Name)
		dbg.OpLocs = append(dbg.OpLocs, op.Range.String())
	}

	for i, res := range fn.Results {
		r, ok := regs[res.Value]
		if !ok {
			return invalid(res.Range, "function %q: result %d uses undefined value %q", fn.Name, i, res.Value)
		}
		ti, err := c.typeRef(res.Type)
		if err != nil {
			return invalid(res.Range, "function %q: result %d: %v", fn.Name, i, err)
		}
		ef.Results = append(ef.Results, r)
		ef.ResultTypes = append(ef.ResultTypes, ti)
	}

	ef.NumRegs = len(regs)
	c.functions = append(c.functions, ef)
	c.debug = append(c.debug, dbg)
	return nil
}

func (c *compiler) kernelRef(name string) int {
	if i, ok := c.kernelIndex[name]; ok {
		return i
	}
	i := len(c.kernels)
	c.kernels = append(c.kernels, name)
	c.kernelIndex[name] = i
	return i
}

func (c *compiler) typeRef(ty cty.Type) (int, error) {
	enc, err := ctyjson.MarshalType(ty)
	if err != nil {
		return 0, err
	}
	key := string(enc)
	if i, ok := c.typeIndex[key]; ok {
		return i, nil
	}
	i := len(c.types)
	c.types = append(c.types, enc)
	c.typeIndex[key] = i
	return i, nil
}

func invalid(rng hcl.Range, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidProgram, rng.String(), fmt.Sprintf(format, args...))
}
