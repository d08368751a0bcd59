package artifact

import (
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/seantiz/kiln/internal/async"
	"github.com/seantiz/kiln/internal/host"
	"github.com/seantiz/kiln/internal/kernel"
)

var (
	// ErrArgumentCount is set on result slots when Execute receives the wrong
	// number of argument slots.
	ErrArgumentCount = errors.New("argument count mismatch")
	// ErrMissingArgument is set on result slots when an argument slot is empty.
	ErrMissingArgument = errors.New("missing argument")
)

// Function is one executable function of an opened artifact.
type Function struct {
	name        string
	file        *File
	location    string
	numRegs     int
	argTypes    []cty.Type
	resultTypes []cty.Type
	ops         []op
	results     []int
}

type op struct {
	kernel   kernel.Kernel
	args     []int
	result   int
	attrs    cty.Value
	name     string
	location string
}

func (f *Function) Name() string { return f.name }

// ArgumentTypes returns the declared argument types.
func (f *Function) ArgumentTypes() []cty.Type { return append([]cty.Type(nil), f.argTypes...) }

// ResultTypes returns the declared result types.
func (f *Function) ResultTypes() []cty.Type { return append([]cty.Type(nil), f.resultTypes...) }

func (f *Function) NumArguments() int { return len(f.argTypes) }

func (f *Function) NumResults() int { return len(f.resultTypes) }

// Execute runs the function asynchronously on ec's engine. Nil entries in
// results are replaced with unresolved values; every result slot is resolved
// exactly once, with the error if the function fails. Execution starts once
// every argument slot is resolved. Execute never blocks on the function body.
func (f *Function) Execute(ec host.ExecutionContext, args, results []*async.Value) {
	for i := range results {
		if results[i] == nil {
			results[i] = async.NewUnresolved()
		}
	}
	r := &run{fn: f, ec: ec, results: results}

	if len(results) != len(f.resultTypes) {
		r.fail(fmt.Errorf("function %s: got %d result slots, want %d", f.name, len(results), len(f.resultTypes)), f.location)
		return
	}
	if len(args) != len(f.argTypes) {
		r.fail(fmt.Errorf("function %s: %w: got %d, want %d", f.name, ErrArgumentCount, len(args), len(f.argTypes)), f.location)
		return
	}
	for i, a := range args {
		if a == nil {
			r.fail(fmt.Errorf("function %s: %w: argument %d", f.name, ErrMissingArgument, i), f.location)
			return
		}
	}

	async.RunWhenReady(args, func() {
		if err := ec.Host().EnqueueWork(func() { r.start(args) }); err != nil {
			r.fail(fmt.Errorf("function %s: %w", f.name, err), f.location)
		}
	})
}

// run is the state of one invocation. Registers are only touched by the task
// currently advancing the invocation, and tasks hand off through the work
// queue.
type run struct {
	fn      *Function
	ec      host.ExecutionContext
	regs    []cty.Value
	results []*async.Value
}

func (r *run) start(args []*async.Value) {
	f := r.fn
	r.regs = make([]cty.Value, f.numRegs)
	for i, a := range args {
		v, err := a.Get()
		if err != nil {
			r.fail(fmt.Errorf("function %s: argument %d: %w", f.name, i, err), f.location)
			return
		}
		cv, err := convert.Convert(v, f.argTypes[i])
		if err != nil {
			r.fail(fmt.Errorf("function %s: argument %d: %w", f.name, i, err), f.location)
			return
		}
		r.regs[i] = cv
	}
	r.step(0)
}

// step runs ops from pc until the function finishes, fails, or reaches a
// blocking kernel. A blocking kernel runs on the blocking pool and the
// remaining ops resume on a compute worker.
func (r *run) step(pc int) {
	h := r.ec.Host()
	for ; pc < len(r.fn.ops); pc++ {
		o := r.fn.ops[pc]
		if !o.kernel.Blocking {
			if err := r.call(o); err != nil {
				r.fail(err, o.location)
				return
			}
			continue
		}
		next := pc + 1
		err := h.EnqueueBlockingWork(func() {
			if err := r.call(o); err != nil {
				r.fail(err, o.location)
				return
			}
			if err := h.EnqueueWork(func() { r.step(next) }); err != nil {
				r.fail(fmt.Errorf("function %s: %w", r.fn.name, err), o.location)
			}
		})
		if err != nil {
			r.fail(fmt.Errorf("function %s: %w", r.fn.name, err), o.location)
		}
		return
	}
	r.finish()
}

func (r *run) call(o op) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("function %s: op %s: kernel %s panicked: %v", r.fn.name, o.name, o.kernel.Name, p)
		}
	}()
	in := make([]cty.Value, len(o.args))
	for i, reg := range o.args {
		in[i] = r.regs[reg]
	}
	v, err := o.kernel.Call(r.ec.Context(), in, o.attrs)
	if err != nil {
		return fmt.Errorf("function %s: op %s: %w", r.fn.name, o.name, err)
	}
	if v == cty.NilVal {
		v = cty.NullVal(cty.DynamicPseudoType)
	}
	r.regs[o.result] = v
	return nil
}

func (r *run) finish() {
	f := r.fn
	out, err := r.collect()
	if err != nil {
		r.fail(err, f.location)
		return
	}
	for i, v := range out {
		r.results[i].SetValue(v)
	}
}

// collect converts the result registers to the declared result types.
func (r *run) collect() (out []cty.Value, err error) {
	f := r.fn
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("function %s: convert results: %v", f.name, p)
		}
	}()
	out = make([]cty.Value, len(f.results))
	for i, reg := range f.results {
		v := r.regs[reg]
		if v == cty.NilVal {
			return nil, fmt.Errorf("function %s: result %d: register %d never written", f.name, i, reg)
		}
		cv, err := convert.Convert(v, f.resultTypes[i])
		if err != nil {
			return nil, fmt.Errorf("function %s: result %d: %w", f.name, i, err)
		}
		out[i] = cv
	}
	return out, nil
}

// fail resolves every unresolved result slot with err and reports it.
func (r *run) fail(err error, location string) {
	r.ec.Host().EmitDiag(host.Diagnostic{
		Program:  r.fn.name,
		Message:  err.Error(),
		Location: location,
	})
	for _, res := range r.results {
		res.SetError(err)
	}
}
