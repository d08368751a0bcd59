package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/seantiz/kiln/internal/async"
	"github.com/seantiz/kiln/internal/host"
	"github.com/seantiz/kiln/internal/kernel"
	"github.com/seantiz/kiln/internal/model"
	"github.com/seantiz/kiln/internal/program"
	"github.com/seantiz/kiln/internal/store"
)

// Default engine sizing.
const (
	DefaultNumThreads         = 4
	DefaultNumBlockingThreads = 64
)

var (
	// ErrProgramNotFound is returned by Execute when no program is registered
	// under the requested name.
	ErrProgramNotFound = errors.New("program not found")
	// ErrFunctionNotFound is returned by Execute when the registered program
	// has no function named after its identity.
	ErrFunctionNotFound = errors.New("function not found")
)

// RemoteRegisterInvocation asks for Program to be compiled and cached under
// ProgramName.
type RemoteRegisterInvocation struct {
	ProgramName string
	Program     string
}

// RemoteExecuteInvocation asks for the function named ProgramName in the
// program registered under ProgramName to run. With nil Args every argument
// slot is left empty.
type RemoteExecuteInvocation struct {
	ProgramName string
	Args        []cty.Value
}

// Options configures a RequestHandler. Zero values select the defaults.
type Options struct {
	Logger *slog.Logger
	// Store, if set, receives a record of every dispatched execution.
	Store     store.Store
	Allocator host.Allocator
	// WorkQueue overrides the engine's work queue. The handler takes
	// ownership and closes it.
	WorkQueue          host.WorkQueue
	NumThreads         int
	NumBlockingThreads int
}

// ProgramInfo describes a cached program.
type ProgramInfo struct {
	Name      string         `json:"name"`
	Functions []FunctionInfo `json:"functions"`
}

// FunctionInfo is the signature of one function in a cached program.
type FunctionInfo struct {
	Name      string   `json:"name"`
	Arguments []string `json:"arguments"`
	Results   []string `json:"results"`
}

// RequestHandler owns one execution engine and the function cache bound to
// it.
type RequestHandler struct {
	host   *host.HostContext
	cache  *FunctionCache
	diags  *host.DiagBroker
	store  store.Store
	logger *slog.Logger
}

// New builds the engine, installs the built-in kernels and creates an empty
// function cache.
func New(opts Options) *RequestHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	alloc := opts.Allocator
	if alloc == nil {
		alloc = host.NewMallocAllocator()
	}
	queue := opts.WorkQueue
	if queue == nil {
		numThreads := opts.NumThreads
		if numThreads <= 0 {
			numThreads = DefaultNumThreads
		}
		numBlocking := opts.NumBlockingThreads
		if numBlocking <= 0 {
			numBlocking = DefaultNumBlockingThreads
		}
		queue = host.NewMultiThreadedWorkQueue(numThreads, numBlocking)
	}

	diags := host.NewDiagBroker()
	diag := func(d host.Diagnostic) {
		logger.Warn("diagnostic", "program", d.Program, "message", d.Message, "location", d.Location)
		diags.Publish(d)
	}

	h := host.New(diag, alloc, queue)
	kernel.RegisterStaticKernels(h.Registry())

	return &RequestHandler{
		host:   h,
		cache:  NewFunctionCache(h),
		diags:  diags,
		store:  opts.Store,
		logger: logger,
	}
}

// Host returns the handler's execution engine.
func (h *RequestHandler) Host() *host.HostContext { return h.host }

// Diagnostics returns the broker diagnostics are published to.
func (h *RequestHandler) Diagnostics() *host.DiagBroker { return h.diags }

// Kernels lists the kernels programs may use.
func (h *RequestHandler) Kernels() []kernel.Info { return h.host.Registry().List() }

// Register parses text and caches the compiled program under name,
// replacing any previous entry. On failure the previous entry stays active.
func (h *RequestHandler) Register(ctx context.Context, name, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := h.register(name, text)
	registrationsTotal.WithLabelValues(registrationOutcome(err)).Inc()
	cachedPrograms.Set(float64(h.cache.Len()))
	return err
}

func (h *RequestHandler) register(name, text string) error {
	m, err := program.Parse(name, []byte(text))
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrParse, name, err)
	}
	start := time.Now()
	err = h.cache.Register(name, m)
	compileDuration.Observe(time.Since(start).Seconds())
	return err
}

// Execute dispatches the function named req.ProgramName and returns without
// waiting for it to run. Lookup failures return an error and submit nothing
// to the engine; failures inside the function resolve the result slots.
func (h *RequestHandler) Execute(ctx context.Context, req RemoteExecuteInvocation) (*Execution, error) {
	name := req.ProgramName
	f := h.cache.Prepare(name)
	if f == nil {
		executionsTotal.WithLabelValues(statusProgramNotFound).Inc()
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, name)
	}
	fn := f.GetFunction(name)
	if fn == nil {
		executionsTotal.WithLabelValues(statusFunctionNotFound).Inc()
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}

	rc := host.NewRequestContext(h.host, host.NewResourceContext())
	ec := host.NewExecutionContext(rc, h.logger.With("program", name))

	args := make([]*async.Value, fn.NumArguments())
	if req.Args != nil {
		args = make([]*async.Value, len(req.Args))
		for i, v := range req.Args {
			args[i] = async.NewConcrete(v)
		}
	}
	results := make([]*async.Value, fn.NumResults())

	e := &Execution{
		ID:      rc.ID(),
		Program: name,
		Results: results,
		done:    make(chan struct{}),
	}
	if err := h.recordDispatch(ctx, e, len(args)); err != nil {
		return nil, err
	}

	e.start = time.Now()
	fn.Execute(ec, args, results)
	async.RunWhenReady(results, func() {
		// Recording may touch the store; keep it off the compute workers.
		if err := h.host.EnqueueBlockingWork(func() { h.finish(e) }); err != nil {
			h.finish(e)
		}
	})
	return e, nil
}

// recordDispatch persists e as pending, then running.
func (h *RequestHandler) recordDispatch(ctx context.Context, e *Execution, numArgs int) error {
	if h.store == nil {
		return nil
	}
	rec := &model.Execution{
		ID:         e.ID,
		Program:    e.Program,
		Status:     model.StatusPending,
		NumArgs:    numArgs,
		NumResults: len(e.Results),
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.store.CreateExecution(ctx, rec); err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	if err := h.store.UpdateExecutionStatus(ctx, e.ID, model.StatusRunning); err != nil {
		return fmt.Errorf("record execution start: %w", err)
	}
	return nil
}

// HandleRemoteRegister registers inv.Program under inv.ProgramName. Failures
// are logged and published as diagnostics; the caller is not told.
func (h *RequestHandler) HandleRemoteRegister(inv RemoteRegisterInvocation) {
	if err := h.Register(context.Background(), inv.ProgramName, inv.Program); err != nil {
		h.report("register program", inv.ProgramName, err)
		return
	}
	h.logger.Info("program registered", "program", inv.ProgramName)
}

// HandleRemoteExecute dispatches inv and returns immediately. Failures are
// logged and published as diagnostics; the caller is not told.
func (h *RequestHandler) HandleRemoteExecute(inv RemoteExecuteInvocation) {
	e, err := h.Execute(context.Background(), inv)
	if err != nil {
		h.report("execute program", inv.ProgramName, err)
		return
	}
	h.logger.Debug("execution dispatched", "program", inv.ProgramName, "execution_id", e.ID)
}

func (h *RequestHandler) report(op, name string, err error) {
	h.logger.Error(op, "program", name, "error", err)
	h.diags.Publish(host.Diagnostic{Program: name, Message: err.Error()})
}

// Programs lists the cached programs and their function signatures.
func (h *RequestHandler) Programs() []ProgramInfo {
	names := h.cache.Names()
	infos := make([]ProgramInfo, 0, len(names))
	for _, name := range names {
		f := h.cache.Prepare(name)
		if f == nil {
			continue
		}
		info := ProgramInfo{Name: name}
		for _, fnName := range f.FunctionNames() {
			fn := f.GetFunction(fnName)
			info.Functions = append(info.Functions, FunctionInfo{
				Name:      fnName,
				Arguments: typeNames(fn.ArgumentTypes()),
				Results:   typeNames(fn.ResultTypes()),
			})
		}
		infos = append(infos, info)
	}
	return infos
}

func typeNames(types []cty.Type) []string {
	names := make([]string, len(types))
	for i, ty := range types {
		names[i] = ty.FriendlyName()
	}
	return names
}

// Quiesce waits until every dispatched execution has finished.
func (h *RequestHandler) Quiesce() { h.host.Quiesce() }

// Close waits for outstanding executions, stops the engine and closes the
// diagnostic stream. The store is left open.
func (h *RequestHandler) Close() {
	h.host.Close()
	h.diags.Close()
}
