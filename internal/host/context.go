package host

import (
	"context"
	"log/slog"
	"sync"

	"github.com/seantiz/kiln/internal/ctxlog"
	"github.com/seantiz/kiln/internal/model"
)

// ResourceContext holds resources scoped to one request, created on first use.
type ResourceContext struct {
	mu        sync.Mutex
	resources map[string]any
}

// NewResourceContext returns an empty resource context.
func NewResourceContext() *ResourceContext {
	return &ResourceContext{resources: make(map[string]any)}
}

// GetOrCreate returns the resource stored under name, creating it with create
// if absent.
func (r *ResourceContext) GetOrCreate(name string, create func() any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.resources[name]; ok {
		return v
	}
	v := create()
	r.resources[name] = v
	return v
}

// Get returns the resource stored under name.
func (r *ResourceContext) Get(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.resources[name]
	return v, ok
}

// RequestContext ties one request to the engine and its resources.
type RequestContext struct {
	id        string
	host      *HostContext
	resources *ResourceContext
}

// NewRequestContext creates a request context with a fresh ID.
func NewRequestContext(h *HostContext, resources *ResourceContext) *RequestContext {
	return &RequestContext{
		id:        model.NewID(),
		host:      h,
		resources: resources,
	}
}

// ID returns the request ID.
func (r *RequestContext) ID() string { return r.id }

// Host returns the engine the request runs on.
func (r *RequestContext) Host() *HostContext { return r.host }

// Resources returns the request's resource context.
func (r *RequestContext) Resources() *ResourceContext { return r.resources }

// ExecutionContext is the per-invocation scope passed to Function.Execute.
type ExecutionContext struct {
	req *RequestContext
	ctx context.Context
}

// NewExecutionContext creates an execution context whose Context carries
// logger annotated with the request ID.
func NewExecutionContext(req *RequestContext, logger *slog.Logger) ExecutionContext {
	ctx := ctxlog.WithLogger(context.Background(), logger.With("request_id", req.ID()))
	return ExecutionContext{req: req, ctx: ctx}
}

// Request returns the request context.
func (e ExecutionContext) Request() *RequestContext { return e.req }

// Host returns the engine the execution runs on.
func (e ExecutionContext) Host() *HostContext { return e.req.host }

// Context returns the context handed to kernels. It is never cancelled.
func (e ExecutionContext) Context() context.Context { return e.ctx }
