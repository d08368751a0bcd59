package host

import (
	"github.com/seantiz/kiln/internal/kernel"
)

// HostContext is the execution engine: it owns the work queue, the allocator,
// the kernel registry and the diagnostic sink. One HostContext owns its work
// queue exclusively; callers must not share a queue between engines.
type HostContext struct {
	diag      DiagHandler
	allocator Allocator
	queue     WorkQueue
	registry  *kernel.Registry
}

// New creates an engine from its collaborators. The kernel registry starts
// empty.
func New(diag DiagHandler, alloc Allocator, queue WorkQueue) *HostContext {
	if diag == nil {
		diag = func(Diagnostic) {}
	}
	return &HostContext{
		diag:      diag,
		allocator: alloc,
		queue:     queue,
		registry:  kernel.NewRegistry(),
	}
}

// Registry returns the mutable kernel registry.
func (h *HostContext) Registry() *kernel.Registry { return h.registry }

// Allocator returns the engine's allocator.
func (h *HostContext) Allocator() Allocator { return h.allocator }

// DiagHandler returns the engine's diagnostic sink.
func (h *HostContext) DiagHandler() DiagHandler { return h.diag }

// EmitDiag reports d to the diagnostic sink.
func (h *HostContext) EmitDiag(d Diagnostic) { h.diag(d) }

// EnqueueWork schedules task on a compute worker.
func (h *HostContext) EnqueueWork(task func()) error {
	return h.queue.AddTask(task)
}

// EnqueueBlockingWork schedules task on the blocking pool.
func (h *HostContext) EnqueueBlockingWork(task func()) error {
	return h.queue.AddBlockingTask(task)
}

// Quiesce waits for all scheduled work to finish.
func (h *HostContext) Quiesce() { h.queue.Quiesce() }

// Close drains outstanding work and stops the work queue.
func (h *HostContext) Close() { h.queue.Close() }
