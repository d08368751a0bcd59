// Package host provides the execution engine that compiled functions run on:
// a two-pool work queue, an aligned allocator, the kernel registry, and the
// diagnostic sink, bundled into a HostContext that is constructed once and
// passed explicitly to everything that needs it.
package host
