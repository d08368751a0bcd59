package artifact_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/seantiz/kiln/internal/artifact"
	"github.com/seantiz/kiln/internal/host"
	"github.com/seantiz/kiln/internal/kernel"
	"github.com/seantiz/kiln/internal/program"
)

// diagRecorder collects diagnostics for assertions.
type diagRecorder struct {
	mu    sync.Mutex
	diags []host.Diagnostic
}

func (r *diagRecorder) handle(d host.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
}

func (r *diagRecorder) all() []host.Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]host.Diagnostic(nil), r.diags...)
}

func newTestHost(t *testing.T) (*host.HostContext, *diagRecorder) {
	t.Helper()
	rec := &diagRecorder{}
	h := host.New(rec.handle, host.NewMallocAllocator(), host.NewMultiThreadedWorkQueue(2, 4))
	kernel.RegisterStaticKernels(h.Registry())
	t.Cleanup(h.Close)
	return h, rec
}

func mustParse(t *testing.T, src string) *program.Module {
	t.Helper()
	m, err := program.Parse("test.hcl", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func mustCompile(t *testing.T, src string, strip bool) []byte {
	t.Helper()
	data, err := artifact.Compile(mustParse(t, src), strip)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return data
}

func mustOpen(t *testing.T, h *host.HostContext, src string) *artifact.File {
	t.Helper()
	buf := artifact.NewAlignedBuffer(h.Allocator(), mustCompile(t, src, false))
	f, err := artifact.Open(buf, h.Registry(), h.DiagHandler())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return f
}

const addProgram = `
function "add" {
  argument "x" {
    type = number
  }
  argument "y" {
    type = number
  }

  op "sum" {
    kernel = "kiln.add"
    args   = ["x", "y"]
  }

  result {
    type  = number
    value = "sum"
  }
}
`

const tagProgram = `
function "tagged" {
  op "tag" {
    kernel = "kiln.constant"
    attrs  = { value = "v1" }
  }

  result {
    type  = string
    value = "tag"
  }
}
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
