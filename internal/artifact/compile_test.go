package artifact_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/seantiz/kiln/internal/artifact"
	"github.com/seantiz/kiln/internal/program"
)

func TestCompileHeader(t *testing.T) {
	data := mustCompile(t, addProgram, false)
	if !bytes.HasPrefix(data, []byte("KILN")) {
		t.Fatalf("artifact does not start with magic: %q", data[:8])
	}
	if data[4] != 1 {
		t.Errorf("version = %d, want 1", data[4])
	}
	if data[5] != 0 {
		t.Errorf("flags = %#x, want 0", data[5])
	}
	if len(data)%artifact.Alignment != 0 {
		t.Errorf("artifact length %d is not a multiple of %d", len(data), artifact.Alignment)
	}
}

func TestCompileStripsOptionalSections(t *testing.T) {
	full := mustCompile(t, addProgram, false)
	stripped := mustCompile(t, addProgram, true)

	if stripped[5]&1 == 0 {
		t.Error("stripped artifact does not carry the stripped flag")
	}
	if len(stripped) >= len(full) {
		t.Errorf("stripped artifact is %d bytes, full is %d", len(stripped), len(full))
	}
	if bytes.Contains(stripped, []byte("test.hcl")) {
		t.Error("stripped artifact still carries source locations")
	}
}

func TestCompileDeterministic(t *testing.T) {
	a := mustCompile(t, addProgram, false)
	b := mustCompile(t, addProgram, false)
	if !bytes.Equal(a, b) {
		t.Error("compiling the same module twice produced different bytes")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "no functions",
			src:  `unrelated "block" {}`,
		},
		{
			name: "duplicate function",
			src: `
function "f" {
  op "a" {
    kernel = "kiln.identity"
  }
}
function "f" {
  op "a" {
    kernel = "kiln.identity"
  }
}
`,
		},
		{
			name: "undefined op argument",
			src: `
function "f" {
  op "a" {
    kernel = "kiln.identity"
    args   = ["missing"]
  }
}
`,
		},
		{
			name: "op uses its own value",
			src: `
function "f" {
  op "a" {
    kernel = "kiln.identity"
    args   = ["a"]
  }
}
`,
		},
		{
			name: "value defined twice",
			src: `
function "f" {
  argument "x" {
    type = number
  }
  op "x" {
    kernel = "kiln.identity"
    args   = ["x"]
  }
}
`,
		},
		{
			name: "undefined result",
			src: `
function "f" {
  result {
    value = "nope"
  }
}
`,
		},
		{
			name: "empty kernel",
			src: `
function "f" {
  op "a" {
    kernel = ""
  }
}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := artifact.Compile(mustParse(t, tt.src), false)
			if !errors.Is(err, artifact.ErrInvalidProgram) {
				t.Fatalf("Compile error = %v, want ErrInvalidProgram", err)
			}
		})
	}
}

func TestCompileNilModule(t *testing.T) {
	_, err := artifact.Compile((*program.Module)(nil), false)
	if !errors.Is(err, artifact.ErrInvalidProgram) {
		t.Fatalf("Compile(nil) error = %v, want ErrInvalidProgram", err)
	}
}
