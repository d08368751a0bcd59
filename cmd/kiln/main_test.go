package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testProgram = `
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

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "add.hcl")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write program: %v", err)
	}
	return path
}

func TestCompileAndInspect(t *testing.T) {
	path := writeProgram(t, testProgram)

	out, _, err := run(t, "compile", path, "--name", "add")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	artifactPath := strings.TrimSuffix(path, ".hcl") + ".kiln"
	if !strings.Contains(out, artifactPath) {
		t.Errorf("compile output = %q, want it to name %s", out, artifactPath)
	}

	out, _, err = run(t, "inspect", artifactPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, "add(number, number) -> (number)") {
		t.Errorf("inspect output = %q", out)
	}
	if !strings.Contains(out, "debug info: true") {
		t.Errorf("inspect output = %q, want debug info", out)
	}
}

func TestCompileStrip(t *testing.T) {
	path := writeProgram(t, testProgram)
	out := filepath.Join(t.TempDir(), "stripped.bin")

	if _, _, err := run(t, "compile", path, "--strip", "--out", out); err != nil {
		t.Fatalf("compile: %v", err)
	}
	stdout, _, err := run(t, "inspect", out)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(stdout, "debug info: false") {
		t.Errorf("inspect output = %q, want no debug info", stdout)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		args []string
	}{
		{name: "missing function name", src: testProgram, args: []string{"--name", "other"}},
		{name: "parse error", src: `function "add" {`},
		{name: "invalid program", src: `function "add" {
  result {
    value = "missing"
  }
}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeProgram(t, tt.src)
			args := append([]string{"compile", path}, tt.args...)
			if _, _, err := run(t, args...); err == nil {
				t.Fatal("compile succeeded, want error")
			}
			if _, err := os.Stat(strings.TrimSuffix(path, ".hcl") + ".kiln"); !os.IsNotExist(err) {
				t.Error("artifact written despite error")
			}
		})
	}
}

func TestInspectInvalidArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.kiln")
	if err := os.WriteFile(path, []byte("not an artifact"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, stderr, err := run(t, "inspect", path)
	if err == nil {
		t.Fatal("inspect succeeded, want error")
	}
	if !strings.Contains(stderr, "diagnostic:") {
		t.Errorf("stderr = %q, want a diagnostic", stderr)
	}
}
