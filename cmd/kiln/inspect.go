package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zclconf/go-cty/cty"

	"github.com/seantiz/kiln/internal/artifact"
	"github.com/seantiz/kiln/internal/host"
	"github.com/seantiz/kiln/internal/kernel"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect ARTIFACT",
		Short: "Open an artifact and list its functions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0])
		},
	}
}

func runInspect(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	reg := kernel.NewRegistry()
	kernel.RegisterStaticKernels(reg)
	diag := func(d host.Diagnostic) {
		fmt.Fprintln(cmd.ErrOrStderr(), "diagnostic:", d.Message)
	}

	buf := artifact.NewAlignedBuffer(host.NewMallocAllocator(), data)
	f, err := artifact.Open(buf, reg, diag)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %d bytes, debug info: %t\n", path, buf.Len(), f.HasDebugInfo())
	for _, name := range f.FunctionNames() {
		fn := f.GetFunction(name)
		fmt.Fprintf(w, "  %s(%s) -> (%s)\n", name, typeList(fn.ArgumentTypes()), typeList(fn.ResultTypes()))
	}
	return nil
}

func typeList(types []cty.Type) string {
	names := make([]string, len(types))
	for i, ty := range types {
		names[i] = ty.FriendlyName()
	}
	return strings.Join(names, ", ")
}
