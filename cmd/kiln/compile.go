package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seantiz/kiln/internal/artifact"
	"github.com/seantiz/kiln/internal/program"
)

// artifactExt is the default extension for compiled artifacts.
const artifactExt = ".kiln"

type compileOptions struct {
	name  string
	out   string
	strip bool
}

func newCompileCommand() *cobra.Command {
	opts := &compileOptions{}

	cmd := &cobra.Command{
		Use:   "compile FILE",
		Short: "Compile a program file into a binary artifact",
		Long: `Compile parses an HCL program file and writes its binary artifact.

With --name the program must define a function of that name, which is what
the server requires of a program registered under that name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "program identity the file will be registered under")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output path (default FILE with "+artifactExt+" extension)")
	cmd.Flags().BoolVar(&opts.strip, "strip", false, "omit optional sections such as debug info")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *compileOptions, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read program: %w", err)
	}
	m, err := program.Parse(path, src)
	if err != nil {
		return err
	}
	if opts.name != "" && m.Function(opts.name) == nil {
		return fmt.Errorf("%s defines no function %q", path, opts.name)
	}

	data, err := artifact.Compile(m, opts.strip)
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + artifactExt
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes, %d functions)\n", out, len(data), len(m.Functions))
	return nil
}
