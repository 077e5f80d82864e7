package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mark3labs/swagger2k6/internal/spec"
)

var listRunner = runList

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the operations a generate run would cover",
		Long:  "Resolve the document and print every selected operation in generation order without writing anything.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Stdout, cfg.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return listRunner(cmd.Context(), cfg)
		},
	}
	addSelectionFlags(cmd.Flags())
	return cmd
}

func runList(ctx context.Context, cfg *GenerateConfig) error {
	stdout, stderr := cfg.writers()
	logger := newLogger(stderr, cfg.Verbose)

	doc, err := spec.Resolve(ctx, cfg.Input, append(cfg.resolveOptions(), spec.WithLogger(logger))...)
	if err != nil {
		return describeLoadError(err)
	}
	ops := spec.Extract(doc, cfg.extractOptions()...)
	printOperations(stdout, doc, ops, newPalette(colorEnabled(stdout, cfg.NoColor)))
	return nil
}

func printOperations(w io.Writer, doc *spec.Document, ops []spec.Operation, colors *palette) {
	fmt.Fprintf(w, "Base URL: %s\n", doc.BaseURL)
	for _, op := range ops {
		colors.method.Fprintf(w, "%-7s ", op.Method)
		colors.path.Fprint(w, op.Path)
		if op.HasBody() {
			colors.dim.Fprint(w, " [body]")
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d operation(s)\n", len(ops))
}
