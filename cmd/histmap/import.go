package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/history-map/internal/infrastructure/parsers"
)

func newImportCmd() *cobra.Command {
	var (
		format string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import events from a JSON, CSV or field::value file",
		Long: "Parses every record in the file; if any record is invalid nothing is imported. " +
			"The format is taken from the file extension unless --format is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			parser := parsers.ForFile(path)
			if format != "" {
				parser = parsers.ForFormat(format)
			}
			if parser == nil {
				return fmt.Errorf("cannot determine format of %s (use --format json, csv or manual)", path)
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening file: %w", err)
			}
			defer f.Close()

			ctx := cmd.Context()
			return withWorkspace(ctx, func(d *Deps) error {
				review, err := d.Workspace.Import(f, parser)
				if err != nil {
					return fmt.Errorf("importing %s: %w", path, err)
				}
				return resolveReview(ctx, d.Workspace, review, yes)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Input format (json, csv, manual)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Import every record without asking")

	return cmd
}
