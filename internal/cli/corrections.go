package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sjperalta/fintera-ledger/internal/app"
)

func newCorrectionsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corrections",
		Short: "Inspect reconciliation findings",
	}

	var (
		format string
		dir    string
		status string
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Write findings to a CSV or XLSX file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "csv" && format != "xlsx" {
				return fmt.Errorf("invalid export format %q: must be csv or xlsx", format)
			}
			return opts.withApp(cmd, true, func(ctx context.Context, a *app.App) (any, error) {
				filters := map[string]string{}
				if status != "" {
					filters["status"] = status
				}
				var (
					data     []byte
					filename string
					err      error
				)
				if format == "xlsx" {
					data, filename, err = a.Services.Export.CorrectionsXLSX(ctx, filters)
				} else {
					data, filename, err = a.Services.Export.CorrectionsCSV(ctx, filters)
				}
				if err != nil {
					return nil, err
				}
				path := filepath.Join(dir, filename)
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return nil, fmt.Errorf("write export: %w", err)
				}
				return map[string]any{"file": path, "bytes": len(data)}, nil
			})
		},
	}
	export.Flags().StringVar(&format, "as", "csv", "file format (csv|xlsx)")
	export.Flags().StringVarP(&dir, "dir", "d", ".", "directory to write into")
	export.Flags().StringVar(&status, "status", "", "only findings in this status")
	cmd.AddCommand(export)

	return cmd
}
