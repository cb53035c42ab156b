package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sjperalta/fintera-ledger/internal/app"
)

func newAccountsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Create accounts from an XLSX workbook",
		Long: `Create accounts from the first sheet of an XLSX workbook.

The header row names the columns: code, name, type (required), then
category, parent_code, allow_posting and is_active. Bad rows are reported
and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, true, func(ctx context.Context, a *app.App) (any, error) {
				f, err := os.Open(args[0])
				if err != nil {
					return nil, fmt.Errorf("open workbook: %w", err)
				}
				defer f.Close()
				return a.Services.Account.ImportXLSX(ctx, opts.UserID, f)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "trial-balance",
		Short: "Sum posted activity per account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, true, func(ctx context.Context, a *app.App) (any, error) {
				return a.Services.Account.TrialBalance(ctx)
			})
		},
	})

	return cmd
}
