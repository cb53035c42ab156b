package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sjperalta/fintera-ledger/internal/app"
)

func newReconcileCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Scan the ledger for integrity problems",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "duplicates",
		Short: "Flag near-identical entries posted on the same day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, true, func(ctx context.Context, a *app.App) (any, error) {
				return a.Services.Reconciliation.DetectDuplicateEntries(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unbalanced",
		Short: "Flag entries whose stored totals disagree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, true, func(ctx context.Context, a *app.App) (any, error) {
				return a.Services.Reconciliation.DetectUnbalancedEntries(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "all-tenants",
		Short: "Run both scans for every tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, false, func(ctx context.Context, a *app.App) (any, error) {
				return nil, a.Services.Reconciliation.RunAllTenants(ctx)
			})
		},
	})

	return cmd
}
