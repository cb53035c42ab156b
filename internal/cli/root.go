package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sjperalta/fintera-ledger/internal/app"
	"github.com/sjperalta/fintera-ledger/internal/config"
	"github.com/sjperalta/fintera-ledger/internal/tenant"
	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Opener builds the runtime a command works against
type Opener func(ctx context.Context) (*app.App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	Tenant string
	UserID uint

	open Opener
}

// NewRootCommand creates the ledgerctl root command, wired to the
// configured database.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openFromEnv)
}

func newRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the Fintera ledger",
		Long:          "Run reconciliation scans, seed charts and rules, and fire rules from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Tenant, "tenant", "t", os.Getenv("FINTERA_TENANT"), "tenant to act on")
	cmd.PersistentFlags().UintVar(&opts.UserID, "user", 0, "user id recorded in the audit trail")

	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newAccountsCommand(opts))
	cmd.AddCommand(newRulesCommand(opts))
	cmd.AddCommand(newEventsCommand(opts))
	cmd.AddCommand(newCorrectionsCommand(opts))

	return cmd
}

func openFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// stdout carries command output
	logger.SetupWriter(os.Stderr, cfg.Environment, cfg.LogLevel)
	return app.New(ctx, cfg)
}

var errNoTenant = errors.New("a tenant is required (--tenant or FINTERA_TENANT)")

// withApp opens the runtime, runs fn under the tenant and prints its result.
func (o *RootOptions) withApp(cmd *cobra.Command, needTenant bool, fn func(ctx context.Context, a *app.App) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if needTenant {
		if o.Tenant == "" {
			return errNoTenant
		}
		ctx = tenant.WithTenantID(ctx, o.Tenant)
	}

	a, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := fn(ctx, a)
	if err != nil {
		return err
	}
	return o.print(cmd.OutOrStdout(), out)
}

func (o *RootOptions) print(w io.Writer, v any) error {
	if v == nil {
		return nil
	}
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	// text output is YAML of the JSON shape, so field names match
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}
