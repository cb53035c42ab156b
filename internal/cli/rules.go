package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sjperalta/fintera-ledger/internal/app"
	"github.com/sjperalta/fintera-ledger/internal/automation"
	"github.com/sjperalta/fintera-ledger/internal/events"
)

// RunOutput is what a manual rule run reports
type RunOutput struct {
	RuleID     uint   `json:"rule_id"`
	EntryID    uint   `json:"entry_id,omitempty"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func runOutput(res automation.Result, err error) RunOutput {
	out := RunOutput{RuleID: res.RuleID, EntryID: res.EntryID, Status: res.Status, DurationMs: res.Duration.Milliseconds()}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func newRulesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage automation rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <rules.yaml>",
		Short: "Upsert rules from a YAML seed file, matched by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, true, func(ctx context.Context, a *app.App) (any, error) {
				f, err := os.Open(args[0])
				if err != nil {
					return nil, fmt.Errorf("open seed file: %w", err)
				}
				defer f.Close()
				return a.Services.Rule.ImportYAML(ctx, opts.UserID, f)
			})
		},
	})

	var payload string
	run := &cobra.Command{
		Use:   "run <rule-id>",
		Short: "Execute one rule now against a JSON payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			p, err := parsePayload(payload)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, true, func(ctx context.Context, a *app.App) (any, error) {
				res, err := a.Services.Rule.ExecuteNow(ctx, opts.UserID, uint(id), p)
				if err != nil && res.Status == "" {
					return nil, err
				}
				return runOutput(res, err), nil
			})
		},
	}
	run.Flags().StringVarP(&payload, "payload", "p", "{}", "event payload as a JSON object")
	cmd.AddCommand(run)

	return cmd
}

func parsePayload(raw string) (events.Payload, error) {
	var p events.Payload
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return p, nil
}
