package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sjperalta/fintera-ledger/internal/app"
	"github.com/sjperalta/fintera-ledger/internal/events"
)

// EventOutput summarizes how the engine handled a published event
type EventOutput struct {
	EventID  string      `json:"event_id"`
	Trigger  string      `json:"trigger"`
	EntryIDs []uint      `json:"entry_ids"`
	Outcomes []RunOutput `json:"outcomes"`
}

func newEventsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Feed business events to the rule engine",
	}

	var payload string
	publish := &cobra.Command{
		Use:   "publish <trigger>",
		Short: "Process one event through every active rule for its trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePayload(payload)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, true, func(ctx context.Context, a *app.App) (any, error) {
				report, err := a.Engine.ProcessEvent(ctx, events.New(opts.Tenant, args[0], p, time.Now().UTC()))
				if err != nil {
					return nil, err
				}
				out := EventOutput{EventID: report.EventID, Trigger: report.Trigger, EntryIDs: report.EntryIDs()}
				for _, o := range report.Outcomes {
					out.Outcomes = append(out.Outcomes, runOutput(o.Result, o.Err))
				}
				return out, nil
			})
		},
	}
	publish.Flags().StringVarP(&payload, "payload", "p", "{}", "event payload as a JSON object")
	cmd.AddCommand(publish)

	return cmd
}
