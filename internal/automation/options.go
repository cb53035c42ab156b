package automation

import (
	"log/slog"
	"time"

	"github.com/sjperalta/fintera-ledger/internal/alerting"
	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

type options struct {
	clock         clock.Clock
	logger        *slog.Logger
	notifier      alerting.Notifier
	slowThreshold time.Duration
	maxParallel   int
}

// Option configures the engine and its tracker
type Option func(*options)

// WithClock sets the time source used for timestamps and durations
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the component logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNotifier sets where alert candidates are sent
func WithNotifier(n alerting.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithSlowThreshold flags executions slower than d. Zero disables the check.
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) { o.slowThreshold = d }
}

// WithMaxParallel bounds how many rules run at once for one event
func WithMaxParallel(n int) Option {
	return func(o *options) { o.maxParallel = n }
}

func buildOptions(opts []Option) options {
	o := options{
		clock:       clock.System(),
		maxParallel: 4,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.With("automation")
	}
	if o.notifier == nil {
		o.notifier = alerting.LogNotifier{Logger: o.logger}
	}
	if o.maxParallel < 1 {
		o.maxParallel = 1
	}
	return o
}
