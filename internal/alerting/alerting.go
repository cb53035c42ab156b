// Package alerting forwards conditions an operator must look at (slow rule
// executions, refused unbalanced postings, critical reconciliation findings)
// to Sentry and the structured log.
package alerting

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

// Level is the urgency of an alert
type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// Alert is one operator-facing notification
type Alert struct {
	Title    string
	Level    Level
	TenantID string
	Tags     map[string]string
	Extra    map[string]any
}

// Notifier delivers alerts
type Notifier interface {
	Notify(ctx context.Context, a Alert)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, a Alert)

func (f NotifierFunc) Notify(ctx context.Context, a Alert) { f(ctx, a) }

// LogNotifier writes alerts to slog
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, a Alert) {
	l := n.Logger
	if l == nil {
		l = logger.Log
	}
	attrs := []any{slog.String("alert", a.Title), slog.String("level", string(a.Level))}
	if a.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", a.TenantID))
	}
	for k, v := range a.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range a.Extra {
		attrs = append(attrs, slog.Any(k, v))
	}
	if a.Level == LevelWarning {
		l.WarnContext(ctx, "Alert raised", attrs...)
		return
	}
	l.ErrorContext(ctx, "Alert raised", attrs...)
}

// SentryNotifier captures alerts as Sentry messages. It is only useful after
// sentry.Init has been called with a DSN.
type SentryNotifier struct{}

func (SentryNotifier) Notify(ctx context.Context, a Alert) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(a.Level))
		if a.TenantID != "" {
			scope.SetTag("tenant_id", a.TenantID)
		}
		scope.SetTags(a.Tags)
		if len(a.Extra) > 0 {
			scope.SetContext("alert", sentry.Context(a.Extra))
		}
		hub.CaptureMessage(a.Title)
	})
}

func sentryLevel(l Level) sentry.Level {
	switch l {
	case LevelWarning:
		return sentry.LevelWarning
	case LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelError
	}
}

// Multi fans an alert out to several notifiers
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Alert) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, a)
		}
	}
}

// New returns the notifier for the process: slog always, Sentry when enabled.
func New(sentryEnabled bool) Notifier {
	if sentryEnabled {
		return Multi{LogNotifier{}, SentryNotifier{}}
	}
	return LogNotifier{}
}
