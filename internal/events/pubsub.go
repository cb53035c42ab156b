package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

// PubSubConfig locates the subscription upstream services publish to
type PubSubConfig struct {
	ProjectID       string
	Subscription    string
	CredentialsJSON string
}

// PubSubSource pulls business events from a Pub/Sub subscription and
// publishes them on the bus. Messages whose failure is permanent are acked so
// they are not redelivered forever; transient failures are nacked and retried,
// which is safe because postings are idempotent per reference.
type PubSubSource struct {
	client      *pubsub.Client
	sub         *pubsub.Subscription
	bus         Bus
	isPermanent func(error) bool
	now         func() time.Time
	log         *slog.Logger
}

// NewPubSubSource opens a client for cfg. It uses Application Default
// Credentials unless CredentialsJSON is provided.
func NewPubSubSource(ctx context.Context, cfg PubSubConfig, bus Bus, isPermanent func(error) bool) (*PubSubSource, error) {
	if cfg.ProjectID == "" || cfg.Subscription == "" {
		return nil, errors.New("pubsub: project id and subscription are required")
	}
	var (
		client *pubsub.Client
		err    error
	)
	if cfg.CredentialsJSON != "" {
		client, err = pubsub.NewClient(ctx, cfg.ProjectID, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	} else {
		client, err = pubsub.NewClient(ctx, cfg.ProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("pubsub: new client: %w", err)
	}
	src := newSource(bus, isPermanent)
	src.client = client
	src.sub = client.Subscription(cfg.Subscription)
	return src, nil
}

func newSource(bus Bus, isPermanent func(error) bool) *PubSubSource {
	if isPermanent == nil {
		isPermanent = func(error) bool { return false }
	}
	return &PubSubSource{
		bus:         bus,
		isPermanent: isPermanent,
		now:         time.Now,
		log:         logger.With("pubsub_source"),
	}
}

// Run receives until ctx is cancelled
func (s *PubSubSource) Run(ctx context.Context) error {
	s.log.Info("Receiving business events", "subscription", s.sub.ID())
	err := s.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if s.dispatch(ctx, m.Data, m.Attributes) {
			m.Ack()
		} else {
			m.Nack()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pubsub: receive: %w", err)
	}
	return nil
}

// Close releases the client
func (s *PubSubSource) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// dispatch decodes and publishes one message and reports whether it should be acked.
func (s *PubSubSource) dispatch(ctx context.Context, data []byte, attrs map[string]string) bool {
	ev, err := Decode(data)
	if err != nil {
		s.log.Error("Dropping undecodable message", "error", err)
		return true
	}
	if ev.TenantID == "" {
		ev.TenantID = attrs["tenant_id"]
	}
	if ev.Trigger == "" {
		ev.Trigger = attrs["trigger"]
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	if err := ev.Validate(); err != nil {
		s.log.Error("Dropping invalid event", "error", err, "event_id", ev.ID)
		return true
	}

	if err := s.bus.Publish(ctx, ev); err != nil {
		if s.isPermanent(err) {
			s.log.Warn("Event failed permanently, acking", "event_id", ev.ID, "trigger", ev.Trigger, "error", err)
			return true
		}
		s.log.Error("Event failed, will retry", "event_id", ev.ID, "trigger", ev.Trigger, "error", err)
		return false
	}
	return true
}
