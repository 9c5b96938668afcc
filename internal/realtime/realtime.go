// Package realtime fans committed events out to the message broker so
// dashboards and downstream consumers see activity as it happens.
// Delivery is best-effort: a broker outage never blocks or fails event
// persistence.
package realtime

import (
	"context"
	"encoding/json"

	"github.com/lovendo/analytics-service/common/logging"
	"github.com/lovendo/analytics-service/common/messaging"
	"github.com/lovendo/analytics-service/internal/metrics"
	"github.com/lovendo/analytics-service/internal/models"
)

type Publisher struct {
	client messaging.Publisher
	logger *logging.Logger
}

func NewPublisher(client messaging.Publisher, logger *logging.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// EventsCommitted publishes each event to its per-name subject. Failures
// are logged and skipped; the batch is already durable.
func (p *Publisher) EventsCommitted(ctx context.Context, events []*models.Event) {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			p.logger.WarnContext(ctx, "failed to encode event for realtime stream",
				logging.Event(e.Name), logging.Error(err))
			continue
		}
		subject := messaging.EventIngestedSubject(e.Name)
		if err := p.client.Publish(ctx, subject, data); err != nil {
			p.logger.WarnContext(ctx, "failed to publish event to realtime stream",
				logging.Event(e.Name), logging.Error(err))
			continue
		}
		metrics.RealtimePublished.Inc()
	}
}

// EventHandler receives one decoded event from the realtime stream.
type EventHandler func(ctx context.Context, event *models.Event)

// Subscriber delivers the live event stream to in-process consumers.
type Subscriber struct {
	client messaging.Subscriber
	logger *logging.Logger
}

func NewSubscriber(client messaging.Subscriber, logger *logging.Logger) *Subscriber {
	return &Subscriber{client: client, logger: logger}
}

// Subscribe delivers events as they are committed. An empty name receives
// every event; otherwise only events with that name. A non-empty userID
// further restricts delivery to that user's events. Undecodable payloads
// are dropped with a log line. Unsubscribing tears down the returned
// subscription.
func (s *Subscriber) Subscribe(name, userID string, handler EventHandler) (messaging.Subscription, error) {
	subject := messaging.EventIngestedWildcard()
	if name != "" {
		subject = messaging.EventIngestedSubject(name)
	}
	return s.client.Subscribe(subject, func(ctx context.Context, msg *messaging.Message) error {
		var event models.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.WarnContext(ctx, "dropping undecodable realtime event", logging.Error(err))
			return nil
		}
		if userID != "" && event.UserID != userID {
			return nil
		}
		handler(ctx, &event)
		return nil
	})
}
