package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chat-sync/internal/logger"
)

// Publisher is satisfied by rabbitmq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type EventEnvelope struct {
	EventType  string `json:"event_type"`
	EventName  string `json:"event_name"`
	OccurredAt string `json:"occurred_at"`
	TraceID    string `json:"trace_id,omitempty"`
	Payload    any    `json:"payload"`
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent wraps payload in an envelope and publishes it on the domain
// exchange. Without a publisher it does nothing. Errors are logged and
// counted, never returned: events are a side channel.
func PublishEvent(ctx context.Context, eventName string, payload any) {
	if defaultPublisher == nil {
		return
	}

	envelope := EventEnvelope{
		EventType:  "domain_event",
		EventName:  eventName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		envelope.TraceID = sc.TraceID().String()
	}

	if err := defaultPublisher.Publish(ctx, eventName, envelope); err != nil {
		IncAMQPPublishError()
		logger.Log.Warn("event_publish_failed", zap.String("event", eventName), zap.Error(err))
	}
}
