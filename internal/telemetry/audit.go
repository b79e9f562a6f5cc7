package telemetry

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chat-sync/internal/logger"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AuditRecord is one account, session or membership action.
type AuditRecord struct {
	Level     string
	Action    string
	Text      string
	RequestID string
	UserID    string
	IP        string
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	TraceID       string       `json:"trace_id,omitempty"`
	UserID        string       `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Action string `json:"action,omitempty"`
	Text   string `json:"text"`
	IP     string `json:"ip,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit logs the record at its level and publishes it. Publish failures are
// logged only.
func (e *AuditEmitter) Emit(ctx context.Context, rec AuditRecord) {
	if e == nil || e.publisher == nil {
		return
	}

	level := strings.ToUpper(rec.Level)
	if level == "" {
		level = "INFO"
	}
	logger.Log.Check(zapLevel(level), "audit").Write(
		zap.String("action", rec.Action),
		zap.String("request_id", rec.RequestID),
		zap.String("user_id", rec.UserID),
		zap.String("text", rec.Text))

	envelope := AuditEnvelope{
		SchemaVersion: 2,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     rec.RequestID,
		UserID:        rec.UserID,
		Payload: AuditPayload{
			Level:  level,
			Action: rec.Action,
			Text:   rec.Text,
			IP:     rec.IP,
		},
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		envelope.TraceID = sc.TraceID().String()
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		logger.Log.Warn("audit_publish_failed", zap.String("action", rec.Action), zap.Error(err))
	}
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
