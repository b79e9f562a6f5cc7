package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	pub := new(publisherMock)
	emitter := NewAuditEmitter(pub, "audit.chat", "chat-sync", "test")

	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(e AuditEnvelope) bool {
		return e.Service == "chat-sync" && e.UserID == "u1" && e.Payload.Text == "login" &&
			e.Payload.IP == "1.2.3.4" && e.Payload.Action == "auth.login" && e.Payload.Level == "WARN"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), AuditRecord{
		Level:     "warn",
		Action:    "auth.login",
		Text:      "login",
		RequestID: "req-1",
		UserID:    "u1",
		IP:        "1.2.3.4",
	})
	pub.AssertExpectations(t)
}

func TestNilAuditEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() { emitter.Emit(context.Background(), AuditRecord{Text: "x"}) })
}

func TestAuditPublishFailureIsSwallowed(t *testing.T) {
	pub := new(publisherMock)
	emitter := NewAuditEmitter(pub, "audit.chat", "chat-sync", "test")
	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(e AuditEnvelope) bool {
		return e.Payload.Level == "INFO"
	})).Return(assert.AnError).Once()

	assert.NotPanics(t, func() { emitter.Emit(context.Background(), AuditRecord{Text: "x"}) })
	pub.AssertExpectations(t)
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "", "chat-sync", "test")
	assert.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
