package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-sync/internal/logger"
)

// ErrClosed is returned once the broker connection is gone.
var ErrClosed = errors.New("rabbitmq publisher closed")

// Publisher publishes domain and audit events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Options configures Dial.
type Options struct {
	URL      string
	Exchange string
	// ConfirmTimeout bounds the wait for a broker ack. Zero disables
	// publisher confirms.
	ConfirmTimeout time.Duration
}

// Dial connects to RabbitMQ and declares the topic exchange. Any failure
// yields a noop publisher so the service runs without a broker.
func Dial(opts Options) Publisher {
	if opts.URL == "" {
		logger.Log.Info("rabbitmq disabled, using noop", zap.String("reason", "empty amqp url"))
		return noopPublisher{reason: "empty amqp url"}
	}

	p, err := dial(opts)
	if err != nil {
		logger.Log.Warn("rabbitmq disabled, using noop", zap.Error(err))
		return noopPublisher{reason: err.Error()}
	}
	logger.Log.Info("rabbitmq connected",
		zap.String("exchange", opts.Exchange),
		zap.Bool("confirms", p.confirms))
	return p
}

func dial(opts Options) (*amqpPublisher, error) {
	conn, err := amqp.Dial(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", opts.Exchange, err)
	}

	p := &amqpPublisher{
		conn:           conn,
		ch:             ch,
		exchange:       opts.Exchange,
		confirmTimeout: opts.ConfirmTimeout,
	}
	if opts.ConfirmTimeout > 0 {
		if err := ch.Confirm(false); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("enable confirms: %w", err)
		}
		p.confirms = true
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err := <-closed; err != nil {
			logger.Log.Warn("rabbitmq connection lost", zap.Error(err))
		}
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
	}()
	return p, nil
}

type amqpPublisher struct {
	mu             sync.Mutex
	conn           *amqp.Connection
	ch             *amqp.Channel
	exchange       string
	confirms       bool
	confirmTimeout time.Duration
	closed         bool
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         body,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		logger.Log.Warn("rabbitmq publish failed", zap.String("routing_key", routingKey), zap.Error(err))
		return err
	}
	if confirm == nil {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()
	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s", routingKey)
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}

// headerCarrier adapts AMQP headers to the otel propagation carrier.
type headerCarrier amqp.Table

func (c headerCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

type noopPublisher struct {
	reason string
}

func (noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	logger.Log.Debug("rabbitmq noop publish", zap.String("routing_key", routingKey))
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// Mode reports "amqp" or "noop" and, for noop, why.
func Mode(p Publisher) (mode, reason string) {
	switch pub := p.(type) {
	case *amqpPublisher:
		return "amqp", ""
	case noopPublisher:
		return "noop", pub.reason
	default:
		return "unknown", ""
	}
}
