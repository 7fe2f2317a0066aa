// Package events publishes order lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("shopforge/events")

// Publisher sends one event, keyed for partitioning, to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

// New returns a kafka producer, or a no-op publisher when no brokers are configured.
func New(brokers []string) Publisher {
	if len(brokers) == 0 {
		return Noop{}
	}
	return NewProducer(brokers)
}

// DefaultPublishTimeout bounds one Publish call regardless of the caller's deadline.
const DefaultPublishTimeout = 2 * time.Second

type Producer struct {
	writer *kafka.Writer

	// Timeout bounds each Publish; zero means DefaultPublishTimeout.
	Timeout time.Duration
}

// NewProducer builds a writer without a fixed topic; each message names its own.
// Every message is written once, immediately, with no retries.
func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchSize:              1,
			BatchTimeout:           time.Millisecond,
			MaxAttempts:            1,
			RequiredAcks:           kafka.RequireOne,
		},
		Timeout: DefaultPublishTimeout,
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: data}

	ctx, span := tracer.Start(ctx, "send "+topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})

	// detached from the caller: the event follows an already committed write
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (p *Producer) Close() error { return p.writer.Close() }

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }
func (Noop) Close() error                                        { return nil }
