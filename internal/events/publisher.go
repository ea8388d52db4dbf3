package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic = "imaginify.images"

	TypeImageSaved        = "image.saved"
	TypeImageDeleted      = "image.deleted"
	TypeExportQueued      = "image.export_queued"
	TypeImageExported     = "image.exported"
	TypeImageExportFailed = "image.export_failed"
)

// Event is an image lifecycle notification.
type Event struct {
	Type       string    `json:"type"`
	ImageID    string    `json:"image_id"`
	Owner      string    `json:"owner,omitempty"`
	Status     string    `json:"status,omitempty"`
	ObjectKey  string    `json:"object_key,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// New returns a kafka-backed publisher, or a publisher that only logs when
// no brokers are configured.
func New(brokers []string, topic string, logger zerolog.Logger) Publisher {
	addrs := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return LogPublisher{logger: logger}
	}
	if topic == "" {
		topic = DefaultTopic
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(addrs...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic:  topic,
		logger: logger,
	}
}

// Publish writes event keyed by image id, so events for one image stay in
// order on one partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ImageID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}

	p.logger.Debug().Str("topic", p.topic).Str("type", event.Type).Str("image_id", event.ImageID).Msg("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func (p LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Debug().Str("type", event.Type).Str("image_id", event.ImageID).Msg("event dropped; no broker configured")
	return nil
}

func (LogPublisher) Close() error { return nil }
