package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mopd1/LuckyDeck-clean/internal/core/port"
	"github.com/mopd1/LuckyDeck-clean/internal/infra/config"
)

const schemaVersion = "1.0"

// AuditPublisher implements port.AuditPublisher using Kafka. Events are
// delivered asynchronously; admin operations never block on the broker.
type AuditPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewAuditPublisher constructs a Kafka-backed audit publisher.
func NewAuditPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type auditEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	ActorID   int64             `json:"actor_id"`
	TargetID  int64             `json:"target_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Detail    map[string]any    `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Publish delivers an audit event to the admin audit topic.
func (p *AuditPublisher) Publish(ctx context.Context, event port.AuditEvent) error {
	envelope := auditEnvelope{
		EventID:   uuid.NewString(),
		EventType: event.Action,
		ActorID:   event.ActorID,
		TargetID:  event.TargetID,
		Timestamp: time.Now().UTC(),
		Version:   schemaVersion,
		Detail:    event.Detail,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal audit envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName("admin.audit"),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the underlying producer.
func (p *AuditPublisher) Close() error {
	return p.producer.Close()
}

var _ port.AuditPublisher = (*AuditPublisher)(nil)
