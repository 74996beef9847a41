package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/mopd1/LuckyDeck-clean/internal/core/port"
)

// StubPublisher logs audit events instead of sending them to Kafka. Used
// when no brokers are configured (local development, tests).
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly audit publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

// Publish logs the event at info level.
func (p *StubPublisher) Publish(_ context.Context, event port.AuditEvent) error {
	p.logger.Info("audit event",
		zap.String("action", event.Action),
		zap.Int64("actor_id", event.ActorID),
		zap.Int64("target_id", event.TargetID),
		zap.Any("detail", event.Detail),
	)
	return nil
}

// Close is a no-op for the stub.
func (p *StubPublisher) Close() error {
	return nil
}

var _ port.AuditPublisher = (*StubPublisher)(nil)
