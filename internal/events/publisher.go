package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wareflow/inventory-service/internal/pkg/broker"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
	"go.uber.org/zap"
)

// Publisher emits engine events after the owning transaction has committed.
// Delivery is best effort; failures are logged, never propagated.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload interface{})
}

type KafkaPublisher struct {
	producer *broker.KafkaProducer
	logger   logger.ZapLogger
}

func NewKafkaPublisher(producer *broker.KafkaProducer, log logger.ZapLogger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		logger:   log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) {
	event := Event{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	if err := p.producer.Publish(ctx, []byte(key), data); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// NopPublisher is used when the broker is disabled and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) {}
