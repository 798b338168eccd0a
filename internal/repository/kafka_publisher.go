package repository

import (
	"context"

	"ChainPilot/internal/domain/models"
	domrepo "ChainPilot/internal/domain/repository"
	pkgkafka "ChainPilot/pkg/kafka"
)

// Topics routes each event family to its Kafka topic.
type Topics struct {
	Decisions string
	Orders    string
	Breakers  string
}

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topics   Topics
}

// NewKafkaPublisher creates a Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topics Topics) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, topics: topics}
}

func (p *KafkaPublisher) PublishDecision(ctx context.Context, rec *models.DecisionRecord) error {
	return p.producer.Publish(ctx, p.topics.Decisions, []byte(rec.Wallet), rec)
}

func (p *KafkaPublisher) PublishOrder(ctx context.Context, o *models.Order) error {
	return p.producer.Publish(ctx, p.topics.Orders, []byte(o.Token), o)
}

func (p *KafkaPublisher) PublishBreakerEvent(ctx context.Context, ev *models.BreakerEvent) error {
	return p.producer.Publish(ctx, p.topics.Breakers, []byte(ev.Kind), ev)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
