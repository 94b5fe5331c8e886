package repository

import (
	"context"

	"ScanRunner/internal/domain/models"
	domrepo "ScanRunner/internal/domain/repository"
	pkgkafka "ScanRunner/pkg/kafka"
)

// KafkaSignalPublisher implements SignalPublisher for Kafka. Messages are
// keyed by ticker so one symbol's signals stay ordered per partition.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) domrepo.SignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s models.AggregatedSignal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Ticker), signalPayload(s))
}

func (p *KafkaSignalPublisher) PublishBatch(ctx context.Context, signals []models.AggregatedSignal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(signals))
	for i, s := range signals {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(s.Ticker),
			Value: signalPayload(s),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func signalPayload(s models.AggregatedSignal) map[string]interface{} {
	return map[string]interface{}{
		"ticker":         s.Ticker,
		"date":           s.Date,
		"method":         s.Method,
		"confidence":     s.Confidence,
		"signal_count":   s.SignalCount,
		"weighted_score": s.WeightedScore,
		"scanners":       s.ContributingScanners,
		"data":           s.Data,
	}
}
