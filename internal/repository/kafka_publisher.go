package repository

import (
	"context"

	"PredPull/internal/domain/models"
	"PredPull/internal/domain/repository"
	pkgkafka "PredPull/pkg/kafka"
)

// KafkaPublisher fans enriched trades out to a Kafka topic, keyed by market
// id so one market's trades stay ordered within a partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates a Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func tradePayload(t *models.Trade) map[string]interface{} {
	return map[string]interface{}{
		"protocol": t.Protocol,
		"tradeId":  t.TradeID,
		"marketId": t.MarketID,
		"assetId":  t.AssetID,
		"side":     t.Side,
		"price":    t.Price,
		"size":     t.Size,
		"ts":       t.Timestamp.Unix(),
	}
}

func (p *KafkaPublisher) PublishTrade(ctx context.Context, t *models.Trade) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.MarketID), tradePayload(t))
}

func (p *KafkaPublisher) PublishTrades(ctx context.Context, trades []*models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(trades))
	for i, t := range trades {
		msgs[i] = pkgkafka.Message{Key: []byte(t.MarketID), Value: tradePayload(t)}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
