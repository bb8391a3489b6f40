package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LogSink writes purchase requests to the application log. The default
// backend for a single-café install with no purchasing pipeline attached.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, req PurchaseRequest) error {
	s.logger.Info("PURCHASE REQUEST",
		zap.String("supplier", req.SupplierName),
		zap.String("contact", req.SupplierContact),
		zap.String("ingredient", req.IngredientName),
		zap.String("remaining", req.CurrentAmount.String()+" "+req.Unit),
		zap.String("order_amount", req.RestockAmount.String()+" "+req.Unit),
		zap.Time("deadline", req.Deadline))
	return nil
}

// KafkaSink publishes purchase requests as JSON to a reorder topic, keyed
// by ingredient so requests for the same ingredient stay ordered within a
// partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (s *KafkaSink) Notify(ctx context.Context, req PurchaseRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase request: %w", err)
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(req.IngredientName),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish purchase request: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
