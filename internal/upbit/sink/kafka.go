package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"upbitwatch/internal/upbit/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const kafkaTimeout = 5 * time.Second

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a writer that batches per cycle and keys by symbol,
// so every market keeps partition ordering.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// Kafka exports one message per market per cycle.
type Kafka struct {
	writer MessageWriter
	logger *zap.Logger
}

func NewKafka(writer MessageWriter, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Kafka{writer: writer, logger: logger}
}

// OnUpdate is an eventbus handler.
func (k *Kafka) OnUpdate(ev model.UpdateEvent) error {
	if len(ev.Deltas) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(ev.Deltas))
	for _, u := range priceUpdates(ev) {
		payload, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("encode %s: %w", u.Symbol, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(u.Symbol),
			Value: payload,
			Time:  ev.At,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), kafkaTimeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write at cycle %d: %w", ev.Cycle, err)
	}
	k.logger.Debug("kafka exported", zap.Uint64("cycle", ev.Cycle), zap.Int("messages", len(msgs)))
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
