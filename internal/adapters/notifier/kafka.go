package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/fleetledger/internal/domain/model"
)

// KafkaConfig contains configurable parameters for the Kafka center.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses (host:port).
	Brokers []string

	// Topic receives one message per notification.
	Topic string

	// MaxAttempts defaults to 3 if <= 0.
	MaxAttempts int

	// WriteTimeout is the per-attempt timeout. Defaults to 10s if zero.
	WriteTimeout time.Duration
}

// MessageWriter is the subset of *kafka.Writer used by the center.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes notifications as JSON keyed by driver id, so one driver's
// notifications land on the same partition in order.
type Kafka struct {
	writer       MessageWriter
	maxAttempts  int
	writeTimeout time.Duration
	backoff      time.Duration
}

// NewKafka builds a Kafka center on a kafka-go Writer.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
	}
	return NewKafkaWithWriter(w, cfg.MaxAttempts, cfg.WriteTimeout), nil
}

// NewKafkaWithWriter wraps an existing writer.
func NewKafkaWithWriter(w MessageWriter, maxAttempts int, writeTimeout time.Duration) *Kafka {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Kafka{writer: w, maxAttempts: maxAttempts, writeTimeout: writeTimeout, backoff: 100 * time.Millisecond}
}

// Deliver implements Center. It retries with exponential backoff.
func (k *Kafka) Deliver(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(n.DriverID),
		Value: value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(n.Type)},
			{Key: "priority", Value: []byte(n.Priority)},
		},
	}

	var lastErr error
	backoff := k.backoff
	for attempt := 1; attempt <= k.maxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, k.writeTimeout)
		err := k.writer.WriteMessages(actx, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == k.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("produce notification: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("produce failed after %d attempts: %w", k.maxAttempts, lastErr)
}

// Close shuts down the underlying writer.
func (k *Kafka) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
