package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/marmos91/filedepot/internal/logger"
)

// DefaultKafkaTopic receives audit events unless configured otherwise.
const DefaultKafkaTopic = "filedepot-audit"

// KafkaConfig contains configuration for the Kafka audit sink.
type KafkaConfig struct {
	// Brokers is the bootstrap broker list (host:port)
	Brokers []string `mapstructure:"brokers"`

	// Topic receives the events (default DefaultKafkaTopic)
	Topic string `mapstructure:"topic"`
}

// KafkaRecorder ships audit events to a Kafka topic as JSON.
//
// Writes are asynchronous: the writer batches events and delivers in the
// background, and delivery failures are logged through the writer's
// completion callback. Requests never wait on the broker.
type KafkaRecorder struct {
	writer *kafka.Writer
}

// NewKafkaRecorder creates the recorder. The connection is lazy; broker
// problems surface in the completion callback, not here.
func NewKafkaRecorder(cfg KafkaConfig) (*KafkaRecorder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka audit recorder: brokers are required")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultKafkaTopic
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("audit: failed to deliver %d event(s) to kafka: %v", len(messages), err)
			}
		},
	}
	return &KafkaRecorder{writer: writer}, nil
}

func (r *KafkaRecorder) Record(ctx context.Context, event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		logger.Warn("audit: failed to encode event: %v", err)
		return
	}

	// Keying by actor keeps one user's trail ordered within a partition
	key := event.ActorID
	if key == "" {
		key = string(event.Action)
	}

	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		// Async writers only fail here when closed or misconfigured
		logger.Warn("audit: failed to enqueue event: %v", err)
	}
}

// Close flushes buffered events and shuts the writer down.
func (r *KafkaRecorder) Close() error {
	return r.writer.Close()
}
