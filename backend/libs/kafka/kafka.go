package kafka

import (
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const defaultWriteTimeout = 5 * time.Second

// ReaderOptions describes a consumer-group reader.
type ReaderOptions struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader builds a consumer-group reader that starts from the earliest offset
// on first join. Offsets are committed explicitly by the caller.
func NewReader(opts ReaderOptions) (*kafka.Reader, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if strings.TrimSpace(opts.Topic) == "" {
		return nil, errors.New("kafka: topic must not be empty")
	}
	if strings.TrimSpace(opts.GroupID) == "" {
		return nil, errors.New("kafka: consumer group must not be empty")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        opts.Brokers,
		GroupID:        opts.GroupID,
		Topic:          opts.Topic,
		StartOffset:    kafka.FirstOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	}), nil
}

// NewWriter builds a synchronous writer that partitions by message key.
func NewWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka: topic must not be empty")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           defaultWriteTimeout,
		AllowAutoTopicCreation: true,
	}, nil
}
