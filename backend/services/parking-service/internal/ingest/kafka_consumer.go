package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads structured sensor messages and commits each offset only after the
// event has been applied or deliberately dropped. A message that keeps failing transiently
// is retried in place, so later messages on the partition wait behind it.
type KafkaConsumer struct {
	reader     messageReader
	proc       *Processor
	retryPause time.Duration
	logger     *zap.Logger
}

// NewKafkaConsumer builds consumer.
func NewKafkaConsumer(reader messageReader, proc *Processor, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     reader,
		proc:       proc,
		retryPause: 2 * time.Second,
		logger:     logger.With(zap.String("component", "kafka")),
	}
}

// Run consumes until ctx is done and closes the reader.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error("reader close", zap.Error(err))
		}
	}()
	c.logger.Info("consumer start")

	fetchBackoff := time.Second
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				c.logger.Info("consumer stop")
				return nil
			}
			c.logger.Error("fetch failed", zap.Error(err))
			if !sleep(ctx, fetchBackoff) {
				return nil
			}
			if fetchBackoff < 10*time.Second {
				fetchBackoff *= 2
			}
			continue
		}
		fetchBackoff = time.Second

		if !c.apply(ctx, msg) {
			c.logger.Info("consumer stop")
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("commit failed",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

// apply reports whether msg may be committed; false means ctx ended first.
func (c *KafkaConsumer) apply(ctx context.Context, msg kafka.Message) bool {
	ev, err := DecodeQueueMessage(msg.Value)
	if err != nil {
		c.proc.Malformed("kafka", msg.Value, err)
		return true
	}
	ev.Source = "kafka"

	for {
		if c.proc.Process(ctx, ev) == Ack {
			return true
		}
		c.logger.Warn("holding partition for redelivery",
			zap.String("slot_id", ev.SlotID),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
		if !sleep(ctx, c.retryPause) {
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
