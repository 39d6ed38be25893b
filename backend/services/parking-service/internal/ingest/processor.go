package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/metrics"
	"smartpark/backend/services/parking-service/internal/models"
	"smartpark/backend/services/parking-service/internal/service"
)

const defaultAttempts = 5

// Handler applies a decoded sensor event.
type Handler interface {
	Handle(ctx context.Context, ev models.SensorEvent) (service.Outcome, error)
}

// Decision tells a transport what to do with a delivered message.
type Decision int

const (
	// Ack: the event was applied or can never be applied.
	Ack Decision = iota
	// Redeliver: a transient failure outlived the retry budget; keep the message.
	Redeliver
)

// Processor retries transient failures with exponential backoff and turns the final result
// into an acknowledgement decision.
type Processor struct {
	handler  Handler
	attempts uint
	initial  time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewProcessor builds processor. attempts <= 0 means the default budget.
func NewProcessor(handler Handler, attempts int, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		handler:  handler,
		attempts: uint(attempts),
		initial:  200 * time.Millisecond,
		metrics:  m,
		logger:   logger,
	}
}

// Process applies ev and decides whether the transport may acknowledge it.
func (p *Processor) Process(ctx context.Context, ev models.SensorEvent) Decision {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initial
	bo.MaxInterval = 5 * time.Second

	outcome, err := backoff.Retry(ctx, func() (service.Outcome, error) {
		outcome, err := p.handler.Handle(ctx, ev)
		if err != nil && !service.IsRetryable(err) {
			return outcome, backoff.Permanent(err)
		}
		return outcome, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(p.attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn("sensor event retry",
				zap.String("slot_id", ev.SlotID),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)

	fields := []zap.Field{
		zap.String("slot_id", ev.SlotID),
		zap.String("status", string(ev.Status)),
		zap.String("source", ev.Source),
	}
	switch {
	case err == nil:
		p.logger.Debug("sensor event handled", append(fields, zap.String("outcome", string(outcome)))...)
		return Ack
	case service.IsRetryable(err) || errors.Is(err, context.Canceled):
		p.logger.Error("sensor event not applied, leaving for redelivery", append(fields, zap.Error(err))...)
		return Redeliver
	default:
		p.logger.Warn("sensor event dropped", append(fields, zap.Error(err))...)
		return Ack
	}
}

// Malformed records a payload that could not be decoded. It is always acknowledged.
func (p *Processor) Malformed(source string, payload []byte, err error) Decision {
	p.metrics.SensorEvent("unknown", "malformed")
	p.logger.Warn("malformed sensor payload",
		zap.String("source", source),
		zap.ByteString("payload", payload),
		zap.Error(err),
	)
	return Ack
}
