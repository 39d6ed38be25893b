package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/models"
	"smartpark/backend/services/parking-service/internal/repository"
)

// DefaultRatePerHour applies when no pricing rule is in effect.
const DefaultRatePerHour = 20.0

// PricingEngine computes fees from elapsed time and the authoritative hourly rate.
type PricingEngine struct {
	store       repository.Queries
	defaultRate float64
	now         func() time.Time
	logger      *zap.Logger
}

// NewPricingEngine returns engine. A non-positive defaultRate falls back to DefaultRatePerHour.
func NewPricingEngine(store repository.Queries, defaultRate float64, logger *zap.Logger) *PricingEngine {
	if defaultRate <= 0 {
		defaultRate = DefaultRatePerHour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricingEngine{
		store:       store,
		defaultRate: defaultRate,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

// WithClock replaces the engine clock.
func (e *PricingEngine) WithClock(now func() time.Time) *PricingEngine {
	e.now = now
	return e
}

// Now returns the engine's current time.
func (e *PricingEngine) Now() time.Time {
	return e.now()
}

// ComputeFee bills every started hour: 61 minutes is two hours, 60 minutes is one.
// Entry after asOf counts as zero elapsed time.
func ComputeFee(entry, asOf time.Time, ratePerHour float64) (durationMinutes float64, billedHours int64, fee float64) {
	elapsed := asOf.Sub(entry)
	if elapsed < 0 {
		elapsed = 0
	}
	billedHours = int64(elapsed / time.Hour)
	if elapsed%time.Hour != 0 {
		billedHours++
	}
	return elapsed.Minutes(), billedHours, float64(billedHours) * ratePerHour
}

// CurrentRate returns the latest effective rule's rate or the default.
func (e *PricingEngine) CurrentRate(ctx context.Context) (float64, error) {
	return e.currentRate(ctx, e.store)
}

func (e *PricingEngine) currentRate(ctx context.Context, q repository.Queries) (float64, error) {
	rule, err := q.LatestPricingRule(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return e.defaultRate, nil
		}
		return 0, fmt.Errorf("load pricing rule: %w", err)
	}
	if rule.RatePerHour <= 0 {
		return e.defaultRate, nil
	}
	return rule.RatePerHour, nil
}

// Quote computes the fee owed by a session as of now. It never writes.
func (e *PricingEngine) Quote(ctx context.Context, sessionID string) (quote *models.Quote, err error) {
	ctx, span := tracer.Start(ctx, "pricing.quote")
	span.SetAttributes(attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	return e.quote(ctx, e.store, sessionID)
}

func (e *PricingEngine) quote(ctx context.Context, q repository.Queries, sessionID string) (*models.Quote, error) {
	session, err := q.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return e.quoteSession(ctx, q, session)
}

func (e *PricingEngine) quoteSession(ctx context.Context, q repository.Queries, session *models.Session) (*models.Quote, error) {
	rate, err := e.currentRate(ctx, q)
	if err != nil {
		return nil, err
	}
	asOf := e.now()
	minutes, hours, fee := ComputeFee(session.EntryTime, asOf, rate)
	return &models.Quote{
		SessionID:       session.ID,
		DurationMinutes: minutes,
		BilledHours:     hours,
		RatePerHour:     rate,
		Fee:             fee,
		AsOf:            asOf,
	}, nil
}

// AddRule appends a pricing rule. A zero effectiveFrom means now.
func (e *PricingEngine) AddRule(ctx context.Context, ratePerHour float64, effectiveFrom time.Time) (*models.PricingRule, error) {
	if ratePerHour <= 0 {
		return nil, fmt.Errorf("%w: rate per hour must be positive", ErrInvalidInput)
	}
	if effectiveFrom.IsZero() {
		effectiveFrom = e.now()
	}
	rule := &models.PricingRule{RatePerHour: ratePerHour, EffectiveFrom: effectiveFrom.UTC()}
	if err := e.store.CreatePricingRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("create pricing rule: %w", err)
	}
	e.logger.Info("pricing rule added",
		zap.Int64("rule_id", rule.ID),
		zap.Float64("rate_per_hour", rule.RatePerHour),
		zap.Time("effective_from", rule.EffectiveFrom),
	)
	return rule, nil
}
