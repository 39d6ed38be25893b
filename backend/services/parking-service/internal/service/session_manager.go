package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"

	"smartpark/backend/services/parking-service/internal/metrics"
	"smartpark/backend/services/parking-service/internal/models"
	"smartpark/backend/services/parking-service/internal/repository"
)

// ActiveSessionCache indexes open sessions by license plate. It is a lookaside cache:
// hits are re-read from the store before use.
type ActiveSessionCache interface {
	Save(ctx context.Context, plate, sessionID string) error
	Lookup(ctx context.Context, plate string) (sessionID string, ok bool, err error)
	Delete(ctx context.Context, plate string) error
}

// Session close triggers.
const (
	CloseTriggerExit     = "exit"
	CloseTriggerCheckout = "checkout"
	CloseTriggerManual   = "manual"
)

// SessionManager opens, looks up and closes parking sessions. It does not check slot
// occupancy; callers transition the slot before opening.
type SessionManager struct {
	store    repository.Store
	slots    *SlotRegistry
	pricing  *PricingEngine
	cache    ActiveSessionCache
	metrics  *metrics.Metrics
	currency string
	logger   *zap.Logger
}

// NewSessionManager builds manager. cache may be nil.
func NewSessionManager(
	store repository.Store,
	slots *SlotRegistry,
	pricing *PricingEngine,
	cache ActiveSessionCache,
	m *metrics.Metrics,
	currency string,
	logger *zap.Logger,
) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		store:    store,
		slots:    slots,
		pricing:  pricing,
		cache:    cache,
		metrics:  m,
		currency: currency,
		logger:   logger,
	}
}

// Open creates a PENDING session with entry time now.
func (m *SessionManager) Open(ctx context.Context, slotID, licensePlate, reservationID string) (*models.Session, error) {
	session, err := m.open(ctx, m.store, slotID, licensePlate, reservationID)
	if err != nil {
		return nil, err
	}
	m.opened(ctx, session)
	return session, nil
}

func (m *SessionManager) open(ctx context.Context, q repository.Queries, slotID, licensePlate, reservationID string) (*models.Session, error) {
	plate := models.NormalizePlate(licensePlate)
	if plate == "" {
		plate = models.UnknownPlate
	}
	session := &models.Session{
		ID:            uuid.NewString(),
		SlotID:        slotID,
		LicensePlate:  plate,
		EntryTime:     m.pricing.Now(),
		PaymentStatus: models.PaymentPending,
	}
	if reservationID != "" {
		session.ReservationID = null.StringFrom(reservationID)
	}
	if err := q.CreateSession(ctx, session); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent entry won the slot or the plate; a retry re-reads and sees it.
			return nil, fmt.Errorf("create session: %w: %w", repository.ErrRetryable, err)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// opened runs after the opening transaction commits.
func (m *SessionManager) opened(ctx context.Context, session *models.Session) {
	m.logger.Info("parking session opened",
		zap.String("session_id", session.ID),
		zap.String("slot_id", session.SlotID),
		zap.String("license_plate", session.LicensePlate),
		zap.String("reservation_id", session.ReservationID.String),
	)
	if m.cache == nil || session.LicensePlate == models.UnknownPlate {
		return
	}
	if err := m.cache.Save(ctx, session.LicensePlate, session.ID); err != nil {
		m.logger.Warn("failed to cache open session", zap.String("session_id", session.ID), zap.Error(err))
	}
}

// FindOpenBySlot returns the slot's open session or ErrNoActiveSession.
func (m *SessionManager) FindOpenBySlot(ctx context.Context, slotID string) (*models.Session, error) {
	session, err := m.store.FindOpenSessionBySlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return session, nil
}

// FindOpenByPlate returns the plate's open session or ErrNoActiveSession.
func (m *SessionManager) FindOpenByPlate(ctx context.Context, licensePlate string) (*models.Session, error) {
	plate := models.NormalizePlate(licensePlate)
	if plate == "" {
		return nil, fmt.Errorf("%w: licensePlate is required", ErrInvalidInput)
	}
	if plate == models.UnknownPlate {
		return nil, fmt.Errorf("%w: %s is not a license plate", ErrInvalidInput, models.UnknownPlate)
	}

	if m.cache != nil {
		if id, ok, err := m.cache.Lookup(ctx, plate); err != nil {
			m.logger.Warn("open session cache lookup failed", zap.String("license_plate", plate), zap.Error(err))
		} else if ok {
			session, err := m.store.GetSession(ctx, id)
			if err == nil && session.Open() && session.LicensePlate == plate {
				return session, nil
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("get session: %w", err)
			}
			m.forget(ctx, plate)
		}
	}

	session, err := m.store.FindOpenSessionByPlate(ctx, plate)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return session, nil
}

// Close records exit, fee and duration and marks the session PAID. Callers obtain fee and
// duration from PricingEngine.Quote.
func (m *SessionManager) Close(ctx context.Context, sessionID string, exit time.Time, fee, durationMinutes float64) error {
	var session *models.Session
	err := m.store.WithTx(ctx, func(q repository.Queries) error {
		var err error
		session, err = q.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("load session: %w", err)
		}
		return m.close(ctx, q, sessionID, exit, fee, durationMinutes)
	})
	if err != nil {
		return err
	}
	m.closed(ctx, session, fee, CloseTriggerManual)
	return nil
}

func (m *SessionManager) close(ctx context.Context, q repository.Queries, sessionID string, exit time.Time, fee, durationMinutes float64) error {
	if err := q.CloseSession(ctx, sessionID, exit, durationMinutes, fee); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionClosed
		}
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// settle quotes an open session and closes it with that quote inside q's transaction.
func (m *SessionManager) settle(ctx context.Context, q repository.Queries, session *models.Session) (*models.Quote, error) {
	quote, err := m.pricing.quoteSession(ctx, q, session)
	if err != nil {
		return nil, err
	}
	if err := m.close(ctx, q, session.ID, quote.AsOf, quote.Fee, quote.DurationMinutes); err != nil {
		return nil, err
	}
	return quote, nil
}

// closed runs after the closing transaction commits.
func (m *SessionManager) closed(ctx context.Context, session *models.Session, fee float64, trigger string) {
	m.metrics.SessionClosed(trigger, fee)
	m.logger.Info("parking session closed",
		zap.String("session_id", session.ID),
		zap.String("slot_id", session.SlotID),
		zap.String("license_plate", session.LicensePlate),
		zap.Float64("total_fee", fee),
		zap.String("trigger", trigger),
	)
	m.forget(ctx, session.LicensePlate)
}

func (m *SessionManager) forget(ctx context.Context, plate string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(ctx, plate); err != nil {
		m.logger.Warn("failed to evict open session cache", zap.String("license_plate", plate), zap.Error(err))
	}
}

// Details returns a live fee quote for the plate's open session without modifying it.
func (m *SessionManager) Details(ctx context.Context, licensePlate string) (resp *models.DetailsResponse, err error) {
	ctx, span := tracer.Start(ctx, "session.details")
	defer func() { endSpan(span, err) }()

	session, err := m.FindOpenByPlate(ctx, licensePlate)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", session.ID))

	quote, err := m.pricing.quoteSession(ctx, m.store, session)
	if err != nil {
		return nil, err
	}
	return &models.DetailsResponse{
		SessionID:    session.ID,
		SlotID:       session.SlotID,
		LicensePlate: session.LicensePlate,
		EntryTime:    session.EntryTime,
		AsOfTime:     quote.AsOf,
		TotalFee:     quote.Fee,
	}, nil
}

// Checkout is the explicit pay-and-exit: it quotes and closes the plate's open session.
// The slot is left to the exit sensor.
func (m *SessionManager) Checkout(ctx context.Context, licensePlate string) (receipt *models.ExitReceipt, err error) {
	ctx, span := tracer.Start(ctx, "session.checkout")
	defer func() { endSpan(span, err) }()

	found, err := m.FindOpenByPlate(ctx, licensePlate)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", found.ID))

	var (
		session *models.Session
		quote   *models.Quote
	)
	err = m.store.WithTx(ctx, func(q repository.Queries) error {
		if _, err := m.slots.lock(ctx, q, found.SlotID); err != nil {
			return err
		}
		var err error
		session, err = q.GetSession(ctx, found.ID)
		if err != nil {
			return fmt.Errorf("reload session: %w", err)
		}
		if !session.Open() {
			return ErrNoActiveSession
		}
		quote, err = m.settle(ctx, q, session)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.closed(ctx, session, quote.Fee, CloseTriggerCheckout)

	return &models.ExitReceipt{
		SessionID:       session.ID,
		SlotID:          session.SlotID,
		LicensePlate:    session.LicensePlate,
		EntryTime:       session.EntryTime,
		ExitTime:        quote.AsOf,
		DurationMinutes: quote.DurationMinutes,
		TotalFee:        quote.Fee,
		Currency:        strings.ToUpper(m.currency),
	}, nil
}
