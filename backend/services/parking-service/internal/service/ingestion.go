package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/metrics"
	"smartpark/backend/services/parking-service/internal/models"
	"smartpark/backend/services/parking-service/internal/repository"
)

// Policy decides what an OCCUPIED signal without a valid reservation does.
type Policy string

const (
	// PolicyReject logs the event and keeps the slot's prior status.
	PolicyReject Policy = "reject"
	// PolicyRecord marks the slot OCCUPIED and opens a walk-in session.
	PolicyRecord Policy = "record"
)

// ParsePolicy accepts "reject" or "record"; empty means reject.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyRecord:
		return PolicyRecord, nil
	}
	return "", fmt.Errorf("%w: unknown unauthorized occupancy policy %q", ErrInvalidInput, value)
}

// Outcome classifies how a sensor event was applied.
type Outcome string

const (
	OutcomeEntryAuthorized Outcome = "entry_authorized"
	OutcomeEntryRejected   Outcome = "entry_rejected"
	OutcomeEntryRecorded   Outcome = "entry_recorded"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomePlateParked     Outcome = "plate_already_parked"
	OutcomeExit            Outcome = "exit"
	OutcomeExitIgnored     Outcome = "exit_ignored"
	OutcomeNoop            Outcome = "noop"
	OutcomeSlotInactive    Outcome = "slot_inactive"
	OutcomeSlotUnknown     Outcome = "slot_unknown"
)

// EventIngestor applies sensor events to slots, reservations and sessions. Each event is
// journaled and applied in one transaction, so a retried event never half-applies.
type EventIngestor struct {
	store        repository.Store
	slots        *SlotRegistry
	reservations *ReservationManager
	sessions     *SessionManager
	policy       Policy
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewEventIngestor builds ingestor.
func NewEventIngestor(
	store repository.Store,
	slots *SlotRegistry,
	reservations *ReservationManager,
	sessions *SessionManager,
	policy Policy,
	m *metrics.Metrics,
	logger *zap.Logger,
) *EventIngestor {
	if policy == "" {
		policy = PolicyReject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventIngestor{
		store:        store,
		slots:        slots,
		reservations: reservations,
		sessions:     sessions,
		policy:       policy,
		metrics:      m,
		logger:       logger,
	}
}

// applied collects what a committed event changed.
type applied struct {
	outcome Outcome
	slot    *models.Slot
	opened  *models.Session
	closed  *models.Session
	quote   *models.Quote
	reason  error
}

// Handle applies ev. A nil error means the event is fully handled (including rejections)
// and may be acknowledged; IsRetryable tells whether a non-nil error is worth retrying.
// Events for unknown slots are journaled and reported as ErrSlotNotFound.
func (i *EventIngestor) Handle(ctx context.Context, ev models.SensorEvent) (outcome Outcome, err error) {
	ctx, span := tracer.Start(ctx, "ingest.handle")
	span.SetAttributes(
		attribute.String("slot.id", ev.SlotID),
		attribute.String("sensor.status", string(ev.Status)),
		attribute.String("sensor.source", ev.Source),
	)
	defer func() {
		span.SetAttributes(attribute.String("ingest.outcome", string(outcome)))
		endSpan(span, err)
	}()

	ev.SlotID = strings.TrimSpace(ev.SlotID)
	if ev.SlotID == "" {
		return "", fmt.Errorf("%w: slot id is required", ErrInvalidInput)
	}
	if ev.Status != models.OccupancyOccupied && ev.Status != models.OccupancyFree {
		return "", fmt.Errorf("%w: unknown occupancy status %q", ErrInvalidInput, ev.Status)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = i.sessions.pricing.Now()
	}

	var res applied
	err = i.store.WithTx(ctx, func(q repository.Queries) error {
		res = applied{}
		if err := i.journal(ctx, q, ev); err != nil {
			return err
		}
		slot, err := i.slots.lock(ctx, q, ev.SlotID)
		if errors.Is(err, ErrSlotNotFound) {
			// Keep the journal entry of a signal from an unregistered sensor.
			res.outcome = OutcomeSlotUnknown
			return nil
		}
		if err != nil {
			return err
		}
		if !slot.IsActive {
			res.outcome = OutcomeSlotInactive
			return nil
		}
		if ev.Status == models.OccupancyOccupied {
			return i.applyEntry(ctx, q, slot, ev, &res)
		}
		return i.applyExit(ctx, q, slot, &res)
	})
	if err != nil {
		i.metrics.SensorEvent(string(ev.Status), resultLabel(err))
		return "", err
	}

	i.committed(ctx, ev, res)
	if res.outcome == OutcomeSlotUnknown {
		return res.outcome, ErrSlotNotFound
	}
	return res.outcome, nil
}

func (i *EventIngestor) journal(ctx context.Context, q repository.Queries, ev models.SensorEvent) error {
	raw := string(ev.Raw)
	if raw == "" {
		raw = string(ev.Status)
	}
	entry := &models.SensorLog{
		SlotID:    ev.SlotID,
		EventType: ev.Status.EventType(),
		RawData:   raw,
		Timestamp: ev.Timestamp.UTC(),
	}
	if err := q.AppendSensorLog(ctx, entry); err != nil {
		return fmt.Errorf("append sensor log: %w", err)
	}
	return nil
}

func (i *EventIngestor) applyEntry(ctx context.Context, q repository.Queries, slot *models.Slot, ev models.SensorEvent, res *applied) error {
	if _, err := q.FindOpenSessionBySlot(ctx, slot.ID); err == nil {
		res.outcome = OutcomeDuplicate
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("find open session: %w", err)
	}

	plate := models.NormalizePlate(ev.LicensePlate)
	if plate == "" {
		active, err := q.FindActiveReservationBySlot(ctx, slot.ID)
		switch {
		case err == nil:
			plate = active.LicensePlate
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("find reservation: %w", err)
		}
	}

	// A car cannot be parked in two slots at once.
	if plate != "" && plate != models.UnknownPlate {
		other, err := q.FindOpenSessionByPlate(ctx, plate)
		if err == nil {
			res.outcome = OutcomePlateParked
			res.reason = fmt.Errorf("license plate %s already parked in slot %s", plate, other.SlotID)
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("find open session: %w", err)
		}
	}

	reservation, verr := i.reservations.validateEntry(ctx, q, slot.ID, plate, ev.Timestamp)
	switch {
	case verr == nil:
		return i.admit(ctx, q, slot, reservation, reservation.LicensePlate, OutcomeEntryAuthorized, res)

	case errors.Is(verr, ErrNoReservation), errors.Is(verr, ErrEarlyEntry):
		res.reason = verr
		if i.policy != PolicyRecord || slot.Status == models.SlotOccupied {
			res.outcome = OutcomeEntryRejected
			return nil
		}
		if errors.Is(verr, ErrEarlyEntry) {
			// The holder arrived before the window; the visit consumes the reservation.
			early, err := q.FindActiveReservationBySlot(ctx, slot.ID)
			if err != nil {
				return fmt.Errorf("find reservation: %w", err)
			}
			return i.admit(ctx, q, slot, early, plate, OutcomeEntryRecorded, res)
		}
		if slot.Status == models.SlotReserved {
			// Someone else's reservation stays on a RESERVED slot.
			res.outcome = OutcomeEntryRejected
			return nil
		}
		return i.admit(ctx, q, slot, nil, plate, OutcomeEntryRecorded, res)

	default:
		return verr
	}
}

// admit marks the slot OCCUPIED, completes reservation when there is one and opens the
// session linked to it.
func (i *EventIngestor) admit(
	ctx context.Context,
	q repository.Queries,
	slot *models.Slot,
	reservation *models.Reservation,
	plate string,
	outcome Outcome,
	res *applied,
) error {
	updated, err := i.slots.transition(ctx, q, slot.ID, models.SlotOccupied)
	if err != nil {
		return err
	}
	reservationID := ""
	if reservation != nil {
		if err := q.UpdateReservationStatus(ctx, reservation.ID, models.ReservationCompleted); err != nil {
			return fmt.Errorf("complete reservation: %w", err)
		}
		reservationID = reservation.ID
	}
	session, err := i.sessions.open(ctx, q, slot.ID, plate, reservationID)
	if err != nil {
		return err
	}
	res.outcome, res.slot, res.opened = outcome, updated, session
	return nil
}

func (i *EventIngestor) applyExit(ctx context.Context, q repository.Queries, slot *models.Slot, res *applied) error {
	switch slot.Status {
	case models.SlotFree:
		res.outcome = OutcomeNoop
		return nil
	case models.SlotReserved:
		res.outcome = OutcomeExitIgnored
		return nil
	}

	updated, err := i.slots.transition(ctx, q, slot.ID, models.SlotFree)
	if err != nil {
		return err
	}
	res.outcome, res.slot = OutcomeExit, updated

	session, err := q.FindOpenSessionBySlot(ctx, slot.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find open session: %w", err)
	}
	quote, err := i.sessions.settle(ctx, q, session)
	if err != nil {
		return err
	}
	res.closed, res.quote = session, quote
	return nil
}

// committed performs the side effects of a committed event.
func (i *EventIngestor) committed(ctx context.Context, ev models.SensorEvent, res applied) {
	i.metrics.SensorEvent(string(ev.Status), string(res.outcome))

	fields := []zap.Field{
		zap.String("slot_id", ev.SlotID),
		zap.String("status", string(ev.Status)),
		zap.String("source", ev.Source),
		zap.String("outcome", string(res.outcome)),
	}
	switch res.outcome {
	case OutcomeEntryRejected, OutcomeEntryRecorded:
		i.logger.Warn("unauthorized occupancy", append(fields,
			zap.String("license_plate", models.NormalizePlate(ev.LicensePlate)),
			zap.String("policy", string(i.policy)),
			zap.Error(res.reason),
		)...)
	case OutcomePlateParked:
		i.logger.Warn("sensor event ignored", append(fields, zap.Error(res.reason))...)
	case OutcomeExitIgnored, OutcomeSlotInactive, OutcomeSlotUnknown, OutcomeDuplicate:
		i.logger.Warn("sensor event ignored", fields...)
	default:
		i.logger.Info("sensor event applied", fields...)
	}

	if res.slot != nil {
		i.slots.announce(ctx, res.slot)
	}
	if res.opened != nil {
		i.sessions.opened(ctx, res.opened)
	}
	if res.closed != nil {
		i.sessions.closed(ctx, res.closed, res.quote.Fee, CloseTriggerExit)
	}
}
