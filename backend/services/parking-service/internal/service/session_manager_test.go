package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartpark/backend/services/parking-service/internal/models"
)

func TestDetailsQuotesWithoutClosing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.sessions.Open(ctx, "A1", "KA01AB1234", "")
	require.NoError(t, err)
	h.clock.Advance(150 * time.Minute)

	details, err := h.sessions.Details(ctx, "ka01ab1234")
	require.NoError(t, err)
	assert.Equal(t, session.ID, details.SessionID)
	assert.Equal(t, "A1", details.SlotID)
	assert.Equal(t, baseTime, details.EntryTime)
	assert.Equal(t, baseTime.Add(150*time.Minute), details.AsOfTime)
	assert.InDelta(t, 60.0, details.TotalFee, 1e-9)

	stored, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, stored.Open())
	assert.Equal(t, models.PaymentPending, stored.PaymentStatus)
}

func TestDetailsNoActiveSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.sessions.Details(ctx, "NOPE")
	require.ErrorIs(t, err, ErrNoActiveSession)

	_, err = h.sessions.Details(ctx, "  ")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFindOpenByPlateRejectsUnknownPlate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.sessions.Open(ctx, "A1", "", "")
	require.NoError(t, err)

	_, err = h.sessions.FindOpenByPlate(ctx, "unknown")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.sessions.Details(ctx, models.UnknownPlate)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFindOpenByPlateIgnoresStaleCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.sessions.Open(ctx, "A1", "KA01", "")
	require.NoError(t, err)
	id, ok, _ := h.cache.Lookup(ctx, "KA01")
	require.True(t, ok)
	assert.Equal(t, session.ID, id)

	// Close behind the cache's back.
	require.NoError(t, h.store.CloseSession(ctx, session.ID, baseTime, 0, 0))

	_, err = h.sessions.FindOpenByPlate(ctx, "KA01")
	require.ErrorIs(t, err, ErrNoActiveSession)
	_, ok, _ = h.cache.Lookup(ctx, "KA01")
	assert.False(t, ok)
}

func TestOpenConflictIsRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.sessions.Open(ctx, "A1", "KA01", "")
	require.NoError(t, err)

	_, err = h.sessions.Open(ctx, "A2", "ka01", "")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCloseIsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.sessions.Open(ctx, "A1", "KA01", "")
	require.NoError(t, err)

	exit := baseTime.Add(time.Hour)
	require.NoError(t, h.sessions.Close(ctx, session.ID, exit, 20, 60))
	require.ErrorIs(t, h.sessions.Close(ctx, session.ID, exit.Add(time.Hour), 40, 120), ErrSessionClosed)
	require.ErrorIs(t, h.sessions.Close(ctx, "missing", exit, 0, 0), ErrSessionNotFound)

	stored, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, exit, stored.ExitTime.Time)
	assert.InDelta(t, 20.0, stored.TotalFee.Float64, 1e-9)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
}

func TestCheckoutClosesSessionButNotSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.reservations.Reserve(ctx, "A2", "KA01")
	require.NoError(t, err)
	require.Equal(t, OutcomeEntryAuthorized, h.enter(t, "A2", ""))

	h.clock.Advance(61 * time.Minute)
	receipt, err := h.sessions.Checkout(ctx, "KA01")
	require.NoError(t, err)
	assert.Equal(t, "A2", receipt.SlotID)
	assert.InDelta(t, 61.0, receipt.DurationMinutes, 1e-9)
	assert.InDelta(t, 40.0, receipt.TotalFee, 1e-9)
	assert.Equal(t, "INR", receipt.Currency)
	assert.Equal(t, models.SlotOccupied, h.slotStatus(t, "A2"))

	_, err = h.sessions.Checkout(ctx, "KA01")
	require.ErrorIs(t, err, ErrNoActiveSession)

	// The exit sensor frees the slot; nothing is left to close.
	assert.Equal(t, OutcomeExit, h.exit(t, "A2"))
	assert.Equal(t, models.SlotFree, h.slotStatus(t, "A2"))
}

func TestSlotRegistryReads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	slots, err := h.slots.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 6)
	assert.Equal(t, "A1", slots[0].ID)
	assert.Equal(t, "B3", slots[5].ID)
	assert.Equal(t, models.Coordinates{X: 20, Y: 10}, slots[5].Coordinates)

	_, err = h.slots.Get(ctx, "C1")
	require.ErrorIs(t, err, ErrSlotNotFound)

	updated, err := h.slots.Transition(ctx, "A3", models.SlotOccupied)
	require.NoError(t, err)
	assert.Equal(t, models.SlotOccupied, updated.Status)

	_, err = h.slots.Transition(ctx, "A3", models.SlotStatus("BROKEN"))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.slots.Logs(ctx, "C1", 10)
	require.ErrorIs(t, err, ErrSlotNotFound)
}

func TestSlotRegistryRejectsInactiveSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.EnsureSlot(ctx, &models.Slot{ID: "X1", IsActive: false}))

	_, err := h.slots.Transition(ctx, "X1", models.SlotOccupied)
	require.ErrorIs(t, err, ErrSlotInactive)

	_, err = h.reservations.Reserve(ctx, "X1", "KA01")
	require.ErrorIs(t, err, ErrSlotUnavailable)
}
