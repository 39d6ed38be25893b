package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartpark/backend/services/parking-service/internal/models"
	"smartpark/backend/services/parking-service/internal/repository"
)

func TestReserveFreeSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.reservations.Reserve(ctx, "A1", " ka01ab1234 ")
	require.NoError(t, err)

	assert.Equal(t, "A1", res.SlotID)
	assert.Equal(t, "KA01AB1234", res.LicensePlate)
	assert.Equal(t, models.ReservationActive, res.Status)
	assert.Equal(t, baseTime, res.ReservationTime)
	assert.Equal(t, models.SlotReserved, h.slotStatus(t, "A1"))
	assert.Equal(t, []models.SlotUpdate{{SlotID: "A1", Status: models.SlotReserved}}, h.notifier.Updates())
}

func TestReserveUnavailableSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.reservations.Reserve(ctx, "Z9", "KA01")
	require.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = h.reservations.Reserve(ctx, "A1", "KA01")
	require.NoError(t, err)
	_, err = h.reservations.Reserve(ctx, "A1", "KA02")
	require.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = h.reservations.Reserve(ctx, "", "KA02")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const attempts = 16
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		wins        int
		unavailable int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := h.reservations.Reserve(ctx, "B2", fmt.Sprintf("KA%02d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSlotUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, unavailable)
	assert.Equal(t, models.SlotReserved, h.slotStatus(t, "B2"))

	active, err := h.store.FindActiveReservationBySlot(ctx, "B2")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationActive, active.Status)
}

func TestReserveFromClampsPastTimes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	past, err := h.reservations.ReserveFrom(ctx, "A1", "KA01", baseTime.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, baseTime, past.ReservationTime)

	future, err := h.reservations.ReserveFrom(ctx, "A2", "KA02", baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(time.Hour), future.ReservationTime)
}

func TestCancelFreesSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.reservations.Reserve(ctx, "A1", "KA01")
	require.NoError(t, err)
	require.NoError(t, h.reservations.Cancel(ctx, res.ID))

	assert.Equal(t, models.SlotFree, h.slotStatus(t, "A1"))
	stored, err := h.reservations.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, stored.Status)

	// Terminal reservations cannot be cancelled again.
	require.ErrorIs(t, h.reservations.Cancel(ctx, res.ID), ErrReservationNotFound)
	require.ErrorIs(t, h.reservations.Cancel(ctx, "not-a-uuid"), ErrReservationNotFound)
	require.ErrorIs(t, h.reservations.Cancel(ctx, "7d9f6a4e-3c1b-4e0a-9a55-0f1f2d3c4b5a"), ErrReservationNotFound)

	// The slot is reservable again.
	_, err = h.reservations.Reserve(ctx, "A1", "KA02")
	require.NoError(t, err)
}

func TestCancelIsAtomic(t *testing.T) {
	faulty := &faultyStore{}
	h := newHarness(t, withStore(func(mem *repository.MemoryStore) repository.Store {
		faulty.MemoryStore = mem
		return faulty
	}))
	ctx := context.Background()

	res, err := h.reservations.Reserve(ctx, "A1", "KA01")
	require.NoError(t, err)

	faulty.err = fmt.Errorf("%w: connection reset", repository.ErrRetryable)
	err = h.reservations.Cancel(ctx, res.ID)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	stored, err := h.store.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationActive, stored.Status)
	assert.Equal(t, models.SlotReserved, h.slotStatus(t, "A1"))

	faulty.err = nil
	require.NoError(t, h.reservations.Cancel(ctx, res.ID))
	assert.Equal(t, models.SlotFree, h.slotStatus(t, "A1"))
}

func TestValidateEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.reservations.ReserveFrom(ctx, "A1", "KA01", baseTime.Add(30*time.Minute))
	require.NoError(t, err)

	_, err = h.reservations.ValidateEntry(ctx, "A1", "KA01", baseTime.Add(10*time.Minute))
	require.ErrorIs(t, err, ErrEarlyEntry)

	_, err = h.reservations.ValidateEntry(ctx, "A1", "KA99", baseTime.Add(time.Hour))
	require.ErrorIs(t, err, ErrNoReservation)

	_, err = h.reservations.ValidateEntry(ctx, "A2", "KA01", baseTime.Add(time.Hour))
	require.ErrorIs(t, err, ErrNoReservation)

	got, err := h.reservations.ValidateEntry(ctx, "A1", "ka01", baseTime.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
}
