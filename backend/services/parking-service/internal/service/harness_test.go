package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/models"
	"smartpark/backend/services/parking-service/internal/repository"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []models.SlotUpdate
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) PublishSlotUpdate(_ context.Context, update models.SlotUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, update)
	return nil
}

func (n *recordingNotifier) Updates() []models.SlotUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.SlotUpdate(nil), n.updates...)
}

type memoryCache struct {
	mu   sync.Mutex
	byID map[string]string
}

func newMemoryCache() *memoryCache { return &memoryCache{byID: map[string]string{}} }

func (c *memoryCache) Save(_ context.Context, plate, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[plate] = sessionID
	return nil
}

func (c *memoryCache) Lookup(_ context.Context, plate string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byID[plate]
	return id, ok, nil
}

func (c *memoryCache) Delete(_ context.Context, plate string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, plate)
	return nil
}

type harness struct {
	store        repository.Store
	mem          *repository.MemoryStore
	clock        *fakeClock
	notifier     *recordingNotifier
	cache        *memoryCache
	slots        *SlotRegistry
	pricing      *PricingEngine
	reservations *ReservationManager
	sessions     *SessionManager
	ingestor     *EventIngestor
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	policy Policy
	wrap   func(*repository.MemoryStore) repository.Store
}

func withPolicy(p Policy) harnessOption {
	return func(c *harnessConfig) { c.policy = p }
}

func withStore(wrap func(*repository.MemoryStore) repository.Store) harnessOption {
	return func(c *harnessConfig) { c.wrap = wrap }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{policy: PolicyReject}
	for _, opt := range opts {
		opt(&cfg)
	}

	mem := repository.NewMemoryStore()
	clock := &fakeClock{now: baseTime}
	mem.SetClock(clock.Now)

	var store repository.Store = mem
	if cfg.wrap != nil {
		store = cfg.wrap(mem)
	}

	logger := zap.NewNop()
	notifier := &recordingNotifier{}
	cache := newMemoryCache()
	slots := NewSlotRegistry(store, []Notifier{notifier}, nil, logger)
	pricing := NewPricingEngine(store, 0, logger).WithClock(clock.Now)
	reservations := NewReservationManager(store, slots, nil, logger).WithClock(clock.Now)
	sessions := NewSessionManager(store, slots, pricing, cache, nil, "inr", logger)
	ingestor := NewEventIngestor(store, slots, reservations, sessions, cfg.policy, nil, logger)

	require.NoError(t, slots.Seed(context.Background(), 2, 3))

	return &harness{
		store:        store,
		mem:          mem,
		clock:        clock,
		notifier:     notifier,
		cache:        cache,
		slots:        slots,
		pricing:      pricing,
		reservations: reservations,
		sessions:     sessions,
		ingestor:     ingestor,
	}
}

func (h *harness) slotStatus(t *testing.T, slotID string) models.SlotStatus {
	t.Helper()
	slot, err := h.slots.Get(context.Background(), slotID)
	require.NoError(t, err)
	return slot.Status
}

func (h *harness) enter(t *testing.T, slotID, plate string) Outcome {
	t.Helper()
	outcome, err := h.ingestor.Handle(context.Background(), models.SensorEvent{
		SlotID:       slotID,
		Status:       models.OccupancyOccupied,
		LicensePlate: plate,
		Timestamp:    h.clock.Now(),
		Source:       "test",
	})
	require.NoError(t, err)
	return outcome
}

func (h *harness) exit(t *testing.T, slotID string) Outcome {
	t.Helper()
	outcome, err := h.ingestor.Handle(context.Background(), models.SensorEvent{
		SlotID:    slotID,
		Status:    models.OccupancyFree,
		Timestamp: h.clock.Now(),
		Source:    "test",
	})
	require.NoError(t, err)
	return outcome
}

// faultyQueries fails every slot status write with err.
type faultyQueries struct {
	repository.Queries
	err error
}

func (q *faultyQueries) UpdateSlotStatus(context.Context, string, models.SlotStatus) (*models.Slot, error) {
	return nil, q.err
}

// faultyStore injects faultyQueries into transactions once err is set.
type faultyStore struct {
	*repository.MemoryStore
	err error
}

func (s *faultyStore) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	if s.err == nil {
		return s.MemoryStore.WithTx(ctx, fn)
	}
	return s.MemoryStore.WithTx(ctx, func(q repository.Queries) error {
		return fn(&faultyQueries{Queries: q, err: s.err})
	})
}
