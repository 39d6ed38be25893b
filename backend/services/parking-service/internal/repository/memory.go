package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"smartpark/backend/services/parking-service/internal/models"
)

// MemoryStore is an in-process Store backing the service and handler tests. It mirrors
// the uniqueness rules of the schema but not row locking: a single mutex serialises
// every call, and each transaction works on a private copy that replaces the shared
// state only on commit.
//
// Calling MemoryStore methods (rather than the Queries handed to fn) from inside
// WithTx deadlocks.
type MemoryStore struct {
	memQueries

	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		state: newMemState(),
		now:   time.Now,
	}
	s.memQueries = memQueries{store: s}
	return s
}

// SetClock overrides the clock used to decide which pricing rules are in effect.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// WithTx runs fn against a snapshot and publishes it if fn succeeds.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memQueries{store: s, tx: snapshot}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

type memState struct {
	slots        map[string]models.Slot
	reservations map[string]models.Reservation
	sessions     map[string]models.Session
	rules        []models.PricingRule
	logs         []models.SensorLog
	nextRuleID   int64
	nextLogID    int64
}

func newMemState() *memState {
	return &memState{
		slots:        make(map[string]models.Slot),
		reservations: make(map[string]models.Reservation),
		sessions:     make(map[string]models.Session),
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		slots:        make(map[string]models.Slot, len(st.slots)),
		reservations: make(map[string]models.Reservation, len(st.reservations)),
		sessions:     make(map[string]models.Session, len(st.sessions)),
		rules:        append([]models.PricingRule(nil), st.rules...),
		logs:         append([]models.SensorLog(nil), st.logs...),
		nextRuleID:   st.nextRuleID,
		nextLogID:    st.nextLogID,
	}
	for k, v := range st.slots {
		c.slots[k] = v
	}
	for k, v := range st.reservations {
		c.reservations[k] = v
	}
	for k, v := range st.sessions {
		c.sessions[k] = v
	}
	return c
}

type memQueries struct {
	store *MemoryStore
	tx    *memState
}

// begin returns the state to operate on. Outside a transaction it takes the store lock;
// the returned func releases it.
func (q *memQueries) begin(ctx context.Context) (*memState, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if q.tx != nil {
		return q.tx, func() {}, nil
	}
	q.store.mu.Lock()
	return q.store.state, q.store.mu.Unlock, nil
}

func (q *memQueries) EnsureSlot(ctx context.Context, slot *models.Slot) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if _, ok := st.slots[slot.ID]; ok {
		return nil
	}
	s := *slot
	if s.Status == "" {
		s.Status = models.SlotFree
	}
	s.UpdatedAt = time.Now().UTC()
	st.slots[s.ID] = s
	return nil
}

func (q *memQueries) GetSlot(ctx context.Context, slotID string) (*models.Slot, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	s, ok := st.slots[slotID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (q *memQueries) GetSlotForUpdate(ctx context.Context, slotID string) (*models.Slot, error) {
	return q.GetSlot(ctx, slotID)
}

func (q *memQueries) ListSlots(ctx context.Context) ([]models.Slot, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	slots := make([]models.Slot, 0, len(st.slots))
	for _, s := range st.slots {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots, nil
}

func (q *memQueries) UpdateSlotStatus(ctx context.Context, slotID string, status models.SlotStatus) (*models.Slot, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	s, ok := st.slots[slotID]
	if !ok {
		return nil, ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	st.slots[slotID] = s
	return &s, nil
}

func (q *memQueries) CreateReservation(ctx context.Context, r *models.Reservation) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if _, ok := st.slots[r.SlotID]; !ok {
		return ErrNotFound
	}
	if _, ok := st.reservations[r.ID]; ok {
		return ErrConflict
	}
	if r.Status == models.ReservationActive {
		for _, existing := range st.reservations {
			if existing.SlotID == r.SlotID && existing.Status == models.ReservationActive {
				return ErrConflict
			}
		}
	}
	r.CreatedAt = time.Now().UTC()
	st.reservations[r.ID] = *r
	return nil
}

func (q *memQueries) GetReservation(ctx context.Context, reservationID string) (*models.Reservation, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	r, ok := st.reservations[reservationID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (q *memQueries) GetReservationForUpdate(ctx context.Context, reservationID string) (*models.Reservation, error) {
	return q.GetReservation(ctx, reservationID)
}

func (q *memQueries) FindActiveReservationBySlot(ctx context.Context, slotID string) (*models.Reservation, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	for _, r := range st.reservations {
		if r.SlotID == slotID && r.Status == models.ReservationActive {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (q *memQueries) UpdateReservationStatus(ctx context.Context, reservationID string, status models.ReservationStatus) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	r, ok := st.reservations[reservationID]
	if !ok || r.Status != models.ReservationActive {
		return ErrNotFound
	}
	r.Status = status
	st.reservations[reservationID] = r
	return nil
}

func (q *memQueries) CreateSession(ctx context.Context, s *models.Session) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if _, ok := st.slots[s.SlotID]; !ok {
		return ErrNotFound
	}
	if _, ok := st.sessions[s.ID]; ok {
		return ErrConflict
	}
	if s.Open() {
		for _, existing := range st.sessions {
			if !existing.Open() {
				continue
			}
			if existing.SlotID == s.SlotID {
				return ErrConflict
			}
			if s.LicensePlate != models.UnknownPlate && existing.LicensePlate == s.LicensePlate {
				return ErrConflict
			}
		}
	}
	st.sessions[s.ID] = *s
	return nil
}

func (q *memQueries) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	s, ok := st.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (q *memQueries) FindOpenSessionBySlot(ctx context.Context, slotID string) (*models.Session, error) {
	return q.findOpenSession(ctx, func(s models.Session) bool { return s.SlotID == slotID })
}

func (q *memQueries) FindOpenSessionByPlate(ctx context.Context, plate string) (*models.Session, error) {
	return q.findOpenSession(ctx, func(s models.Session) bool { return s.LicensePlate == plate })
}

func (q *memQueries) findOpenSession(ctx context.Context, match func(models.Session) bool) (*models.Session, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	var found *models.Session
	for _, s := range st.sessions {
		if !s.Open() || !match(s) {
			continue
		}
		if found == nil || s.EntryTime.After(found.EntryTime) {
			s := s
			found = &s
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (q *memQueries) CloseSession(ctx context.Context, sessionID string, exit time.Time, durationMinutes, fee float64) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	s, ok := st.sessions[sessionID]
	if !ok || !s.Open() {
		return ErrNotFound
	}
	s.ExitTime.SetValid(exit)
	s.DurationMinutes.SetValid(durationMinutes)
	s.TotalFee.SetValid(fee)
	s.PaymentStatus = models.PaymentPaid
	st.sessions[sessionID] = s
	return nil
}

func (q *memQueries) LatestPricingRule(ctx context.Context) (*models.PricingRule, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	now := q.store.now()
	var latest *models.PricingRule
	for i := range st.rules {
		r := st.rules[i]
		if r.EffectiveFrom.After(now) {
			continue
		}
		if latest == nil || !r.EffectiveFrom.Before(latest.EffectiveFrom) {
			latest = &r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (q *memQueries) CreatePricingRule(ctx context.Context, rule *models.PricingRule) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	st.nextRuleID++
	rule.ID = st.nextRuleID
	st.rules = append(st.rules, *rule)
	return nil
}

func (q *memQueries) AppendSensorLog(ctx context.Context, entry *models.SensorLog) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	st.nextLogID++
	entry.ID = st.nextLogID
	st.logs = append(st.logs, *entry)
	return nil
}

func (q *memQueries) ListSensorLogs(ctx context.Context, slotID string, limit int) ([]models.SensorLog, error) {
	if limit <= 0 {
		limit = 50
	}
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	var logs []models.SensorLog
	for i := len(st.logs) - 1; i >= 0; i-- {
		if st.logs[i].SlotID == slotID {
			logs = append(logs, st.logs[i])
		}
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Timestamp.After(logs[j].Timestamp) })
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
