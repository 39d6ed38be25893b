package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/gate"
	"smartpark/backend/services/parking-service/internal/http/handlers"
	"smartpark/backend/services/parking-service/internal/metrics"
	"smartpark/backend/services/parking-service/internal/models"
	"smartpark/backend/services/parking-service/internal/repository"
	"smartpark/backend/services/parking-service/internal/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type gateWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *gateWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *gateWriter) Close() error { return nil }

type testAPI struct {
	handler  http.Handler
	clock    *testClock
	ingestor *service.EventIngestor
	gates    *gateWriter
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}

	mem := repository.NewMemoryStore()
	mem.SetClock(clock.Now)
	m := metrics.New()

	slots := service.NewSlotRegistry(mem, nil, m, logger)
	pricing := service.NewPricingEngine(mem, 0, logger).WithClock(clock.Now)
	reservations := service.NewReservationManager(mem, slots, m, logger).WithClock(clock.Now)
	sessions := service.NewSessionManager(mem, slots, pricing, nil, m, "inr", logger)
	ingestor := service.NewEventIngestor(mem, slots, reservations, sessions, service.PolicyReject, m, logger)
	require.NoError(t, slots.Seed(context.Background(), 1, 3))

	gates := &gateWriter{}
	slotsHandler := handlers.NewSlotsHandler(slots, logger)
	reservationsHandler := handlers.NewReservationsHandler(reservations, logger)
	sessionsHandler := handlers.NewSessionsHandler(sessions, logger)
	pricingHandler := handlers.NewPricingHandler(pricing, "INR", logger)
	gateHandler := handlers.NewGateHandler(gate.NewCommander(gates, logger), logger)

	router := NewRouter(Routes{
		Health:            handlers.NewHealthHandler(nil),
		ListSlots:         slotsHandler.List,
		GetSlot:           slotsHandler.Get,
		SlotLogs:          slotsHandler.Logs,
		CreateReservation: reservationsHandler.Create,
		GetReservation:    reservationsHandler.Get,
		CancelReservation: reservationsHandler.Cancel,
		ParkingDetails:    sessionsHandler.Details,
		Checkout:          sessionsHandler.Checkout,
		CurrentPricing:    pricingHandler.Current,
		CreatePricingRule: pricingHandler.Create,
		GateCommand:       gateHandler.Command,
	}, Options{ServiceName: "parking-service-test", Metrics: m, Logger: logger})

	return &testAPI{handler: router, clock: clock, ingestor: ingestor, gates: gates}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestReserveAndCancelOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/reservations", map[string]string{"slotId": "A1", "licensePlate": "ka01ab1234"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[models.Reservation](t, rec)
	assert.Equal(t, "KA01AB1234", res.LicensePlate)
	assert.Equal(t, models.ReservationActive, res.Status)

	rec = api.do(t, http.MethodPost, "/api/reserve", map[string]string{"slotId": "A1", "licensePlate": "KA02"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/slots/A1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SlotReserved, decode[models.Slot](t, rec).Status)

	rec = api.do(t, http.MethodGet, "/api/reservations/"+res.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/reservations/"+res.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/reservations/"+res.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/slots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode[[]models.Slot](t, rec)
	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.Equal(t, models.SlotFree, s.Status, s.ID)
	}
}

func TestReserveRejectsBadInput(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/reservations", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/reservations", map[string]string{"slotId": "A1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/reservations", map[string]string{"slotId": "Z9", "licensePlate": "KA01"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/reservations/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "reservation not found")
}

func TestParkingDetailsAndCheckout(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/reservations", map[string]string{"slotId": "A2", "licensePlate": "KA01"})
	require.Equal(t, http.StatusCreated, rec.Code)

	outcome, err := api.ingestor.Handle(context.Background(), models.SensorEvent{
		SlotID:    "A2",
		Status:    models.OccupancyOccupied,
		Timestamp: api.clock.Now(),
		Source:    "test",
	})
	require.NoError(t, err)
	require.Equal(t, service.OutcomeEntryAuthorized, outcome)

	api.clock.Advance(90 * time.Minute)

	rec = api.do(t, http.MethodGet, "/api/parking-details?licensePlate=ka01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	details := decode[models.DetailsResponse](t, rec)
	assert.Equal(t, "A2", details.SlotID)
	assert.InDelta(t, 40.0, details.TotalFee, 0.001)

	rec = api.do(t, http.MethodGet, "/api/parking-details", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/parking-details?licensePlate=NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/parking-details?licensePlate=unknown", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/sessions/checkout", map[string]string{"licensePlate": "KA01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode[models.ExitReceipt](t, rec)
	assert.Equal(t, "INR", receipt.Currency)
	assert.InDelta(t, 40.0, receipt.TotalFee, 0.001)
	assert.InDelta(t, 90.0, receipt.DurationMinutes, 0.001)

	rec = api.do(t, http.MethodPost, "/api/sessions/checkout", map[string]string{"licensePlate": "KA01"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/slots/A2/logs?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"eventType":"ENTRY"`)
}

func TestPricingRulesOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/pricing-rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, service.DefaultRatePerHour, decode[map[string]interface{}](t, rec)["ratePerHour"], 0.001)

	rec = api.do(t, http.MethodPost, "/api/pricing-rules", map[string]float64{"ratePerHour": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/pricing-rules", map[string]float64{"ratePerHour": 35})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/pricing-rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 35.0, decode[map[string]interface{}](t, rec)["ratePerHour"], 0.001)
}

func TestGateCommandOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/gates/entry-1/commands", map[string]string{"command": "open"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	msg := decode[gate.Message](t, rec)
	assert.Equal(t, gate.CommandOpen, msg.Command)
	require.Len(t, api.gates.msgs, 1)
	assert.Equal(t, "entry-1", string(api.gates.msgs[0].Key))

	rec = api.do(t, http.MethodPost, "/api/gates/entry-1/commands", map[string]string{"command": "jump"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSlotReadErrors(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/slots/Z9", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/slots/Z9/logs", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/api/slots/A1/logs?limit=abc", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, api.do(t, http.MethodPut, "/api/slots", nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	api.do(t, http.MethodGet, "/api/slots", nil)
	rec = api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `parking_http_requests_total{route="/api/slots",status="200"} 1`), body)
}
