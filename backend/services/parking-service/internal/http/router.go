package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/metrics"
)

// Routes groups handlers. Nil handlers are not registered.
type Routes struct {
	Health http.HandlerFunc
	SlotWS http.HandlerFunc

	ListSlots http.HandlerFunc
	GetSlot   http.HandlerFunc
	SlotLogs  http.HandlerFunc

	CreateReservation http.HandlerFunc
	GetReservation    http.HandlerFunc
	CancelReservation http.HandlerFunc

	ParkingDetails http.HandlerFunc
	Checkout       http.HandlerFunc

	CurrentPricing    http.HandlerFunc
	CreatePricingRule http.HandlerFunc

	GateCommand http.HandlerFunc
}

// Options tune the router.
type Options struct {
	ServiceName    string
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

// NewRouter registers endpoints.
func NewRouter(routes Routes, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(tracing(opts.ServiceName))

	// prefix only labels metrics; chi already scopes pattern to the mounted group.
	handle := func(r chi.Router, prefix, method, pattern string, h http.HandlerFunc) {
		if h == nil {
			return
		}
		r.Method(method, pattern, opts.Metrics.WrapHandler(prefix+pattern, h))
	}

	handle(r, "", http.MethodGet, "/health", routes.Health)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	if routes.SlotWS != nil {
		r.Get("/ws/slots", routes.SlotWS)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(timeout))

		handle(api, "/api", http.MethodGet, "/slots", routes.ListSlots)
		handle(api, "/api", http.MethodGet, "/slots/{slotId}", routes.GetSlot)
		handle(api, "/api", http.MethodGet, "/slots/{slotId}/logs", routes.SlotLogs)

		handle(api, "/api", http.MethodPost, "/reservations", routes.CreateReservation)
		handle(api, "/api", http.MethodPost, "/reserve", routes.CreateReservation)
		handle(api, "/api", http.MethodGet, "/reservations/{reservationId}", routes.GetReservation)
		handle(api, "/api", http.MethodDelete, "/reservations/{reservationId}", routes.CancelReservation)

		handle(api, "/api", http.MethodGet, "/parking-details", routes.ParkingDetails)
		handle(api, "/api", http.MethodPost, "/sessions/checkout", routes.Checkout)

		handle(api, "/api", http.MethodGet, "/pricing-rules", routes.CurrentPricing)
		handle(api, "/api", http.MethodPost, "/pricing-rules", routes.CreatePricingRule)

		handle(api, "/api", http.MethodPost, "/gates/{gateId}/commands", routes.GateCommand)
	})

	return r
}
