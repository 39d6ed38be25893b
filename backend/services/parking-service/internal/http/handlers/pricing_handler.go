package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/service"
)

// PricingHandler reads and appends pricing rules.
type PricingHandler struct {
	engine   *service.PricingEngine
	currency string
	logger   *zap.Logger
}

// NewPricingHandler builds handler set.
func NewPricingHandler(engine *service.PricingEngine, currency string, logger *zap.Logger) *PricingHandler {
	return &PricingHandler{engine: engine, currency: currency, logger: logger}
}

// Current handles GET /api/pricing-rules.
func (h *PricingHandler) Current(w http.ResponseWriter, r *http.Request) {
	rate, err := h.engine.CurrentRate(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "current rate", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ratePerHour": rate,
		"currency":    h.currency,
	})
}

type createRuleRequest struct {
	RatePerHour   float64    `json:"ratePerHour"`
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
}

// Create handles POST /api/pricing-rules.
func (h *PricingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, "add pricing rule", err)
		return
	}
	var from time.Time
	if req.EffectiveFrom != nil {
		from = *req.EffectiveFrom
	}
	rule, err := h.engine.AddRule(r.Context(), req.RatePerHour, from)
	if err != nil {
		writeServiceError(w, h.logger, "add pricing rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}
