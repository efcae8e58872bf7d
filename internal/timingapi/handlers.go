// Package timingapi exposes the outbound Timing Decision API over HTTP:
// a synchronous request/reply endpoint a caller uses to ask "when should
// this recipient's next send go out."
package timingapi

import (
	"net/http"
	"time"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/pkg/httputil"
	"github.com/ignite/timing-intelligence/internal/timing/decision"
	"github.com/ignite/timing-intelligence/internal/timing/identity"
	"github.com/ignite/timing-intelligence/internal/timing/timingerr"
)

// Handlers holds the services the timing HTTP surface depends on.
type Handlers struct {
	resolver *identity.Service
	decider  *decision.Engine
}

// NewHandlers constructs the timing API handlers.
func NewHandlers(resolver *identity.Service, decider *decision.Engine) *Handlers {
	return &Handlers{resolver: resolver, decider: decider}
}

type identifiersPayload struct {
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	KlaviyoID         string `json:"klaviyo_id,omitempty"`
	ShopifyCustomerID string `json:"shopify_customer_id,omitempty"`
	EspUserID         string `json:"esp_user_id,omitempty"`
	IPDeviceSignature string `json:"ip_device_signature,omitempty"`
}

type decisionRequest struct {
	Identifiers            identifiersPayload `json:"identifiers"`
	SendAfter              *time.Time         `json:"send_after,omitempty"`
	SendBefore             *time.Time         `json:"send_before,omitempty"`
	LatencyEstimateSeconds *int               `json:"latency_estimate_seconds,omitempty"`
	ESP                    string             `json:"esp,omitempty"`
	CampaignClass          string             `json:"campaign_class,omitempty"`
}

type debugPayload struct {
	AppliedWeights      []domain.AppliedWeight `json:"applied_weights"`
	BaseCurvePeakMinute int                    `json:"base_curve_peak_minute"`
	Suppressed          bool                   `json:"suppressed"`
}

type decisionResponse struct {
	domain.TimingDecision
	Debug debugPayload `json:"debug"`
}

// Decide handles POST /timing/decide: resolves identity for the supplied
// identifiers and returns a Timing Decision.
func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	universalID, err := h.resolver.Resolve(r.Context(), identity.Input{
		Email:             req.Identifiers.Email,
		Phone:             req.Identifiers.Phone,
		KlaviyoID:         req.Identifiers.KlaviyoID,
		ShopifyCustomerID: req.Identifiers.ShopifyCustomerID,
		EspUserID:         req.Identifiers.EspUserID,
		IPDeviceSignature: req.Identifiers.IPDeviceSignature,
	})
	if err != nil {
		respondTimingError(w, err)
		return
	}

	d, err := h.decider.Decide(r.Context(), decision.Request{
		UniversalID:            universalID,
		SendAfter:              req.SendAfter,
		SendBefore:             req.SendBefore,
		LatencyEstimateSeconds: req.LatencyEstimateSeconds,
		ESP:                    req.ESP,
		CampaignClass:          req.CampaignClass,
	})
	if err != nil {
		respondTimingError(w, err)
		return
	}

	httputil.OK(w, decisionResponse{
		TimingDecision: d,
		Debug: debugPayload{
			AppliedWeights:      d.AppliedWeights,
			BaseCurvePeakMinute: d.BaseCurvePeakMinute,
			Suppressed:          d.Suppressed,
		},
	})
}

// Health handles GET /timing/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

func respondTimingError(w http.ResponseWriter, err error) {
	kind, ok := timingerr.KindOf(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, "backend_unavailable", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch kind {
	case timingerr.KindInvalidInput, timingerr.KindWindowExpired:
		status = http.StatusBadRequest
	case timingerr.KindIdentityUnresolved:
		status = http.StatusUnprocessableEntity
	case timingerr.KindTimeout:
		status = http.StatusGatewayTimeout
	case timingerr.KindCurveUnavailable, timingerr.KindPredictorUnavailable, timingerr.KindBackendUnavailable:
		status = http.StatusServiceUnavailable
	}
	respondError(w, status, string(kind), err.Error())
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	httputil.JSON(w, status, httputil.ErrorResponse{Error: message, Code: code})
}
