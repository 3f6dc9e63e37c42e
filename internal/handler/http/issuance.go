package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bokzor/revenue-boost/internal/domain"
	"github.com/bokzor/revenue-boost/internal/service"
	apperrors "github.com/bokzor/revenue-boost/pkg/errors"
	"github.com/bokzor/revenue-boost/pkg/middleware"
	"github.com/bokzor/revenue-boost/pkg/validator"
)

// IssuanceHandler handles HTTP requests for discount issuance endpoints.
type IssuanceHandler struct {
	service *service.IssuanceService
	logger  *slog.Logger
}

// NewIssuanceHandler creates a new issuance HTTP handler.
func NewIssuanceHandler(svc *service.IssuanceService, logger *slog.Logger) *IssuanceHandler {
	return &IssuanceHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request / response DTOs ---

// IssueDiscountRequest is the JSON request body for issuing a discount code.
// The session identity comes from the authenticated session, not the body.
type IssueDiscountRequest struct {
	CampaignID         string   `json:"campaign_id" validate:"required,max=2048"`
	CartSubtotalCents  *int64   `json:"cart_subtotal_cents" validate:"omitempty,gte=0"`
	SelectedProductIDs []string `json:"selected_product_ids" validate:"omitempty,max=100,dive,required"`
	CartProductIDs     []string `json:"cart_product_ids" validate:"omitempty,max=250,dive,required"`
}

// IssueDiscountResponse is the success envelope for an issued code.
type IssueDiscountResponse struct {
	Success        bool                  `json:"success"`
	Code           string                `json:"code"`
	Type           string                `json:"type"`
	TierUsed       string                `json:"tier_used,omitempty"`
	ExpiresAt      *time.Time            `json:"expires_at,omitempty"`
	UsageRemaining *int                  `json:"usage_remaining,omitempty"`
	Applicability  *domain.Applicability `json:"applicability,omitempty"`
	Behavior       string                `json:"behavior"`
	Cached         bool                  `json:"cached,omitempty"`
	Preview        bool                  `json:"preview,omitempty"`
}

// CampaignDiscountResponse is the public widget view of a campaign's
// discount configuration. Codes are never included here.
type CampaignDiscountResponse struct {
	Success   bool                 `json:"success"`
	Enabled   bool                 `json:"enabled"`
	Strategy  string               `json:"strategy"`
	Value     float64              `json:"value"`
	ValueType string               `json:"value_type"`
	Tiers     []domain.Tier        `json:"tiers,omitempty"`
	Behavior  string               `json:"behavior"`
	Scope     domain.Applicability `json:"applicability"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// --- Handlers ---

// IssueDiscount handles POST /api/v1/discounts/issue
func (h *IssuanceHandler) IssueDiscount(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req IssueDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "missing session")
		return
	}

	result, err := h.service.IssueDiscount(r.Context(), service.IssueDiscountInput{
		StoreID:            session.StoreID,
		CampaignID:         req.CampaignID,
		SessionID:          session.SessionID,
		CartSubtotalCents:  req.CartSubtotalCents,
		SelectedProductIDs: req.SelectedProductIDs,
		CartProductIDs:     req.CartProductIDs,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	applicability := result.Applicability
	writeJSON(w, http.StatusOK, IssueDiscountResponse{
		Success:        true,
		Code:           result.Code,
		Type:           string(result.Strategy),
		TierUsed:       result.TierUsed,
		ExpiresAt:      result.ExpiresAt,
		UsageRemaining: result.UsageRemaining,
		Applicability:  &applicability,
		Behavior:       string(result.Behavior),
		Cached:         result.Cached,
		Preview:        result.Preview,
	})
}

// GetCampaignDiscount handles GET /api/v1/campaigns/{id}/discount
func (h *IssuanceHandler) GetCampaignDiscount(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")
	if campaignID == "" {
		writeFailure(w, http.StatusBadRequest, "campaign id is required")
		return
	}

	cfg, err := h.service.CampaignDiscount(r.Context(), campaignID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CampaignDiscountResponse{
		Success:   true,
		Enabled:   cfg.Enabled,
		Strategy:  string(cfg.Strategy),
		Value:     cfg.Value,
		ValueType: string(cfg.ValueType),
		Tiers:     cfg.Tiers,
		Behavior:  string(cfg.Behavior),
		Scope:     cfg.Applicability,
	})
}

// --- Helpers ---

func (h *IssuanceHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)

	message := "an internal error occurred"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && status < http.StatusInternalServerError {
		message = appErr.Message
	}
	if errors.Is(err, apperrors.ErrProvisioningFailed) {
		message = "failed to provision discount code"
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
		)
	}

	writeFailure(w, status, message)
}

func (h *IssuanceHandler) writeValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeFailure(w, http.StatusBadRequest, "request validation failed: "+valErr.Error())
		return
	}
	writeFailure(w, http.StatusBadRequest, err.Error())
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, failureResponse{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
