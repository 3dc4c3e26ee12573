package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nanisveeha-crypto/svntex-app/internal/app"
	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
	"github.com/nanisveeha-crypto/svntex-app/internal/store"
	"github.com/nanisveeha-crypto/svntex-app/pkg/shopifyclient"
)

// EligibilityReader evaluates commission eligibility.
type EligibilityReader interface {
	GetEligibility(ctx context.Context, affiliateID uuid.UUID) (*domain.Eligibility, error)
}

// ProductCatalog lists Shopify products.
type ProductCatalog interface {
	ListProducts(ctx context.Context) (json.RawMessage, error)
}

// Handler serves the read endpoints.
type Handler struct {
	eligibility EligibilityReader
	catalog     ProductCatalog
	logger      *slog.Logger
}

func NewHandler(eligibility EligibilityReader, catalog ProductCatalog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{eligibility: eligibility, catalog: catalog, logger: logger}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) handleGetEligibility(w http.ResponseWriter, r *http.Request) {
	affiliateID, err := uuid.Parse(chi.URLParam(r, "affiliateID"))
	if err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid affiliate ID"})
		return
	}

	eligibility, err := h.eligibility.GetEligibility(r.Context(), affiliateID)
	if err != nil {
		if errors.Is(err, store.ErrAffiliateNotFound) {
			respondWithJSON(w, http.StatusNotFound, errorResponse{Error: "Affiliate not found"})
			return
		}
		h.logger.Error("failed to evaluate eligibility", "affiliate_id", affiliateID.String(), "error", err)
		respondWithJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to evaluate eligibility"})
		return
	}

	respondWithJSON(w, http.StatusOK, eligibility)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		var upstream *shopifyclient.UpstreamError
		switch {
		case errors.Is(err, store.ErrCredentialsNotFound):
			respondWithJSON(w, http.StatusNotFound, errorResponse{Error: "Shopify credentials not found"})
		case errors.Is(err, app.ErrCredentialsIncomplete):
			respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "Incomplete Shopify credentials"})
		case errors.As(err, &upstream):
			h.logger.Warn("shopify product request failed", "status", upstream.StatusCode)
			respondWithJSON(w, upstream.StatusCode, errorResponse{Error: "Shopify API error", Details: upstream.Body})
		default:
			h.logger.Error("failed to list shopify products", "error", err)
			respondWithJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(products)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
