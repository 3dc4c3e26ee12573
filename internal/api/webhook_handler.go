/**
 * @description
 * HTTP handler for Shopify order webhooks. This is the only write path into the
 * PV ledger.
 *
 * Key features:
 * - Security: the HMAC signature is checked against the raw body before any parsing.
 * - Routing: only orders/paid reaches the ledger; other topics are acknowledged.
 * - Acknowledgement: 200 is returned only once the order is durably applied or
 *   known to be a duplicate, so Shopify retries every delivery that failed.
 */
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nanisveeha-crypto/svntex-app/internal/app"
	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
	"github.com/nanisveeha-crypto/svntex-app/internal/metrics"
)

const (
	HeaderTopic      = "X-Shopify-Topic"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
)

// ErrBodyTooLarge is returned when a delivery exceeds the configured body limit.
var ErrBodyTooLarge = errors.New("webhook body exceeds size limit")

// Acknowledgement statuses for deliveries that did not change the ledger.
const (
	ackIgnored = "ignored"
	ackSkipped = "skipped"
)

// LedgerApplier applies verified order-paid commands.
type LedgerApplier interface {
	ApplyOrderPaid(ctx context.Context, order domain.OrderPaid) (*domain.LedgerResult, error)
}

// WebhookHandler processes incoming Shopify webhooks.
type WebhookHandler struct {
	ledger       LedgerApplier
	secret       string
	maxBodyBytes int64
	timeout      time.Duration
	logger       *slog.Logger
}

type webhookAck struct {
	Status     string `json:"status"`
	OrderID    string `json:"order_id,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// NewWebhookHandler creates a new handler for the webhook endpoint.
func NewWebhookHandler(ledger LedgerApplier, secret string, maxBodyBytes int64, timeout time.Duration, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		ledger:       ledger,
		secret:       secret,
		maxBodyBytes: maxBodyBytes,
		timeout:      timeout,
		logger:       logger,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	defer func() {
		metrics.WebhookProcessingDuration.Observe(time.Since(startTime).Seconds())
	}()

	topic := strings.TrimSpace(r.Header.Get(HeaderTopic))
	meta := app.DeliveryMeta{
		WebhookID:  r.Header.Get(HeaderWebhookID),
		Topic:      topic,
		ShopDomain: r.Header.Get(HeaderShopDomain),
	}
	logger := h.logger.With(
		"request_id", requestID(r),
		"topic", topic,
		"webhook_id", meta.WebhookID,
		"shop_domain", meta.ShopDomain,
	)

	// 1. Read the exact bytes that were signed.
	body, err := h.readRawBody(w, r)
	if errors.Is(err, ErrBodyTooLarge) {
		logger.Error("webhook body over limit; raise WEBHOOK_MAX_BODY_BYTES to accept it", "limit_bytes", h.maxBodyBytes)
		h.record("too_large")
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		logger.Warn("webhook body unavailable", "error", err)
		h.record("bad_request")
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	// 2. Authenticate before looking at the payload.
	if err := VerifySignature(h.secret, body, r.Header.Get(HeaderHmacSHA256)); err != nil {
		if errors.Is(err, ErrRawBodyUnavailable) {
			logger.Warn("webhook body unavailable", "error", err)
			h.record("bad_request")
			http.Error(w, "Cannot read request body", http.StatusBadRequest)
			return
		}
		logger.Warn("webhook signature rejected", "error", err, "remote_addr", r.RemoteAddr)
		h.record("unauthorized")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	// 3. Route by topic.
	if app.RouteTopic(topic) != app.TopicApplyLedger {
		logger.Info("webhook topic ignored")
		h.record(ackIgnored)
		respondWithJSON(w, http.StatusOK, webhookAck{Status: ackIgnored})
		return
	}

	// 4. Decode. An authentic payload the ledger cannot use is acknowledged so
	// Shopify stops retrying it.
	order, err := app.DecodeOrderPaid(body, meta)
	if err != nil {
		logger.Warn("order payload skipped", "error", err)
		h.record(ackSkipped)
		respondWithJSON(w, http.StatusOK, webhookAck{Status: ackSkipped})
		return
	}

	// 5. Apply.
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.ledger.ApplyOrderPaid(ctx, order)
	if err != nil {
		if errors.Is(err, app.ErrInvalidOrder) {
			logger.Warn("order payload skipped", "order_id", order.OrderID, "error", err)
			h.record(ackSkipped)
			respondWithJSON(w, http.StatusOK, webhookAck{Status: ackSkipped, OrderID: order.OrderID})
			return
		}
		logger.Error("failed to apply order to ledger", "order_id", order.OrderID, "error", err)
		h.record("error")
		http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}

	h.record(string(result.Status))
	if result.Status == domain.LedgerApplied {
		metrics.LedgerPVAppliedTotal.Add(order.TotalPrice.InexactFloat64())
		if result.Affiliate != nil && result.Affiliate.Activated {
			metrics.AffiliateActivationsTotal.Inc()
		}
	}

	respondWithJSON(w, http.StatusOK, webhookAck{
		Status:     string(result.Status),
		OrderID:    result.OrderID,
		Resolution: string(result.Resolution),
	})
}

func (h *WebhookHandler) readRawBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, ErrRawBodyUnavailable
	}
	reader := io.Reader(r.Body)
	if h.maxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrBodyTooLarge
		}
		return nil, errors.Join(ErrRawBodyUnavailable, err)
	}
	if len(body) == 0 {
		return nil, ErrRawBodyUnavailable
	}
	return body, nil
}

func (h *WebhookHandler) record(outcome string) {
	metrics.WebhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}

func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(middleware.RequestIDHeader)
}
