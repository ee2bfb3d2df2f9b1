package identity

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abrium/abrium/internal/logging"
	"github.com/abrium/abrium/internal/metrics"
	"github.com/abrium/abrium/internal/response"
)

const signatureHeader = "x-dynamic-signature-256"

// Handler serves the Dynamic webhook endpoint
type Handler struct {
	store  Store
	secret string
}

// NewHandler creates an identity webhook handler
func NewHandler(store Store, secret string) *Handler {
	return &Handler{store: store, secret: secret}
}

// RegisterRoutes registers identity routes on the given router group
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/dynamic", h.DynamicWebhook)
}

// DynamicWebhook handles POST /webhooks/dynamic
func (h *Handler) DynamicWebhook(c *gin.Context) {
	log := logging.FromContext(c.Request.Context())

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil || len(rawBody) == 0 {
		metrics.WebhookEventsTotal.WithLabelValues("invalid_body").Inc()
		response.Fail(c, "Expected raw request body", http.StatusBadRequest)
		return
	}

	ok, err := VerifySignature(h.secret, rawBody, c.GetHeader(signatureHeader))
	if err != nil {
		log.Error("webhook secret misconfigured", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		response.Error(c, "Webhook processing failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		metrics.WebhookEventsTotal.WithLabelValues("invalid_signature").Inc()
		response.Fail(c, "Invalid webhook signature", http.StatusUnauthorized)
		return
	}

	event, err := ParseEvent(rawBody)
	if err != nil {
		log.Error("webhook payload rejected", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		response.Error(c, "Webhook processing failed", http.StatusInternalServerError)
		return
	}

	duplicate, err := h.store.ProcessEvent(c.Request.Context(), event)
	if err != nil {
		log.Error("webhook processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err)
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		response.Error(c, "Webhook processing failed", http.StatusInternalServerError)
		return
	}

	if duplicate {
		log.Info("webhook already processed", "event_id", event.ID, "event_type", event.Type)
		metrics.WebhookEventsTotal.WithLabelValues("duplicate").Inc()
		response.OK(c, "Webhook already processed", http.StatusOK, gin.H{"ok": true, "duplicate": true})
		return
	}

	log.Info("webhook processed", "event_id", event.ID, "event_type", event.Type)
	metrics.WebhookEventsTotal.WithLabelValues("processed").Inc()
	response.OK(c, "Webhook processed successfully", http.StatusOK, gin.H{"ok": true})
}
