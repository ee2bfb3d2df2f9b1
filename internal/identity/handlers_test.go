package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abrium/abrium/internal/response"
)

type failingIdentityStore struct{}

func (failingIdentityStore) ProcessEvent(context.Context, *Event) (bool, error) {
	return false, errors.New("db down")
}

var _ Store = failingIdentityStore{}

func setupWebhookRouter(store Store, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(store, secret).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postWebhook(t *testing.T, r *gin.Engine, body []byte, signature string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/dynamic", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("x-dynamic-signature-256", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestWebhookProcessesEvent(t *testing.T) {
	store := NewMemoryStore()
	r := setupWebhookRouter(store, testSecret)

	body := []byte(`{
		"id": "evt_1",
		"type": "user.created",
		"data": {
			"userId": "dyn_1",
			"email": "alice@example.com",
			"wallets": [{"address": "` + addrOne + `", "walletProvider": "metamask"}]
		}
	}`)
	w, envelope := postWebhook(t, r, body, "sha256="+sign(testSecret, body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, envelope.Success)
	assert.Equal(t, "Webhook processed successfully", envelope.Message)

	user := store.User("dyn_1")
	require.NotNil(t, user)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Len(t, store.Wallets("dyn_1"), 1)
}

func TestWebhookReportsDuplicate(t *testing.T) {
	store := NewMemoryStore()
	r := setupWebhookRouter(store, testSecret)

	body := []byte(`{"id": "evt_1", "type": "user.created"}`)
	signature := sign(testSecret, body)

	w, _ := postWebhook(t, r, body, signature)
	require.Equal(t, http.StatusOK, w.Code)

	w, envelope := postWebhook(t, r, body, signature)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, envelope.Success)
	assert.Equal(t, "Webhook already processed", envelope.Message)

	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["duplicate"])
}

func TestWebhookRejectsEmptyBody(t *testing.T) {
	r := setupWebhookRouter(NewMemoryStore(), testSecret)

	w, envelope := postWebhook(t, r, []byte{}, "sha256=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, envelope.Success)
	assert.False(t, envelope.Error)
	assert.Equal(t, "Expected raw request body", envelope.Message)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	store := NewMemoryStore()
	r := setupWebhookRouter(store, testSecret)

	body := []byte(`{"id": "evt_1", "type": "user.created"}`)
	w, envelope := postWebhook(t, r, body, "sha256="+sign("wrong-secret", body))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid webhook signature", envelope.Message)

	_, dup := store.seen["evt_1"]
	assert.False(t, dup, "unsigned events are not recorded")
}

func TestWebhookMissingSecretFailsClosed(t *testing.T) {
	r := setupWebhookRouter(NewMemoryStore(), "")

	body := []byte(`{"id": "evt_1", "type": "user.created"}`)
	w, envelope := postWebhook(t, r, body, "sha256="+sign(testSecret, body))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, envelope.Error)
	assert.Equal(t, "Webhook processing failed", envelope.Message)
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	r := setupWebhookRouter(NewMemoryStore(), testSecret)

	body := []byte(`{"id": "evt_1"`)
	w, envelope := postWebhook(t, r, body, sign(testSecret, body))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Webhook processing failed", envelope.Message)
}

func TestWebhookStoreFailure(t *testing.T) {
	r := setupWebhookRouter(failingIdentityStore{}, testSecret)

	body := []byte(`{"id": "evt_1", "type": "user.created"}`)
	w, envelope := postWebhook(t, r, body, sign(testSecret, body))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, envelope.Error)
	assert.Equal(t, "Webhook processing failed", envelope.Message)
}
