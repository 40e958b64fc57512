package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/pennyledger/pledger-backend/internal/webhooks"
	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
)

type stubWebhookService struct {
	sub       *models.Subscription
	err       error
	lastEvent webhooks.GatewayEvent
	called    bool
}

func (s *stubWebhookService) Process(_ context.Context, event webhooks.GatewayEvent) (*models.Subscription, error) {
	s.called = true
	s.lastEvent = event
	return s.sub, s.err
}

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestGatewayWebhookAppliesEvent(t *testing.T) {
	subID := uuid.New()
	service := &stubWebhookService{sub: sampleSubscription(uuid.New())}
	handler := GatewayWebhook(service, "", testLogger())

	body := []byte(`{"subscriptionId":"` + subID.String() + `","status":"active","amount":"29.99","chargeRef":"ch_123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(body))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !service.called {
		t.Fatal("service should be invoked")
	}
	if service.lastEvent.NewStatus != enums.SubscriptionStatusActive {
		t.Fatalf("unexpected status: %q", service.lastEvent.NewStatus)
	}
	if service.lastEvent.SubscriptionID == nil || *service.lastEvent.SubscriptionID != subID {
		t.Fatal("subscription id not forwarded")
	}
	if service.lastEvent.ChargeRef == nil || *service.lastEvent.ChargeRef != "ch_123" {
		t.Fatal("charge ref not forwarded")
	}
}

func TestGatewayWebhookRejectsUnknownStatus(t *testing.T) {
	service := &stubWebhookService{}
	handler := GatewayWebhook(service, "", testLogger())

	body := []byte(`{"gatewayRef":"gw_1","status":"paused"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(body))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if service.called {
		t.Fatal("service should not run for an unknown status")
	}
}

func TestGatewayWebhookVerifiesSignature(t *testing.T) {
	service := &stubWebhookService{sub: sampleSubscription(uuid.New())}
	handler := GatewayWebhook(service, "topsecret", testLogger())

	body := []byte(`{"gatewayRef":"gw_1","status":"past_due"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code == http.StatusOK {
		t.Fatal("missing signature should be rejected")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", "deadbeef")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code == http.StatusOK {
		t.Fatal("bad signature should be rejected")
	}
	if service.called {
		t.Fatal("service should not run before signature check passes")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", signPayload(body, "topsecret"))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for a valid signature, got %d: %s", resp.Code, resp.Body.String())
	}
	if !service.called {
		t.Fatal("service should run after signature verification")
	}
}
