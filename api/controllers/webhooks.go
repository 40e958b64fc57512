package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/api/responses"
	"github.com/pennyledger/pledger-backend/internal/webhooks"
	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
	"github.com/pennyledger/pledger-backend/pkg/logger"
)

// GatewayWebhookService applies a gateway event to the subscription it
// targets.
type GatewayWebhookService interface {
	Process(ctx context.Context, event webhooks.GatewayEvent) (*models.Subscription, error)
}

type gatewayWebhookPayload struct {
	SubscriptionID *uuid.UUID       `json:"subscriptionId,omitempty"`
	GatewayRef     *string          `json:"gatewayRef,omitempty"`
	Status         string           `json:"status"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	ChargeRef      *string          `json:"chargeRef,omitempty"`
}

// GatewayWebhook ingests payment gateway callbacks. The body is verified
// against the shared signing secret when one is configured; deduplication and
// out-of-order handling live in the service.
func GatewayWebhook(svc GatewayWebhookService, signingSecret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if signingSecret != "" {
			sigHeader := r.Header.Get("X-Gateway-Signature")
			if sigHeader == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "gateway signature missing"))
				return
			}
			if !validateGatewaySignature(payload, signingSecret, sigHeader) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "invalid gateway signature"))
				return
			}
		}

		var body gatewayWebhookPayload
		if err := json.Unmarshal(payload, &body); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		status, err := enums.ParseSubscriptionStatus(body.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		sub, err := svc.Process(ctx, webhooks.GatewayEvent{
			SubscriptionID: body.SubscriptionID,
			GatewayRef:     body.GatewayRef,
			NewStatus:      status,
			Amount:         body.Amount,
			ChargeRef:      body.ChargeRef,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func validateGatewaySignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
