package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pennyledger/pledger-backend/api/middleware"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
)

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// resolveUserID pulls the authenticated caller out of the request context.
func resolveUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "malformed user id")
	}
	return id, nil
}

func parseSubscriptionID(r *http.Request) (uuid.UUID, error) {
	raw := urlParam(r, "subscriptionId")
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed subscription id")
	}
	return id, nil
}
