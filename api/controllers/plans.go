package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pennyledger/pledger-backend/api/responses"
	"github.com/pennyledger/pledger-backend/internal/plans"
	"github.com/pennyledger/pledger-backend/pkg/db/models"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
	"github.com/pennyledger/pledger-backend/pkg/logger"
)

type planResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	MonthlyPrice  decimal.Decimal `json:"monthlyPrice"`
	AnnualPrice   decimal.Decimal `json:"annualPrice"`
	TrialDays     int             `json:"trialDays"`
	IsDefault     bool            `json:"isDefault"`
	FeatureLimits []string        `json:"featureLimits"`
}

// PlanList returns the active plan catalog. Archived plans stay queryable by
// id for history rendering but never show up here.
func PlanList(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		catalog, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]planResponse, 0, len(catalog))
		for i := range catalog {
			out = append(out, newPlanResponse(&catalog[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// PlanFetch returns a single plan by id, archived ones included.
func PlanFetch(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		planID := urlParam(r, "planId")
		if planID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required"))
			return
		}

		plan, err := svc.Get(r.Context(), planID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPlanResponse(plan))
	}
}

func newPlanResponse(plan *models.Plan) planResponse {
	limits := make([]string, 0, len(plan.FeatureLimits))
	limits = append(limits, plan.FeatureLimits...)
	return planResponse{
		ID:            plan.ID,
		Name:          plan.Name,
		MonthlyPrice:  plan.MonthlyPrice,
		AnnualPrice:   plan.AnnualPrice,
		TrialDays:     plan.TrialDays,
		IsDefault:     plan.IsDefault,
		FeatureLimits: limits,
	}
}
