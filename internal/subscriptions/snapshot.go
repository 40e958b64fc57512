package subscriptions

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
)

// UserDetails is the caller-supplied user snapshot. It is copied verbatim
// into the subscription and ledger rows and never re-fetched afterwards.
type UserDetails struct {
	UserID    uuid.UUID `json:"userId" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
}

// newSubscription builds a history row from the plan snapshot. Plan fields
// are denormalized here on purpose: later catalog edits must not rewrite the
// terms a user signed up under.
func newSubscription(user UserDetails, plan *models.Plan, cycle enums.BillingCycle, now time.Time) *models.Subscription {
	sub := &models.Subscription{
		ID:            uuid.New(),
		UserID:        user.UserID,
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		MonthlyPrice:  plan.MonthlyPrice,
		AnnualPrice:   plan.AnnualPrice,
		BillingCycle:  cycle,
		Status:        enums.SubscriptionStatusActive,
		StartDate:     now,
		UserEmail:     user.Email,
		UserFirstName: user.FirstName,
		UserLastName:  user.LastName,
		CreatedAt:     now,
	}
	if plan.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, plan.TrialDays)
		sub.Status = enums.SubscriptionStatusTrialing
		sub.TrialEndDate = &trialEnd
		sub.IsTrialActive = true
	}
	return sub
}

// indexSnapshot projects the full denormalized copy for the active index.
func indexSnapshot(sub *models.Subscription) models.ActiveSubscription {
	return models.ActiveSubscription{
		UserID:            sub.UserID,
		SubscriptionID:    sub.ID,
		PlanID:            sub.PlanID,
		PlanName:          sub.PlanName,
		MonthlyPrice:      sub.MonthlyPrice,
		AnnualPrice:       sub.AnnualPrice,
		BillingCycle:      sub.BillingCycle,
		Status:            sub.Status,
		StartDate:         sub.StartDate,
		EndDate:           sub.EndDate,
		TrialEndDate:      sub.TrialEndDate,
		IsTrialActive:     sub.IsTrialActive,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
}

// userDetailsJSON freezes the user snapshot for the ledger audit column.
func userDetailsJSON(sub *models.Subscription) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{
		"userId":    sub.UserID.String(),
		"email":     sub.UserEmail,
		"firstName": sub.UserFirstName,
		"lastName":  sub.UserLastName,
	})
	return raw
}

// subscriptionDetailsJSON freezes the subscription terms for the audit column.
func subscriptionDetailsJSON(sub *models.Subscription) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"subscriptionId": sub.ID.String(),
		"planId":         sub.PlanID,
		"planName":       sub.PlanName,
		"billingCycle":   sub.BillingCycle,
		"status":         sub.Status,
		"startDate":      sub.StartDate,
	})
	return raw
}
