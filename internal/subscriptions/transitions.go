package subscriptions

import (
	"time"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
)

// transitionTable is the single source of truth for reachable status changes.
// cancelled is terminal; a new subscription instance is required to resume.
var transitionTable = map[enums.SubscriptionStatus][]enums.SubscriptionStatus{
	enums.SubscriptionStatusTrialing: {
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusPastDue,
		enums.SubscriptionStatusCancelled,
	},
	enums.SubscriptionStatusActive: {
		enums.SubscriptionStatusPastDue,
		enums.SubscriptionStatusCancelled,
	},
	enums.SubscriptionStatusPastDue: {
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusCancelled,
	},
	enums.SubscriptionStatusCancelled: {},
}

// CanTransition reports whether the table permits from -> to.
func CanTransition(from, to enums.SubscriptionStatus) bool {
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// derivedPaymentStatus classifies the ledger row a status change produces.
func derivedPaymentStatus(from, to enums.SubscriptionStatus) enums.PaymentStatus {
	switch {
	case to == enums.SubscriptionStatusActive && from != enums.SubscriptionStatusActive:
		return enums.PaymentStatusCompleted
	case to == enums.SubscriptionStatusPastDue:
		return enums.PaymentStatusFailed
	case to == enums.SubscriptionStatusCancelled:
		return enums.PaymentStatusCancelled
	default:
		return enums.PaymentStatusPending
	}
}

// IsLive reports whether the subscription currently grants service.
func IsLive(sub *models.Subscription) bool {
	if sub == nil {
		return false
	}
	return sub.Status.IsLive()
}

// IsInTrial reports whether the subscription is in an unexpired trial.
func IsInTrial(sub *models.Subscription) bool {
	if sub == nil || sub.Status != enums.SubscriptionStatusTrialing {
		return false
	}
	if sub.TrialEndDate == nil {
		return sub.IsTrialActive
	}
	return time.Now().Before(*sub.TrialEndDate)
}

// TrialDaysRemaining returns whole days left in the trial, zero when none.
func TrialDaysRemaining(sub *models.Subscription) int {
	if !IsInTrial(sub) || sub.TrialEndDate == nil {
		return 0
	}
	remaining := time.Until(*sub.TrialEndDate)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// periodEnd returns the first billing-period boundary after now, counting
// whole cycles from the subscription start.
func periodEnd(start time.Time, cycle enums.BillingCycle, now time.Time) time.Time {
	boundary := start
	for !boundary.After(now) {
		if cycle == enums.BillingCycleAnnual {
			boundary = boundary.AddDate(1, 0, 0)
		} else {
			boundary = boundary.AddDate(0, 1, 0)
		}
	}
	return boundary
}
