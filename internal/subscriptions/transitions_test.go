package subscriptions

import (
	"testing"
	"time"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to enums.SubscriptionStatus
		want     bool
	}{
		{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusActive, true},
		{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusPastDue, true},
		{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusCancelled, true},
		{enums.SubscriptionStatusActive, enums.SubscriptionStatusPastDue, true},
		{enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled, true},
		{enums.SubscriptionStatusActive, enums.SubscriptionStatusTrialing, false},
		{enums.SubscriptionStatusPastDue, enums.SubscriptionStatusActive, true},
		{enums.SubscriptionStatusPastDue, enums.SubscriptionStatusCancelled, true},
		{enums.SubscriptionStatusPastDue, enums.SubscriptionStatusTrialing, false},
		{enums.SubscriptionStatusCancelled, enums.SubscriptionStatusActive, false},
		{enums.SubscriptionStatusCancelled, enums.SubscriptionStatusTrialing, false},
		{enums.SubscriptionStatusCancelled, enums.SubscriptionStatusPastDue, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDerivedPaymentStatus(t *testing.T) {
	cases := []struct {
		from, to enums.SubscriptionStatus
		want     enums.PaymentStatus
	}{
		{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusActive, enums.PaymentStatusCompleted},
		{enums.SubscriptionStatusPastDue, enums.SubscriptionStatusActive, enums.PaymentStatusCompleted},
		{enums.SubscriptionStatusActive, enums.SubscriptionStatusPastDue, enums.PaymentStatusFailed},
		{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusPastDue, enums.PaymentStatusFailed},
		{enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled, enums.PaymentStatusCancelled},
		{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusCancelled, enums.PaymentStatusCancelled},
	}
	for _, tc := range cases {
		if got := derivedPaymentStatus(tc.from, tc.to); got != tc.want {
			t.Errorf("derivedPaymentStatus(%s, %s) = %s, want %s", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsInTrial(t *testing.T) {
	future := time.Now().Add(48 * time.Hour)
	past := time.Now().Add(-time.Hour)

	if IsInTrial(nil) {
		t.Fatal("nil subscription is never in trial")
	}
	if IsInTrial(&models.Subscription{Status: enums.SubscriptionStatusActive, TrialEndDate: &future}) {
		t.Fatal("active subscription is not trialing")
	}
	if !IsInTrial(&models.Subscription{Status: enums.SubscriptionStatusTrialing, TrialEndDate: &future}) {
		t.Fatal("unexpired trial should report in-trial")
	}
	if IsInTrial(&models.Subscription{Status: enums.SubscriptionStatusTrialing, TrialEndDate: &past}) {
		t.Fatal("expired trial should not report in-trial")
	}
}

func TestTrialDaysRemaining(t *testing.T) {
	end := time.Now().Add(36 * time.Hour)
	sub := &models.Subscription{Status: enums.SubscriptionStatusTrialing, TrialEndDate: &end}
	if got := TrialDaysRemaining(sub); got != 2 {
		t.Fatalf("36h remaining should round up to 2 days, got %d", got)
	}
	past := time.Now().Add(-time.Hour)
	if got := TrialDaysRemaining(&models.Subscription{Status: enums.SubscriptionStatusTrialing, TrialEndDate: &past}); got != 0 {
		t.Fatalf("expired trial should report 0 days, got %d", got)
	}
	if got := TrialDaysRemaining(nil); got != 0 {
		t.Fatalf("nil subscription should report 0 days, got %d", got)
	}
}

func TestPeriodEnd(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	got := periodEnd(start, enums.BillingCycleMonthly, now)
	want := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("monthly boundary = %s, want %s", got, want)
	}

	got = periodEnd(start, enums.BillingCycleAnnual, now)
	want = time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("annual boundary = %s, want %s", got, want)
	}

	// A start in the future is already past the current period.
	future := start.AddDate(0, 2, 0)
	got = periodEnd(future, enums.BillingCycleMonthly, now)
	if !got.Equal(future) {
		t.Fatalf("future start should be its own boundary, got %s", got)
	}
}
