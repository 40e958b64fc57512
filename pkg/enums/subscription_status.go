package enums

import "fmt"

// SubscriptionStatus is the canonical lifecycle state of a subscription row.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusTrialing,
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
	SubscriptionStatusCancelled,
}

// liveSubscriptionStatuses are the states in which a subscription still grants
// service. At most one row per user may hold one of these.
var liveSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusTrialing,
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsLive reports whether the status still grants service.
func (s SubscriptionStatus) IsLive() bool {
	for _, candidate := range liveSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// LiveSubscriptionStatuses returns the set of statuses considered live.
func LiveSubscriptionStatuses() []SubscriptionStatus {
	out := make([]SubscriptionStatus, len(liveSubscriptionStatuses))
	copy(out, liveSubscriptionStatuses)
	return out
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}
