package enums

import "fmt"

// PaymentMode records how a ledger entry was (or will be) settled.
type PaymentMode string

const (
	PaymentModeCard  PaymentMode = "card"
	PaymentModeBank  PaymentMode = "bank"
	PaymentModeOther PaymentMode = "other"
	// PaymentModePending marks records still awaiting a gateway callback.
	PaymentModePending PaymentMode = "pending"
)

var validPaymentModes = []PaymentMode{
	PaymentModeCard,
	PaymentModeBank,
	PaymentModeOther,
	PaymentModePending,
}

// String implements fmt.Stringer.
func (p PaymentMode) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMode.
func (p PaymentMode) IsValid() bool {
	for _, candidate := range validPaymentModes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMode converts raw input into a PaymentMode.
func ParsePaymentMode(value string) (PaymentMode, error) {
	for _, candidate := range validPaymentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}
