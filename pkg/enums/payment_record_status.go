package enums

import "slices"

// PaymentRecordStatus is the outcome of a single settlement event.
type PaymentRecordStatus string

const (
	PaymentRecordStatusCompleted PaymentRecordStatus = "completed"
	PaymentRecordStatusFailed    PaymentRecordStatus = "failed"
	PaymentRecordStatusRefunded  PaymentRecordStatus = "refunded"
)

var validPaymentRecordStatuses = []PaymentRecordStatus{
	PaymentRecordStatusCompleted,
	PaymentRecordStatusFailed,
	PaymentRecordStatusRefunded,
}

// String implements fmt.Stringer.
func (p PaymentRecordStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentRecordStatus.
func (p PaymentRecordStatus) IsValid() bool {
	return slices.Contains(validPaymentRecordStatuses, p)
}

// ParsePaymentRecordStatus converts raw input into a PaymentRecordStatus.
func ParsePaymentRecordStatus(value string) (PaymentRecordStatus, error) {
	return parseEnum("payment record status", value, validPaymentRecordStatuses)
}
