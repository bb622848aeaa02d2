package enums

import "slices"

// RecurringFrequency is the cadence of a recurring invoice.
type RecurringFrequency string

const (
	RecurringFrequencyMonthly   RecurringFrequency = "monthly"
	RecurringFrequencyQuarterly RecurringFrequency = "quarterly"
	RecurringFrequencyYearly    RecurringFrequency = "yearly"
)

var validRecurringFrequencies = []RecurringFrequency{
	RecurringFrequencyMonthly,
	RecurringFrequencyQuarterly,
	RecurringFrequencyYearly,
}

// String implements fmt.Stringer.
func (r RecurringFrequency) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RecurringFrequency.
func (r RecurringFrequency) IsValid() bool {
	return slices.Contains(validRecurringFrequencies, r)
}

// ParseRecurringFrequency converts raw input into a RecurringFrequency.
func ParseRecurringFrequency(value string) (RecurringFrequency, error) {
	return parseEnum("recurring frequency", value, validRecurringFrequencies)
}
