package scheduling

import (
	"time"
	"unicode/utf8"

	"github.com/hospitalms/patient-portal/internal/appointments"
)

// MaxReasonLength is the longest reason accepted, in characters.
const MaxReasonLength = 50

// Validate checks a candidate date and reason against the scheduling rules.
// The past-date rule runs first and only when date parses; an empty or
// malformed date is left to request validation. Both sides of the date
// comparison are whole days in now's location.
func Validate(date, reason string, now time.Time) error {
	if candidate, err := appointments.ParseDate(date); err == nil && !candidate.IsZero() {
		if candidate.Before(appointments.DateOf(now)) {
			return &ValidationError{Code: CodePastDate}
		}
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return &ValidationError{Code: CodeReasonTooLong}
	}
	return nil
}
