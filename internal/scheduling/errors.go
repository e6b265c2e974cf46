package scheduling

import (
	"errors"
	"fmt"
)

// Code identifies which business rule a candidate appointment broke.
type Code string

const (
	CodePastDate      Code = "past_date"
	CodeReasonTooLong Code = "reason_too_long"
)

// ValidationError is returned when a candidate date or reason breaks a rule.
// No network call is ever made after one.
type ValidationError struct {
	Code Code
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scheduling: invalid appointment: %s", e.Code)
}

// Message is the text shown to the patient.
func (e *ValidationError) Message() string {
	switch e.Code {
	case CodePastDate:
		return "Appointment date cannot be in the past."
	case CodeReasonTooLong:
		return "Reason must be less than 50 characters."
	default:
		return "Invalid appointment details."
	}
}

var (
	// ErrAvailabilityCheckFailed is returned when the daily count could not be read
	ErrAvailabilityCheckFailed = errors.New("scheduling: availability check failed")

	// ErrFullyBooked is returned when the candidate day already holds the daily cap
	ErrFullyBooked = errors.New("scheduling: day fully booked")

	// ErrUpdateFailed is returned when the backend rejected the update
	ErrUpdateFailed = errors.New("scheduling: update failed")

	// ErrBookingFailed is returned when the backend rejected a new booking
	ErrBookingFailed = errors.New("scheduling: booking failed")

	// ErrUnknownTransport covers write failures that produced no usable response
	ErrUnknownTransport = errors.New("scheduling: unknown transport error")

	// ErrUnknownAppointment is returned when the id is not in the patient's list
	ErrUnknownAppointment = errors.New("scheduling: appointment not in patient list")

	// ErrNotEditable is returned when the appointment being changed is dated before today
	ErrNotEditable = errors.New("scheduling: appointment is in the past")
)

// Outcome labels shared by metrics, audit rows and API responses.
const (
	OutcomeSuccess            = "success"
	OutcomePastDate           = string(CodePastDate)
	OutcomeReasonTooLong      = string(CodeReasonTooLong)
	OutcomeAvailabilityFailed = "availability_check_failed"
	OutcomeFullyBooked        = "fully_booked"
	OutcomeUpdateFailed       = "update_failed"
	OutcomeBookingFailed      = "booking_failed"
	OutcomeUnknownTransport   = "unknown_transport"
	OutcomeNotFound           = "not_found"
	OutcomeNotEditable        = "not_editable"
)

// Kind maps a workflow error to its outcome label. nil is a success.
func Kind(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return string(verr.Code)
	case errors.Is(err, ErrFullyBooked):
		return OutcomeFullyBooked
	case errors.Is(err, ErrAvailabilityCheckFailed):
		return OutcomeAvailabilityFailed
	case errors.Is(err, ErrUpdateFailed):
		return OutcomeUpdateFailed
	case errors.Is(err, ErrBookingFailed):
		return OutcomeBookingFailed
	case errors.Is(err, ErrUnknownAppointment):
		return OutcomeNotFound
	case errors.Is(err, ErrNotEditable):
		return OutcomeNotEditable
	default:
		return OutcomeUnknownTransport
	}
}

// Message maps a workflow error to the text shown to the patient.
func Message(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message()
	}
	switch Kind(err) {
	case OutcomeFullyBooked:
		return "All appointments are booked for this day already. Please select another convenient day for consulting doctors."
	case OutcomeAvailabilityFailed:
		return "Error checking appointment availability."
	case OutcomeUpdateFailed:
		return "Failed to update appointment"
	case OutcomeBookingFailed:
		return "Failed to book appointment"
	case OutcomeNotFound:
		return "Appointment not found."
	case OutcomeNotEditable:
		return "Past appointments cannot be edited."
	default:
		return "An error occurred"
	}
}
