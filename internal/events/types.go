package events

import "time"

const (
	TypeAppointmentRescheduled = "appointment.rescheduled.v1"
	TypeAppointmentBooked      = "appointment.booked.v1"
)

// AppointmentRescheduledV1 is emitted after the backend accepted a new date or reason.
type AppointmentRescheduledV1 struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	PreviousDate  string    `json:"previous_date,omitempty"`
	NewDate       string    `json:"new_date"`
	Reason        string    `json:"reason"`
	Confirmation  string    `json:"confirmation"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (AppointmentRescheduledV1) EventType() string { return TypeAppointmentRescheduled }

// AppointmentBookedV1 is emitted after a new appointment was created.
type AppointmentBookedV1 struct {
	AppointmentID string    `json:"appointment_id,omitempty"`
	PatientID     string    `json:"patient_id"`
	Date          string    `json:"date"`
	Reason        string    `json:"reason"`
	Confirmation  string    `json:"confirmation"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (AppointmentBookedV1) EventType() string { return TypeAppointmentBooked }
