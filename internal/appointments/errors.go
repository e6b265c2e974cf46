package appointments

import "errors"

var (
	// ErrNotFound is returned when no appointment in the store has the given id
	ErrNotFound = errors.New("appointments: appointment not found")

	// ErrDuplicateID is returned when adding an appointment whose id is already present
	ErrDuplicateID = errors.New("appointments: duplicate appointment id")

	// ErrNotEditable is returned when selecting an appointment dated before today
	ErrNotEditable = errors.New("appointments: appointment is in the past")
)
