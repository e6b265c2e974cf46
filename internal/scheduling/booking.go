package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hospitalms/patient-portal/internal/appointments"
	"github.com/hospitalms/patient-portal/internal/hospital"
)

// BookRequest asks for a new appointment for the session's patient.
type BookRequest struct {
	SessionID string
	PatientID string
	DoctorID  int
	Date      string
	Reason    string
}

// Book runs the same rules and capacity check as Submit, then creates the
// appointment and appends it to store. If the backend's reply carries no id
// the message is still returned and store is not touched.
func (w *Workflow) Book(ctx context.Context, store *appointments.Store, req BookRequest) (Result, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("portal.patient_id", req.PatientID),
		attribute.String("portal.appointment_date", req.Date),
	)

	start := time.Now()
	attempt := Attempt{
		Operation: OperationBook,
		SessionID: req.SessionID,
		PatientID: req.PatientID,
		Reason:    req.Reason,
	}

	res, err := w.book(ctx, store, req, &attempt)
	w.setState(StateIdle)

	attempt.Outcome = Kind(err)
	attempt.Err = err
	attempt.OccurredAt = w.now()
	attempt.AppointmentID = res.Appointment.ID
	if err != nil {
		attempt.Message = Message(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, attempt.Outcome)
		w.logger.Info("appointment booking rejected", "patient_id", req.PatientID, "outcome", attempt.Outcome, "error", err)
	} else {
		attempt.Message = res.Message
		w.logger.Info("appointment booked", "patient_id", req.PatientID, "appointment_id", res.Appointment.ID, "date", attempt.Date.String())
	}
	span.SetAttributes(attribute.String("portal.outcome", attempt.Outcome))
	w.metrics.ObserveAttempt(OperationBook, attempt.Outcome, time.Since(start))
	w.runHooks(ctx, attempt)
	return res, err
}

func (w *Workflow) book(ctx context.Context, store *appointments.Store, req BookRequest, attempt *Attempt) (Result, error) {
	if w.creator == nil {
		return Result{}, fmt.Errorf("%w: booking is not configured", ErrUnknownTransport)
	}

	w.setState(StateValidating)
	date, _ := appointments.ParseDate(req.Date)
	attempt.Date = date
	if err := Validate(req.Date, req.Reason, w.now()); err != nil {
		return Result{}, err
	}

	w.setState(StateCheckingAvailability)
	if err := w.checkAvailability(ctx, date); err != nil {
		return Result{}, err
	}

	w.setState(StateCreating)
	booking, err := w.creator.CreateAppointment(ctx, hospital.BookingRequest{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Reason:    req.Reason,
	})
	if err != nil {
		if errors.Is(err, hospital.ErrBookingFailed) {
			return Result{}, fmt.Errorf("%w: %v", ErrBookingFailed, err)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnknownTransport, err)
	}

	w.setState(StateReconciling)
	appt := appointments.Appointment{
		ID:        booking.AppointmentID,
		Date:      date,
		Reason:    req.Reason,
		PatientID: req.PatientID,
	}
	if appt.ID == "" {
		w.logger.Warn("booking reply carried no appointment id", "patient_id", req.PatientID)
		return Result{Message: booking.Message, Appointment: appt}, nil
	}
	if err := store.Add(appt); err != nil {
		w.logger.Warn("booked appointment already in store", "appointment_id", appt.ID, "error", err)
	}
	return Result{Message: booking.Message, Appointment: appt}, nil
}
