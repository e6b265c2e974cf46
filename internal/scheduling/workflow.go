package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hospitalms/patient-portal/internal/appointments"
	"github.com/hospitalms/patient-portal/internal/hospital"
	"github.com/hospitalms/patient-portal/internal/observability/metrics"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

var schedulingTracer = otel.Tracer("portal.internal.scheduling")

// DefaultDailyCap is the number of appointments after which a day is full.
const DefaultDailyCap = 5

// AvailabilityChecker answers how many appointments exist on a date.
type AvailabilityChecker interface {
	CountAppointmentsByDate(ctx context.Context, date appointments.Date) (int, error)
}

// Updater writes a new date and reason for an appointment and returns the
// backend's confirmation text.
type Updater interface {
	UpdateAppointment(ctx context.Context, id string, date appointments.Date, reason string) (string, error)
}

// Creator books new appointments.
type Creator interface {
	CreateAppointment(ctx context.Context, req hospital.BookingRequest) (*hospital.Booking, error)
}

// State is a step of a single workflow attempt.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateCheckingAvailability
	StateUpdating
	StateReconciling
	StateCreating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateCheckingAvailability:
		return "checking_availability"
	case StateUpdating:
		return "updating"
	case StateReconciling:
		return "reconciling"
	case StateCreating:
		return "creating"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Deps wires a Workflow. Checker and Updater are required.
type Deps struct {
	Checker  AvailabilityChecker
	Updater  Updater
	Creator  Creator
	DailyCap int
	Now      func() time.Time
	Logger   *logging.Logger
	Metrics  *metrics.WorkflowMetrics
}

// Workflow runs validate, check availability, write and reconcile against a
// patient's appointment store. One Workflow serves every session; the store
// passed to each call is what gets reconciled.
type Workflow struct {
	checker  AvailabilityChecker
	updater  Updater
	creator  Creator
	dailyCap int
	now      func() time.Time
	logger   *logging.Logger
	metrics  *metrics.WorkflowMetrics
	hooks    []namedHook
	onState  func(State)

	followUps sync.WaitGroup
}

// NewWorkflow constructs a workflow.
func NewWorkflow(deps Deps) *Workflow {
	if deps.Checker == nil {
		panic("scheduling: availability checker required")
	}
	if deps.Updater == nil {
		panic("scheduling: updater required")
	}
	if deps.DailyCap <= 0 {
		deps.DailyCap = DefaultDailyCap
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Workflow{
		checker:  deps.Checker,
		updater:  deps.Updater,
		creator:  deps.Creator,
		dailyCap: deps.DailyCap,
		now:      deps.Now,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
}

// OnStateChange registers fn to be called on every state transition.
func (w *Workflow) OnStateChange(fn func(State)) {
	w.onState = fn
}

// UpdateRequest is a patient's request to move an appointment.
type UpdateRequest struct {
	SessionID     string
	PatientID     string
	AppointmentID string
	Date          string
	Reason        string
}

// Result is a successful attempt.
type Result struct {
	Message     string
	Appointment appointments.Appointment
}

// Submit runs one update attempt. On success the matching entry in store
// carries the new date and reason, the edit selection is cleared and the
// backend's text is returned. On any error store is left untouched.
func (w *Workflow) Submit(ctx context.Context, store *appointments.Store, req UpdateRequest) (Result, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("portal.appointment_id", req.AppointmentID),
		attribute.String("portal.appointment_date", req.Date),
	)

	start := time.Now()
	attempt := Attempt{
		Operation:     OperationUpdate,
		SessionID:     req.SessionID,
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		Reason:        req.Reason,
	}

	res, err := w.submit(ctx, store, req, &attempt)
	w.setState(StateIdle)

	attempt.Outcome = Kind(err)
	attempt.Err = err
	attempt.OccurredAt = w.now()
	if err != nil {
		attempt.Message = Message(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, attempt.Outcome)
		w.logger.Info("appointment update rejected", "appointment_id", req.AppointmentID, "outcome", attempt.Outcome, "error", err)
	} else {
		attempt.Message = res.Message
		w.logger.Info("appointment updated", "appointment_id", req.AppointmentID, "date", attempt.Date.String())
	}
	span.SetAttributes(attribute.String("portal.outcome", attempt.Outcome))
	w.metrics.ObserveAttempt(OperationUpdate, attempt.Outcome, time.Since(start))
	w.runHooks(ctx, attempt)
	return res, err
}

func (w *Workflow) submit(ctx context.Context, store *appointments.Store, req UpdateRequest, attempt *Attempt) (Result, error) {
	w.setState(StateValidating)
	date, _ := appointments.ParseDate(req.Date)
	attempt.Date = date
	if err := Validate(req.Date, req.Reason, w.now()); err != nil {
		return Result{}, err
	}
	current, ok := store.Get(req.AppointmentID)
	if !ok {
		return Result{}, ErrUnknownAppointment
	}
	attempt.PreviousDate = current.Date
	if !current.Editable(appointments.DateOf(w.now())) {
		return Result{}, ErrNotEditable
	}
	if attempt.PatientID == "" {
		attempt.PatientID = current.PatientID
	}

	w.setState(StateCheckingAvailability)
	if err := w.checkAvailability(ctx, date); err != nil {
		return Result{}, err
	}

	w.setState(StateUpdating)
	message, err := w.updater.UpdateAppointment(ctx, req.AppointmentID, date, req.Reason)
	if err != nil {
		if errors.Is(err, hospital.ErrUpdateFailed) {
			return Result{}, fmt.Errorf("%w: %v", ErrUpdateFailed, err)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnknownTransport, err)
	}

	w.setState(StateReconciling)
	fields := appointments.Fields{Date: date, Reason: req.Reason}
	if err := store.Replace(req.AppointmentID, fields); err != nil {
		// The backend already accepted the write; the entry vanished from the
		// list in the meantime (e.g. a refresh), so there is nothing to patch.
		w.logger.Warn("updated appointment missing from store", "appointment_id", req.AppointmentID, "error", err)
	}
	store.ClearSelection()

	updated := current
	updated.Date = date
	updated.Reason = req.Reason
	return Result{Message: message, Appointment: updated}, nil
}

// checkAvailability fails when the day is at capacity or the count is unknown.
func (w *Workflow) checkAvailability(ctx context.Context, date appointments.Date) error {
	count, err := w.checker.CountAppointmentsByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAvailabilityCheckFailed, err)
	}
	if count >= w.dailyCap {
		return fmt.Errorf("%w: %d appointments on %s", ErrFullyBooked, count, date)
	}
	return nil
}

func (w *Workflow) setState(s State) {
	if w.onState != nil {
		w.onState(s)
	}
}
