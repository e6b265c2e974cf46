package scheduling

import (
	"context"
	"time"

	"github.com/hospitalms/patient-portal/internal/appointments"
)

const (
	OperationUpdate = "update"
	OperationBook   = "book"
)

// Attempt describes a finished workflow attempt, successful or not.
type Attempt struct {
	Operation     string
	SessionID     string
	PatientID     string
	AppointmentID string
	PreviousDate  appointments.Date
	Date          appointments.Date
	Reason        string
	Outcome       string
	Message       string
	Err           error
	OccurredAt    time.Time
}

// Succeeded reports whether the attempt reached the backend and was accepted.
func (a Attempt) Succeeded() bool {
	return a.Outcome == OutcomeSuccess
}

// AttemptHook is told about every finished attempt. Hooks are best effort:
// an error is logged and counted but never changes what the patient sees.
type AttemptHook interface {
	AttemptFinished(ctx context.Context, attempt Attempt) error
}

// HookFunc adapts a function to AttemptHook.
type HookFunc func(ctx context.Context, attempt Attempt) error

func (f HookFunc) AttemptFinished(ctx context.Context, attempt Attempt) error {
	return f(ctx, attempt)
}

type namedHook struct {
	name string
	hook AttemptHook
}

const hookTimeout = 5 * time.Second

// AddHook registers a follow-up run after every attempt. name labels
// failures in logs and metrics.
func (w *Workflow) AddHook(name string, hook AttemptHook) {
	if hook == nil {
		return
	}
	w.hooks = append(w.hooks, namedHook{name: name, hook: hook})
}

// runHooks hands the attempt to the registered follow-ups in the background
// so the caller's response never waits on them.
func (w *Workflow) runHooks(ctx context.Context, attempt Attempt) {
	if len(w.hooks) == 0 {
		return
	}
	// Follow-ups outlive a client that hung up after the write landed.
	detached := context.WithoutCancel(ctx)
	w.followUps.Add(1)
	go func() {
		defer w.followUps.Done()
		for _, h := range w.hooks {
			hookCtx, cancel := context.WithTimeout(detached, hookTimeout)
			err := h.hook.AttemptFinished(hookCtx, attempt)
			cancel()
			if err != nil {
				w.metrics.ObserveSideEffectFailure(h.name)
				w.logger.Warn("scheduling follow-up failed", "hook", h.name, "operation", attempt.Operation, "appointment_id", attempt.AppointmentID, "error", err)
			}
		}
	}()
}

// Wait blocks until every follow-up started so far has finished.
func (w *Workflow) Wait() {
	w.followUps.Wait()
}
