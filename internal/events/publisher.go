package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hospitalms/patient-portal/internal/scheduling"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

type queueClient interface {
	Send(ctx context.Context, eventType, body string) error
}

// Publisher emits appointment events for downstream consumers.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("events: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Publish wraps evt in an envelope and sends it.
func (p *Publisher) Publish(ctx context.Context, aggregate, correlationID string, evt Event) (Envelope, error) {
	env, err := NewEnvelope(aggregate, correlationID, evt)
	if err != nil {
		return Envelope{}, err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal envelope: %w", err)
	}
	if err := p.queue.Send(ctx, env.EventType, string(body)); err != nil {
		return Envelope{}, fmt.Errorf("events: publish %s: %w", env.EventType, err)
	}
	p.logger.Debug("appointment event published", "event_id", env.EventID, "event_type", env.EventType, "aggregate", env.Aggregate)
	return env, nil
}

// AttemptFinished publishes an event for successful attempts only.
func (p *Publisher) AttemptFinished(ctx context.Context, attempt scheduling.Attempt) error {
	if !attempt.Succeeded() {
		return nil
	}
	switch attempt.Operation {
	case scheduling.OperationUpdate:
		_, err := p.Publish(ctx, attempt.AppointmentID, attempt.SessionID, AppointmentRescheduledV1{
			AppointmentID: attempt.AppointmentID,
			PatientID:     attempt.PatientID,
			PreviousDate:  attempt.PreviousDate.String(),
			NewDate:       attempt.Date.String(),
			Reason:        attempt.Reason,
			Confirmation:  attempt.Message,
			OccurredAt:    attempt.OccurredAt.UTC(),
		})
		return err
	case scheduling.OperationBook:
		aggregate := attempt.AppointmentID
		if aggregate == "" {
			aggregate = attempt.PatientID
		}
		_, err := p.Publish(ctx, aggregate, attempt.SessionID, AppointmentBookedV1{
			AppointmentID: attempt.AppointmentID,
			PatientID:     attempt.PatientID,
			Date:          attempt.Date.String(),
			Reason:        attempt.Reason,
			Confirmation:  attempt.Message,
			OccurredAt:    attempt.OccurredAt.UTC(),
		})
		return err
	default:
		return nil
	}
}
