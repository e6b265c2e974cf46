// Package audit keeps an append-only record of appointment changes requested
// through the portal.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hospitalms/patient-portal/internal/scheduling"
)

// Event is one audited workflow attempt.
type Event struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id,omitempty"`
	PatientID     string          `json:"patient_id"`
	AppointmentID string          `json:"appointment_id,omitempty"`
	Operation     string          `json:"operation"`
	Outcome       string          `json:"outcome"`
	PreviousDate  string          `json:"previous_date,omitempty"`
	NewDate       string          `json:"new_date,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Message       string          `json:"message,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type details struct {
	Error string `json:"error,omitempty"`
}

// Service writes and reads audit events.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Record inserts an audit event.
func (s *Service) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO appointment_audit_events (
			id, session_id, patient_id, appointment_id, operation, outcome,
			previous_date, new_date, reason, message, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		nullString(event.SessionID),
		event.PatientID,
		nullString(event.AppointmentID),
		event.Operation,
		event.Outcome,
		nullString(event.PreviousDate),
		nullString(event.NewDate),
		nullString(event.Reason),
		nullString(event.Message),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record event: %w", err)
	}
	return nil
}

// AttemptFinished records a workflow attempt. It lets Service be registered
// directly as a workflow hook.
func (s *Service) AttemptFinished(ctx context.Context, attempt scheduling.Attempt) error {
	event := Event{
		SessionID:     attempt.SessionID,
		PatientID:     attempt.PatientID,
		AppointmentID: attempt.AppointmentID,
		Operation:     attempt.Operation,
		Outcome:       attempt.Outcome,
		PreviousDate:  attempt.PreviousDate.String(),
		NewDate:       attempt.Date.String(),
		Reason:        attempt.Reason,
		Message:       attempt.Message,
		CreatedAt:     attempt.OccurredAt.UTC(),
	}
	if attempt.Err != nil {
		raw, _ := json.Marshal(details{Error: attempt.Err.Error()})
		event.Details = raw
	}
	return s.Record(ctx, event)
}

// Filter narrows History queries.
type Filter struct {
	PatientID     string
	AppointmentID string
	Operation     string
	Since         time.Time
	Limit         int
}

// History returns a patient's audit events, newest first.
func (s *Service) History(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, session_id, patient_id, appointment_id, operation, outcome,
			   previous_date, new_date, reason, message, details, created_at
		FROM appointment_audit_events
		WHERE patient_id = $1
	`
	args := []interface{}{filter.PatientID}
	argIdx := 2

	if filter.AppointmentID != "" {
		query += fmt.Sprintf(" AND appointment_id = $%d", argIdx)
		args = append(args, filter.AppointmentID)
		argIdx++
	}
	if filter.Operation != "" {
		query += fmt.Sprintf(" AND operation = $%d", argIdx)
		args = append(args, filter.Operation)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var sessionID, appointmentID, prevDate, newDate, reason, message sql.NullString
		var rawDetails []byte
		if err := rows.Scan(
			&e.ID, &sessionID, &e.PatientID, &appointmentID, &e.Operation, &e.Outcome,
			&prevDate, &newDate, &reason, &message, &rawDetails, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.SessionID = sessionID.String
		e.AppointmentID = appointmentID.String
		e.PreviousDate = prevDate.String
		e.NewDate = newDate.String
		e.Reason = reason.String
		e.Message = message.String
		if len(rawDetails) > 0 {
			e.Details = json.RawMessage(rawDetails)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to read events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
