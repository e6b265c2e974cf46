package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/hospitalms/patient-portal/internal/scheduling"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

// Contact is where a patient's confirmations go.
type Contact struct {
	Email string
	Name  string
}

// ContactLookup resolves the patient behind a portal session.
type ContactLookup interface {
	PatientContact(ctx context.Context, sessionID string) (Contact, error)
}

// Change describes an accepted appointment change for the confirmation email.
type Change struct {
	Operation     string
	AppointmentID string
	PreviousDate  string
	Date          string
	Reason        string
	Confirmation  string
}

// Service emails patients when their appointments change.
type Service struct {
	email    EmailSender
	contacts ContactLookup
	logger   *logging.Logger
}

// NewService creates a notification service. A nil sender disables email.
func NewService(email EmailSender, contacts ContactLookup, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, contacts: contacts, logger: logger}
}

// AppointmentChanged sends a confirmation to contact.
func (s *Service) AppointmentChanged(ctx context.Context, contact Contact, change Change) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping confirmation")
		return nil
	}
	if strings.TrimSpace(contact.Email) == "" {
		s.logger.Debug("notify: patient has no email on file", "appointment_id", change.AppointmentID)
		return nil
	}

	msg := buildConfirmation(contact, change)
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send appointment confirmation: %w", err)
	}
	s.logger.Info("notify: appointment confirmation sent", "appointment_id", change.AppointmentID, "operation", change.Operation)
	return nil
}

// AttemptFinished emails the patient after a successful attempt.
func (s *Service) AttemptFinished(ctx context.Context, attempt scheduling.Attempt) error {
	if !attempt.Succeeded() || s.contacts == nil {
		return nil
	}
	contact, err := s.contacts.PatientContact(ctx, attempt.SessionID)
	if err != nil {
		return fmt.Errorf("notify: resolve patient contact: %w", err)
	}
	return s.AppointmentChanged(ctx, contact, Change{
		Operation:     attempt.Operation,
		AppointmentID: attempt.AppointmentID,
		PreviousDate:  attempt.PreviousDate.String(),
		Date:          attempt.Date.String(),
		Reason:        attempt.Reason,
		Confirmation:  attempt.Message,
	})
}

func buildConfirmation(contact Contact, change Change) EmailMessage {
	greeting := "Hello"
	if contact.Name != "" {
		greeting = "Hello " + contact.Name
	}

	subject := "Your appointment has been updated"
	headline := fmt.Sprintf("Your appointment is now on %s.", change.Date)
	category := "appointment_updated"
	if change.Operation == scheduling.OperationBook {
		subject = "Your appointment is booked"
		headline = fmt.Sprintf("Your appointment is booked for %s.", change.Date)
		category = "appointment_booked"
	}

	var lines []string
	lines = append(lines, greeting+",", "", headline)
	if change.PreviousDate != "" && change.PreviousDate != change.Date {
		lines = append(lines, fmt.Sprintf("Previous date: %s", change.PreviousDate))
	}
	if change.Reason != "" {
		lines = append(lines, fmt.Sprintf("Reason: %s", change.Reason))
	}
	if change.AppointmentID != "" {
		lines = append(lines, fmt.Sprintf("Appointment ID: %s", change.AppointmentID))
	}
	if change.Confirmation != "" {
		lines = append(lines, "", change.Confirmation)
	}
	body := strings.Join(lines, "\n")

	var b strings.Builder
	b.WriteString(`<div style="font-family: sans-serif; max-width: 600px;">`)
	fmt.Fprintf(&b, "<p>%s,</p><p><strong>%s</strong></p><ul>", html.EscapeString(greeting), html.EscapeString(headline))
	if change.PreviousDate != "" && change.PreviousDate != change.Date {
		fmt.Fprintf(&b, "<li>Previous date: %s</li>", html.EscapeString(change.PreviousDate))
	}
	if change.Reason != "" {
		fmt.Fprintf(&b, "<li>Reason: %s</li>", html.EscapeString(change.Reason))
	}
	if change.AppointmentID != "" {
		fmt.Fprintf(&b, "<li>Appointment ID: %s</li>", html.EscapeString(change.AppointmentID))
	}
	b.WriteString("</ul>")
	if change.Confirmation != "" {
		fmt.Fprintf(&b, `<p style="color: #6b7280;">%s</p>`, html.EscapeString(change.Confirmation))
	}
	b.WriteString("</div>")

	return EmailMessage{
		To:      contact.Email,
		ToName:  contact.Name,
		Subject: subject,
		Body:    body,
		HTML:    b.String(),
		Tags: map[string]string{
			TagCategory:      category,
			TagAppointmentID: change.AppointmentID,
		},
	}
}
