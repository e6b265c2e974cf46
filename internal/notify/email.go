package notify

import (
	"context"
	"fmt"
	"sort"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/hospitalms/patient-portal/pkg/logging"
)

const defaultFromName = "Hospital Patient Portal"

// Tag keys attached to every patient email so deliveries can be traced back
// to the appointment that triggered them.
const (
	TagCategory      = "category"
	TagAppointmentID = "appointment_id"
)

// EmailSender delivers one patient email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a single patient notification. Body is plain text; HTML
// is optional and falls back to Body.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
	Tags    map[string]string
}

func (m EmailMessage) htmlOrBody() string {
	if m.HTML != "" {
		return m.HTML
	}
	return m.Body
}

// sortedTags returns tag keys in a stable order.
func (m EmailMessage) sortedTags() []string {
	keys := make([]string, 0, len(m.Tags))
	for k, v := range m.Tags {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// SendGridSender delivers through the SendGrid v3 API. Tags become custom
// args and the category tag becomes a SendGrid category.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	response, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("patient email sent", "provider", "sendgrid", "to", msg.To, "appointment_id", msg.Tags[TagAppointmentID], "status", response.StatusCode)
	return nil
}

func (s *SendGridSender) build(msg EmailMessage) *mail.SGMailV3 {
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	for _, k := range msg.sortedTags() {
		p.SetCustomArg(k, msg.Tags[k])
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	m.Subject = msg.Subject
	m.AddPersonalizations(p)
	m.AddContent(
		mail.NewContent("text/plain", msg.Body),
		mail.NewContent("text/html", msg.htmlOrBody()),
	)
	if category := msg.Tags[TagCategory]; category != "" {
		m.AddCategories(category)
	}
	return m
}

// StubEmailSender only logs. It is the sender when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("patient email not sent (no provider)", "to", msg.To, "subject", msg.Subject, "category", msg.Tags[TagCategory], "appointment_id", msg.Tags[TagAppointmentID])
	return nil
}
