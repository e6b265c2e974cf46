package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/hospitalms/patient-portal/internal/config"
	"github.com/hospitalms/patient-portal/internal/events"
	"github.com/hospitalms/patient-portal/internal/notify"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

// BuildEmailSender picks the confirmation email provider. Unknown or
// unconfigured providers fall back to the logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), "stub"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender != nil {
			return sender, "sendgrid"
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; using stub sender")
	case "ses":
		if awsCfg != nil {
			sender := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.EmailFromAddress,
				FromName:  cfg.EmailFromName,
			}, logger)
			return sender, "ses"
		}
		logger.Warn("ses selected but aws config unavailable; using stub sender")
	}
	return notify.NewStubEmailSender(logger), "stub"
}

// BuildEventPublisher returns nil when no events queue is configured.
func BuildEventPublisher(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *events.Publisher {
	if cfg == nil || awsCfg == nil || strings.TrimSpace(cfg.AppointmentEventsQueueURL) == "" {
		return nil
	}
	queue := events.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.AppointmentEventsQueueURL)
	return events.NewPublisher(queue, logger)
}
