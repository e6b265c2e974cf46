package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalms/patient-portal/pkg/logging"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "test@example.com"}, nil)
	assert.Nil(t, sender)
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "test@example.com"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, defaultFromName, sender.fromName)
}

func TestNewSendGridSender_CustomFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "test@example.com", FromName: "City Hospital"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "City Hospital", sender.fromName)
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "recipient@example.com", Subject: "Test"})
	assert.Error(t, err)
}

func TestSendGridSender_BuildCarriesTags(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "portal@hospital.example"}, logging.Discard())
	require.NotNil(t, sender)

	m := sender.build(EmailMessage{
		To:      "ana@example.com",
		ToName:  "Ana Lee",
		Subject: "Your appointment has been updated",
		Body:    "plain",
		Tags:    map[string]string{TagCategory: "appointment_updated", TagAppointmentID: "42", "empty": ""},
	})
	assert.Equal(t, "Your appointment has been updated", m.Subject)
	assert.Equal(t, "portal@hospital.example", m.From.Address)
	assert.Equal(t, []string{"appointment_updated"}, m.Categories)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "ana@example.com", m.Personalizations[0].To[0].Address)
	assert.Equal(t, map[string]string{TagCategory: "appointment_updated", TagAppointmentID: "42"}, m.Personalizations[0].CustomArgs)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "plain", m.Content[0].Value)
	assert.Equal(t, "plain", m.Content[1].Value, "html falls back to the plain body")
}

func TestStubEmailSender_Send(t *testing.T) {
	sender := NewStubEmailSender(nil)
	assert.NoError(t, sender.Send(context.Background(), EmailMessage{To: "recipient@example.com", Subject: "Test"}))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	client := &fakeSES{}
	sender := newSESSender(client, SESConfig{FromEmail: "portal@hospital.example"}, logging.Discard())

	err := sender.Send(context.Background(), EmailMessage{
		To:      "ana@example.com",
		Subject: "Your appointment has been updated",
		Body:    "plain",
		HTML:    "<p>html</p>",
		Tags:    map[string]string{TagCategory: "appointment_updated", TagAppointmentID: "42"},
	})
	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, "Hospital Patient Portal <portal@hospital.example>", aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"ana@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "plain", aws.ToString(client.input.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(client.input.Content.Simple.Body.Html.Data))
	require.Len(t, client.input.EmailTags, 2)
	assert.Equal(t, TagAppointmentID, aws.ToString(client.input.EmailTags[0].Name))
	assert.Equal(t, "42", aws.ToString(client.input.EmailTags[0].Value))
	assert.Equal(t, TagCategory, aws.ToString(client.input.EmailTags[1].Name))
}

func TestSESSender_SendError(t *testing.T) {
	sender := newSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{}, logging.Discard())
	err := sender.Send(context.Background(), EmailMessage{To: "a@b.c", Subject: "s", Body: "b"})
	assert.ErrorContains(t, err, "throttled")
}

func TestNewSESSender_NilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}
