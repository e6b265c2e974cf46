package hospital

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hospitalms/patient-portal/internal/appointments"
	"github.com/hospitalms/patient-portal/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 300
)

// RequestObserver receives the outcome of every backend call. status is 0
// when the request never got a response.
type RequestObserver interface {
	ObserveHospitalRequest(operation string, status int, elapsed time.Duration)
}

// Client talks to the hospital scheduling backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	observer   RequestObserver
	tracer     trace.Tracer
}

// NewClient constructs a backend client. A zero timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		tracer:     otel.Tracer("portal.internal.hospital"),
	}
}

// WithObserver attaches a request observer (typically metrics).
func (c *Client) WithObserver(o RequestObserver) *Client {
	c.observer = o
	return c
}

// Login authenticates a patient and returns their record, including the
// appointments already on file.
func (c *Client) Login(ctx context.Context, email, password string) (*Patient, error) {
	status, body, err := c.do(ctx, "login", http.MethodPost, "/loginPage/patientLogin", loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("hospital: login: %w", err)
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("hospital: login: %w: status %d: %s", ErrLoginFailed, status, truncate(body))
	}
	var patient Patient
	if err := json.Unmarshal(body, &patient); err != nil {
		return nil, fmt.Errorf("hospital: login: decode patient: %w: %v", ErrNetwork, err)
	}
	if patient.ID == "" {
		return nil, fmt.Errorf("hospital: login: %w", ErrInvalidCredentials)
	}
	return &patient, nil
}

// CountAppointmentsByDate returns how many appointments the backend holds on date.
// It makes exactly one request and never retries.
func (c *Client) CountAppointmentsByDate(ctx context.Context, date appointments.Date) (int, error) {
	if date.IsZero() {
		return 0, fmt.Errorf("hospital: count appointments: %w", ErrMissingDate)
	}
	path := "/appointment/countOfAppointmentsByDate/" + url.PathEscape(date.String())
	status, body, err := c.do(ctx, "count_appointments", http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("hospital: count appointments: %w", err)
	}
	if !isSuccess(status) {
		return 0, fmt.Errorf("hospital: count appointments: %w: status %d: %s", ErrNetwork, status, truncate(body))
	}
	var count int
	if err := json.Unmarshal(bytes.TrimSpace(body), &count); err != nil {
		return 0, fmt.Errorf("hospital: count appointments: decode count: %w: %v", ErrNetwork, err)
	}
	return count, nil
}

// UpdateAppointment writes the new date and reason and returns the backend's
// confirmation text exactly as sent.
func (c *Client) UpdateAppointment(ctx context.Context, id string, date appointments.Date, reason string) (string, error) {
	path := "/appointment/updateAppointments/" + url.PathEscape(id)
	payload := updateRequest{AppointmentDate: date.String(), Reason: reason}
	status, body, err := c.do(ctx, "update_appointment", http.MethodPut, path, payload)
	if err != nil {
		return "", fmt.Errorf("hospital: update appointment %s: %w", id, err)
	}
	if !isSuccess(status) {
		return "", fmt.Errorf("hospital: update appointment %s: %w: status %d: %s", id, ErrUpdateFailed, status, truncate(body))
	}
	return string(body), nil
}

// Booking is the backend's answer to a successful booking.
type Booking struct {
	Message       string
	AppointmentID string
}

var trailingID = regexp.MustCompile(`(\d+)\s*$`)

// CreateAppointment books a new appointment for an existing patient. The
// backend answers with text ending in the new id; AppointmentID is empty when
// no id could be found.
func (c *Client) CreateAppointment(ctx context.Context, req BookingRequest) (*Booking, error) {
	if req.Date.IsZero() {
		return nil, fmt.Errorf("hospital: create appointment: %w", ErrMissingDate)
	}
	payload := bookingPayload{
		Appointment: bookingAppointment{AppointmentDate: req.Date.String(), Reason: req.Reason},
		Patient:     bookingPatient{PatientID: ID(req.PatientID)},
		Doctor:      bookingDoctor{DoctorID: req.DoctorID},
	}
	status, body, err := c.do(ctx, "create_appointment", http.MethodPost, "/appointment/insertWithPatientID", payload)
	if err != nil {
		return nil, fmt.Errorf("hospital: create appointment: %w", err)
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("hospital: create appointment: %w: status %d: %s", ErrBookingFailed, status, truncate(body))
	}
	booking := &Booking{Message: string(body)}
	if m := trailingID.FindSubmatch(body); m != nil {
		booking.AppointmentID = string(m[1])
	}
	return booking, nil
}

// ListAppointments fetches every appointment and keeps the patient's own.
// The backend's list DTO leaves the patient unset, so a row without one is
// kept only when its id is in owned (ids the patient is already known to
// hold, e.g. from login).
func (c *Client) ListAppointments(ctx context.Context, patientID string, owned []string) ([]appointments.Appointment, error) {
	status, body, err := c.do(ctx, "list_appointments", http.MethodGet, "/appointment/fetchallAppointments", nil)
	if err != nil {
		return nil, fmt.Errorf("hospital: list appointments: %w", err)
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("hospital: list appointments: %w: status %d: %s", ErrNetwork, status, truncate(body))
	}
	var remote []RemoteAppointment
	if err := json.Unmarshal(body, &remote); err != nil {
		return nil, fmt.Errorf("hospital: list appointments: decode: %w: %v", ErrNetwork, err)
	}
	known := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		known[id] = struct{}{}
	}
	out := make([]appointments.Appointment, 0, len(owned))
	for _, r := range remote {
		if r.ID == "" {
			continue
		}
		appt := r.ToAppointment("")
		switch appt.PatientID {
		case patientID:
		case "":
			if _, ok := known[appt.ID]; !ok {
				continue
			}
			appt.PatientID = patientID
		default:
			continue
		}
		out = append(out, appt)
	}
	return out, nil
}

// do issues one request. A non-nil error means no response was obtained;
// the caller interprets the status code.
func (c *Client) do(ctx context.Context, operation, method, path string, payload interface{}) (int, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ctx, span := c.tracer.Start(ctx, "hospital."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no response")
		c.observe(operation, 0, time.Since(start))
		c.logger.Warn("hospital request failed", "operation", operation, "path", path, "error", err)
		return 0, nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.observe(operation, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w: %v", ErrNetwork, err)
	}
	if !isSuccess(resp.StatusCode) {
		c.logger.Warn("hospital API non-2xx response", "operation", operation, "status", resp.StatusCode, "path", path, "body", truncate(body))
	}
	return resp.StatusCode, body, nil
}

func (c *Client) observe(operation string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveHospitalRequest(operation, status, elapsed)
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func truncate(body []byte) string {
	msg := string(body)
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}
