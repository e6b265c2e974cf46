package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/hospitalms/patient-portal/internal/appointments"
	"github.com/hospitalms/patient-portal/internal/audit"
	"github.com/hospitalms/patient-portal/internal/hospital"
	"github.com/hospitalms/patient-portal/internal/http/middleware"
	"github.com/hospitalms/patient-portal/internal/scheduling"
	"github.com/hospitalms/patient-portal/internal/session"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

var testNow = time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// fakeBackend stands in for the hospital client.
type fakeBackend struct {
	mu sync.Mutex

	count    int
	countErr error

	updateMsg string
	updateErr error
	updates   int

	booking  *hospital.Booking
	bookErr  error
	bookings []hospital.BookingRequest

	list      []appointments.Appointment
	listErr   error
	listOwned []string

	patient  *hospital.Patient
	loginErr error
}

func (f *fakeBackend) CountAppointmentsByDate(_ context.Context, _ appointments.Date) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.countErr
}

func (f *fakeBackend) UpdateAppointment(_ context.Context, _ string, _ appointments.Date, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return "", f.updateErr
	}
	return f.updateMsg, nil
}

func (f *fakeBackend) CreateAppointment(_ context.Context, req hospital.BookingRequest) (*hospital.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings = append(f.bookings, req)
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return f.booking, nil
}

func (f *fakeBackend) ListAppointments(_ context.Context, _ string, owned []string) ([]appointments.Appointment, error) {
	f.mu.Lock()
	f.listOwned = owned
	f.mu.Unlock()
	return f.list, f.listErr
}

func (f *fakeBackend) Login(_ context.Context, _, _ string) (*hospital.Patient, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.patient, nil
}

func (f *fakeBackend) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

type fakeHistory struct {
	events []audit.Event
	err    error
	filter audit.Filter
}

func (f *fakeHistory) History(_ context.Context, filter audit.Filter) ([]audit.Event, error) {
	f.filter = filter
	return f.events, f.err
}

func testPatient() hospital.Patient {
	return hospital.Patient{
		ID:        "42",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Appointments: []hospital.RemoteAppointment{
			{ID: "1", Date: appointments.MustParseDate("2024-06-20"), Reason: "Checkup"},
			{ID: "2", Date: appointments.MustParseDate("2024-06-01"), Reason: "Follow-up"},
		},
	}
}

func newTestSession() *session.Session {
	p := testPatient()
	return &session.Session{
		ID:        "sess-1",
		Patient:   p,
		Store:     appointments.NewStore(p.StoreAppointments()...),
		ExpiresAt: testNow.Add(8 * time.Hour),
	}
}

func withSession(sess *session.Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithSession(r.Context(), sess, "test-token")))
		})
	}
}

func newAppointmentsRouter(t *testing.T, backend *fakeBackend, sess *session.Session, history HistoryReader) http.Handler {
	t.Helper()
	wf := scheduling.NewWorkflow(scheduling.Deps{
		Checker: backend,
		Updater: backend,
		Creator: backend,
		Now:     fixedClock,
		Logger:  logging.Discard(),
	})
	h := NewAppointmentsHandler(AppointmentsConfig{
		Scheduler: wf,
		Lister:    backend,
		History:   history,
		Now:       fixedClock,
		Logger:    logging.Discard(),
	})

	r := chi.NewRouter()
	r.Use(withSession(sess))
	r.Get("/api/appointments", h.List)
	r.Post("/api/appointments", h.Book)
	r.Post("/api/appointments/refresh", h.Refresh)
	r.Get("/api/appointments/history", h.History)
	r.Delete("/api/appointments/selection", h.ClearSelection)
	r.Post("/api/appointments/{id}/select", h.Select)
	r.Put("/api/appointments/{id}", h.Update)
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func updateFailed(status int) error {
	return fmt.Errorf("%w: status %d", hospital.ErrUpdateFailed, status)
}
