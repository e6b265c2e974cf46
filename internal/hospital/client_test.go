package hospital

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalms/patient-portal/internal/appointments"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", time.Second, logging.Discard())
}

type recordingObserver struct {
	operations []string
	statuses   []int
}

func (r *recordingObserver) ObserveHospitalRequest(operation string, status int, _ time.Duration) {
	r.operations = append(r.operations, operation)
	r.statuses = append(r.statuses, status)
}

func TestCountAppointmentsByDate_Success(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/appointment/countOfAppointmentsByDate/2024-06-01", r.URL.Path)
		_, _ = w.Write([]byte("3\n"))
	})
	obs := &recordingObserver{}
	client.WithObserver(obs)

	count, err := client.CountAppointmentsByDate(context.Background(), appointments.MustParseDate("2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"count_appointments"}, obs.operations)
	assert.Equal(t, []int{200}, obs.statuses)
}

func TestCountAppointmentsByDate_NonSuccessIsNetworkError(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.CountAppointmentsByDate(context.Background(), appointments.MustParseDate("2024-06-01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retries")
}

func TestCountAppointmentsByDate_UndecodableBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	})
	_, err := client.CountAppointmentsByDate(context.Background(), appointments.MustParseDate("2024-06-01"))
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestCountAppointmentsByDate_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	obs := &recordingObserver{}
	client := NewClient(url, time.Second, logging.Discard()).WithObserver(obs)
	_, err := client.CountAppointmentsByDate(context.Background(), appointments.MustParseDate("2024-06-01"))
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, []int{0}, obs.statuses)
}

func TestCountAppointmentsByDate_MissingDate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := client.CountAppointmentsByDate(context.Background(), appointments.Date{})
	assert.ErrorIs(t, err, ErrMissingDate)
}

func TestUpdateAppointment_ReturnsLiteralBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/appointment/updateAppointments/17", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"appointmentDate":"2024-06-02","reason":"follow-up"}`, string(raw))
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Appointment updated successfully."))
	})

	msg, err := client.UpdateAppointment(context.Background(), "17", appointments.MustParseDate("2024-06-02"), "follow-up")
	require.NoError(t, err)
	assert.Equal(t, "Appointment updated successfully.", msg)
}

func TestUpdateAppointment_NonSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ID not found", http.StatusBadRequest)
	})
	_, err := client.UpdateAppointment(context.Background(), "17", appointments.MustParseDate("2024-06-02"), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.NotErrorIs(t, err, ErrNetwork)
}

func TestUpdateAppointment_TransportFailureIsNotUpdateFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	client := NewClient(url, time.Second, logging.Discard())
	_, err := client.UpdateAppointment(context.Background(), "17", appointments.MustParseDate("2024-06-02"), "x")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.NotErrorIs(t, err, ErrUpdateFailed)
}

func TestLogin_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loginPage/patientLogin", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body["patientEmail"])
		assert.Equal(t, "secret", body["patientPassword"])
		_, _ = w.Write([]byte(`{
			"patientId": 11,
			"firstName": "Ana",
			"lastName": "Lee",
			"patientEmail": "ana@example.com",
			"appointments": [
				{"appointmentID": 5, "appointmentDate": "2024-06-01", "reason": "fever", "doctorID": 2},
				{"appointmentID": null, "appointmentDate": "2024-06-03", "reason": "ignored"}
			]
		}`))
	})

	patient, err := client.Login(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, ID("11"), patient.ID)
	assert.Equal(t, "Ana Lee", patient.FullName())

	appts := patient.StoreAppointments()
	require.Len(t, appts, 1)
	assert.Equal(t, "5", appts[0].ID)
	assert.Equal(t, "11", appts[0].PatientID)
	assert.Equal(t, "2024-06-01", appts[0].Date.String())
}

func TestLogin_MissingPatientID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"no such user"}`))
	})
	_, err := client.Login(context.Background(), "a@b.c", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad password"}`))
	})
	_, err := client.Login(context.Background(), "a@b.c", "x")
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestCreateAppointment_ParsesTrailingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/appointment/insertWithPatientID", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{
			"appointment": {"appointmentDate": "2024-07-01", "reason": "dental"},
			"patient": {"patientId": 11},
			"doctor": {"doctorId": 3}
		}`, string(raw))
		_, _ = w.Write([]byte("Appointments Details successfully saved: 42"))
	})

	booking, err := client.CreateAppointment(context.Background(), BookingRequest{
		PatientID: "11",
		DoctorID:  3,
		Date:      appointments.MustParseDate("2024-07-01"),
		Reason:    "dental",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", booking.AppointmentID)
	assert.Equal(t, "Appointments Details successfully saved: 42", booking.Message)
}

func TestCreateAppointment_NoIDInBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("saved"))
	})
	booking, err := client.CreateAppointment(context.Background(), BookingRequest{PatientID: "p-1", Date: appointments.MustParseDate("2024-07-01")})
	require.NoError(t, err)
	assert.Empty(t, booking.AppointmentID)
}

func TestCreateAppointment_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Appointment exception", http.StatusBadRequest)
	})
	_, err := client.CreateAppointment(context.Background(), BookingRequest{PatientID: "1", Date: appointments.MustParseDate("2024-07-01")})
	assert.ErrorIs(t, err, ErrBookingFailed)
}

func TestListAppointments_KeepsOwnedRowsWithoutPatient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appointment/fetchallAppointments", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"appointmentID": 1, "appointmentDate": "2024-06-01", "reason": "a", "patient": null},
			{"appointmentID": 2, "appointmentDate": "2024-06-02", "reason": "b", "patient": null},
			{"appointmentID": 3, "appointmentDate": "2024-06-09", "reason": "moved", "patient": null}
		]`))
	})

	appts, err := client.ListAppointments(context.Background(), "11", []string{"1", "3", "99"})
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "1", appts[0].ID)
	assert.Equal(t, "11", appts[0].PatientID)
	assert.Equal(t, "3", appts[1].ID)
	assert.Equal(t, "2024-06-09", appts[1].Date.String())
	assert.Equal(t, "moved", appts[1].Reason)
}

func TestListAppointments_FiltersAttributedRowsByPatient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"appointmentID": 1, "appointmentDate": "2024-06-01", "reason": "a", "patient": {"patientId": 11}},
			{"appointmentID": 2, "appointmentDate": "2024-06-02", "reason": "b", "patient": {"patientId": 12}},
			{"appointmentID": 3, "appointmentDate": "2024-06-03", "reason": "c", "patient": {"patientId": "11"}}
		]`))
	})

	appts, err := client.ListAppointments(context.Background(), "11", []string{"2"})
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "1", appts[0].ID)
	assert.Equal(t, "3", appts[1].ID)
}

func TestIDMarshalJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}{A: "12", B: "p-1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":12,"b":"p-1","c":null}`, string(raw))
}
