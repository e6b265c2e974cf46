package hospital

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hospitalms/patient-portal/internal/appointments"
)

// ID is a backend identifier. The backend emits numeric ids; string ids are
// accepted as well so the portal never has to care.
type ID string

func (id ID) String() string { return string(id) }

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("hospital: id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Patient is the record returned by the backend's login endpoint.
type Patient struct {
	ID           ID                  `json:"patientId"`
	FirstName    string              `json:"firstName,omitempty"`
	LastName     string              `json:"lastName,omitempty"`
	Email        string              `json:"patientEmail,omitempty"`
	Phone        string              `json:"patientPhone,omitempty"`
	DateOfBirth  string              `json:"dob,omitempty"`
	Appointments []RemoteAppointment `json:"appointments,omitempty"`
}

// FullName joins first and last name.
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// StoreAppointments converts the appointments embedded in the login response.
func (p Patient) StoreAppointments() []appointments.Appointment {
	out := make([]appointments.Appointment, 0, len(p.Appointments))
	for _, r := range p.Appointments {
		if r.ID == "" {
			continue
		}
		out = append(out, r.ToAppointment(p.ID.String()))
	}
	return out
}

// RemoteAppointment mirrors the backend appointment DTO.
type RemoteAppointment struct {
	ID        ID                `json:"appointmentID"`
	Date      appointments.Date `json:"appointmentDate"`
	Reason    string            `json:"reason"`
	DoctorID  ID                `json:"doctorID,omitempty"`
	CreatedAt string            `json:"createdAt,omitempty"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
	Patient   *struct {
		ID ID `json:"patientId"`
	} `json:"patient,omitempty"`
}

// ToAppointment converts the DTO into the store's model. The embedded
// patient wins over fallbackPatientID when present.
func (r RemoteAppointment) ToAppointment(fallbackPatientID string) appointments.Appointment {
	patientID := fallbackPatientID
	if r.Patient != nil && r.Patient.ID != "" {
		patientID = r.Patient.ID.String()
	}
	return appointments.Appointment{
		ID:        r.ID.String(),
		Date:      r.Date,
		Reason:    r.Reason,
		PatientID: patientID,
	}
}

// BookingRequest describes a new appointment for an existing patient.
type BookingRequest struct {
	PatientID string
	DoctorID  int
	Date      appointments.Date
	Reason    string
}

type loginRequest struct {
	Email    string `json:"patientEmail"`
	Password string `json:"patientPassword"`
}

type updateRequest struct {
	AppointmentDate string `json:"appointmentDate"`
	Reason          string `json:"reason"`
}

type bookingAppointment struct {
	AppointmentDate string `json:"appointmentDate"`
	Reason          string `json:"reason"`
}

type bookingPatient struct {
	PatientID ID `json:"patientId"`
}

type bookingDoctor struct {
	DoctorID int `json:"doctorId"`
}

type bookingPayload struct {
	Appointment bookingAppointment `json:"appointment"`
	Patient     bookingPatient     `json:"patient"`
	Doctor      bookingDoctor      `json:"doctor"`
}
