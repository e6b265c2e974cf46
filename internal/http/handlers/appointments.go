package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hospitalms/patient-portal/internal/appointments"
	"github.com/hospitalms/patient-portal/internal/audit"
	"github.com/hospitalms/patient-portal/internal/http/middleware"
	"github.com/hospitalms/patient-portal/internal/scheduling"
	"github.com/hospitalms/patient-portal/internal/session"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Scheduler runs update and booking attempts against a session's store.
type Scheduler interface {
	Submit(ctx context.Context, store *appointments.Store, req scheduling.UpdateRequest) (scheduling.Result, error)
	Book(ctx context.Context, store *appointments.Store, req scheduling.BookRequest) (scheduling.Result, error)
}

// AppointmentLister reloads a patient's appointments from the backend.
type AppointmentLister interface {
	ListAppointments(ctx context.Context, patientID string, owned []string) ([]appointments.Appointment, error)
}

// HistoryReader reads audited attempts.
type HistoryReader interface {
	History(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

// AppointmentsConfig wires an AppointmentsHandler. History is optional.
type AppointmentsConfig struct {
	Scheduler       Scheduler
	Lister          AppointmentLister
	History         HistoryReader
	DefaultDoctorID int
	Now             func() time.Time
	Logger          *logging.Logger
}

// AppointmentsHandler serves the patient's appointment list and the update
// and booking forms.
type AppointmentsHandler struct {
	scheduler       Scheduler
	lister          AppointmentLister
	history         HistoryReader
	defaultDoctorID int
	now             func() time.Time
	logger          *logging.Logger
}

// NewAppointmentsHandler creates an appointments handler.
func NewAppointmentsHandler(cfg AppointmentsConfig) *AppointmentsHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.DefaultDoctorID <= 0 {
		cfg.DefaultDoctorID = 1
	}
	return &AppointmentsHandler{
		scheduler:       cfg.Scheduler,
		lister:          cfg.Lister,
		history:         cfg.History,
		defaultDoctorID: cfg.DefaultDoctorID,
		now:             cfg.Now,
		logger:          cfg.Logger,
	}
}

type appointmentView struct {
	ID       string            `json:"id"`
	Date     appointments.Date `json:"date"`
	Reason   string            `json:"reason"`
	Editable bool              `json:"editable"`
}

func viewsFor(list []appointments.Appointment, today appointments.Date) []appointmentView {
	out := make([]appointmentView, 0, len(list))
	for _, a := range list {
		out = append(out, viewFor(a, today))
	}
	return out
}

func viewFor(a appointments.Appointment, today appointments.Date) appointmentView {
	return appointmentView{ID: a.ID, Date: a.Date, Reason: a.Reason, Editable: a.Editable(today)}
}

type listResponse struct {
	Appointments []appointmentView `json:"appointments"`
	SelectedID   string            `json:"selectedId,omitempty"`
}

func (h *AppointmentsHandler) today() appointments.Date {
	return appointments.DateOf(h.now())
}

func (h *AppointmentsHandler) listResponse(store *appointments.Store) listResponse {
	resp := listResponse{Appointments: viewsFor(store.List(), h.today())}
	if selected, ok := store.Selected(); ok {
		resp.SelectedID = selected.ID
	}
	return resp
}

func requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Not logged in.")
	}
	return sess, ok
}

// List returns the session's appointments.
// GET /api/appointments
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.listResponse(sess.Store))
}

// Refresh reloads the session's appointments from the backend.
// POST /api/appointments/refresh
func (h *AppointmentsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	if h.lister == nil {
		writeJSON(w, http.StatusOK, h.listResponse(sess.Store))
		return
	}
	list, err := h.lister.ListAppointments(r.Context(), sess.PatientID(), sess.Store.IDs())
	if err != nil {
		h.logger.Error("failed to refresh appointments", "session_id", sess.ID, "error", err)
		writeError(w, http.StatusBadGateway, "refresh_failed", "Failed to load appointments")
		return
	}
	sess.Store.Load(list)
	writeJSON(w, http.StatusOK, h.listResponse(sess.Store))
}

// Select marks an appointment as the one being edited.
// POST /api/appointments/{id}/select
func (h *AppointmentsHandler) Select(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	appt, err := sess.Store.Select(id, h.today())
	switch {
	case errors.Is(err, appointments.ErrNotFound):
		writeError(w, http.StatusNotFound, scheduling.OutcomeNotFound, "Appointment not found.")
		return
	case errors.Is(err, appointments.ErrNotEditable):
		writeError(w, http.StatusConflict, "not_editable", "Past appointments cannot be edited.")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", "An error occurred")
		return
	}
	writeJSON(w, http.StatusOK, viewFor(appt, h.today()))
}

// ClearSelection closes the edit form.
// DELETE /api/appointments/selection
func (h *AppointmentsHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	sess.Store.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

type updateRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"required"`
}

type workflowResponse struct {
	Message     string           `json:"message"`
	Appointment *appointmentView `json:"appointment,omitempty"`
}

// Update moves an appointment to a new date and reason.
// PUT /api/appointments/{id}
func (h *AppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	release, ok := sess.BeginSubmit()
	if !ok {
		writeError(w, http.StatusConflict, "submit_in_progress", "Your previous change is still being saved.")
		return
	}
	defer release()

	res, err := h.scheduler.Submit(r.Context(), sess.Store, scheduling.UpdateRequest{
		SessionID:     sess.ID,
		PatientID:     sess.PatientID(),
		AppointmentID: strings.TrimSpace(chi.URLParam(r, "id")),
		Date:          req.Date,
		Reason:        req.Reason,
	})
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	view := viewFor(res.Appointment, h.today())
	writeJSON(w, http.StatusOK, workflowResponse{Message: res.Message, Appointment: &view})
}

type bookRequest struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason   string `json:"reason" validate:"required"`
	DoctorID int    `json:"doctorId" validate:"omitempty,gt=0"`
}

// Book requests a new appointment.
// POST /api/appointments
func (h *AppointmentsHandler) Book(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.DoctorID == 0 {
		req.DoctorID = h.defaultDoctorID
	}

	release, ok := sess.BeginSubmit()
	if !ok {
		writeError(w, http.StatusConflict, "submit_in_progress", "Your previous change is still being saved.")
		return
	}
	defer release()

	res, err := h.scheduler.Book(r.Context(), sess.Store, scheduling.BookRequest{
		SessionID: sess.ID,
		PatientID: sess.PatientID(),
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		Reason:    req.Reason,
	})
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	resp := workflowResponse{Message: res.Message}
	if res.Appointment.ID != "" {
		view := viewFor(res.Appointment, h.today())
		resp.Appointment = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

// History lists the patient's audited update and booking attempts.
// GET /api/appointments/history
// Query params:
//   - appointmentId: only attempts against this appointment
//   - limit: max rows, default 50, capped at 200
func (h *AppointmentsHandler) History(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history_disabled", "Appointment history is not available.")
		return
	}

	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	events, err := h.history.History(r.Context(), audit.Filter{
		PatientID:     sess.PatientID(),
		AppointmentID: strings.TrimSpace(r.URL.Query().Get("appointmentId")),
		Limit:         limit,
	})
	if err != nil {
		h.logger.Error("failed to read appointment history", "session_id", sess.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "An error occurred")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
