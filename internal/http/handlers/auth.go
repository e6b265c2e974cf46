package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hospitalms/patient-portal/internal/appointments"
	"github.com/hospitalms/patient-portal/internal/hospital"
	"github.com/hospitalms/patient-portal/internal/http/middleware"
	"github.com/hospitalms/patient-portal/internal/session"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

// Authenticator checks patient credentials against the hospital backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*hospital.Patient, error)
}

// SessionStore opens and closes portal sessions.
type SessionStore interface {
	Create(ctx context.Context, patient hospital.Patient) (string, *session.Session, error)
	Destroy(ctx context.Context, token string) error
}

// AuthHandler serves login, logout and the current patient profile.
type AuthHandler struct {
	auth         Authenticator
	sessions     SessionStore
	secureCookie bool
	now          func() time.Time
	logger       *logging.Logger
}

// NewAuthHandler creates an auth handler. secureCookie marks the session
// cookie Secure and should be set outside local development.
func NewAuthHandler(auth Authenticator, sessions SessionStore, secureCookie bool, logger *logging.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthHandler{auth: auth, sessions: sessions, secureCookie: secureCookie, now: time.Now, logger: logger}
}

// WithClock sets the clock that decides which appointments are editable.
func (h *AuthHandler) WithClock(now func() time.Time) *AuthHandler {
	if now != nil {
		h.now = now
	}
	return h
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type patientView struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func newPatientView(p hospital.Patient) patientView {
	return patientView{
		ID:        p.ID.String(),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
	}
}

type loginResponse struct {
	Token        string            `json:"token"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	Patient      patientView       `json:"patient"`
	Appointments []appointmentView `json:"appointments"`
}

// Login exchanges patient credentials for a session token.
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	patient, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, hospital.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		case errors.Is(err, hospital.ErrLoginFailed):
			writeError(w, http.StatusUnauthorized, "login_failed", "Login failed, please try again.")
		default:
			h.logger.Error("patient login failed", "error", err)
			writeError(w, http.StatusBadGateway, "login_failed", "Login failed, please try again.")
		}
		return
	}

	token, sess, err := h.sessions.Create(r.Context(), *patient)
	if err != nil {
		h.logger.Error("failed to create session", "patient_id", patient.ID.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Login failed, please try again.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:        token,
		ExpiresAt:    sess.ExpiresAt.UTC(),
		Patient:      newPatientView(sess.Patient),
		Appointments: viewsFor(sess.Store.List(), appointments.DateOf(h.now())),
	})
}

// Logout revokes the current session.
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Not logged in.")
		return
	}
	if err := h.sessions.Destroy(r.Context(), token); err != nil {
		h.logger.Warn("failed to destroy session", "error", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the logged-in patient.
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Not logged in.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patient":   newPatientView(sess.Patient),
		"expiresAt": sess.ExpiresAt.UTC(),
	})
}
