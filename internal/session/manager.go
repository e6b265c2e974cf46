package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hospitalms/patient-portal/internal/appointments"
	"github.com/hospitalms/patient-portal/internal/hospital"
	"github.com/hospitalms/patient-portal/internal/notify"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

// Session is one logged-in patient. Its Store is the list every view of the
// session reads from.
type Session struct {
	ID        string
	Patient   hospital.Patient
	Store     *appointments.Store
	ExpiresAt time.Time

	submitMu sync.Mutex
}

// BeginSubmit claims the session's single submission slot. ok is false while
// another submission is still running; release must be called otherwise.
func (s *Session) BeginSubmit() (release func(), ok bool) {
	if !s.submitMu.TryLock() {
		return nil, false
	}
	return s.submitMu.Unlock, true
}

// PatientID is the backend id of the session's patient.
func (s *Session) PatientID() string { return s.Patient.ID.String() }

// Refresher reloads a patient's appointments from the backend.
type Refresher interface {
	ListAppointments(ctx context.Context, patientID string, owned []string) ([]appointments.Appointment, error)
}

// Manager issues tokens and tracks live sessions.
type Manager struct {
	tokens    *Tokens
	repo      Repository
	refresher Refresher
	logger    *logging.Logger
	now       func() time.Time

	mu   sync.RWMutex
	live map[string]*Session
}

// NewManager wires the token issuer to a repository. A nil repository keeps
// records in memory.
func NewManager(tokens *Tokens, repo Repository, logger *logging.Logger) *Manager {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		tokens: tokens,
		repo:   repo,
		logger: logger,
		now:    time.Now,
		live:   make(map[string]*Session),
	}
}

// WithRefresher sets the source used to re-seed sessions that are valid in
// the repository but not held by this process.
func (m *Manager) WithRefresher(r Refresher) *Manager {
	m.refresher = r
	return m
}

// Create opens a session for a freshly logged-in patient and seeds its store
// from the login payload.
func (m *Manager) Create(ctx context.Context, patient hospital.Patient) (string, *Session, error) {
	id := uuid.NewString()
	token, expires, err := m.tokens.Issue(id, patient.ID.String())
	if err != nil {
		return "", nil, err
	}
	rec := Record{ID: id, Patient: patient, CreatedAt: m.now().UTC(), ExpiresAt: expires.UTC()}
	if err := m.repo.Save(ctx, rec, m.tokens.TTL()); err != nil {
		return "", nil, err
	}

	sess := &Session{
		ID:        id,
		Patient:   patient,
		Store:     appointments.NewStore(patient.StoreAppointments()...),
		ExpiresAt: expires,
	}
	m.mu.Lock()
	m.live[id] = sess
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", id, "patient_id", patient.ID.String(), "appointments", sess.Store.Len())
	return token, sess, nil
}

// Resolve verifies a token and returns its live session.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	rec, err := m.repo.Load(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.drop(claims.ID)
		}
		return nil, err
	}
	if rec.Patient.ID.String() != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}

	m.mu.RLock()
	sess, ok := m.live[rec.ID]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}
	return m.rebuild(ctx, rec), nil
}

// rebuild restores a session that another process (or an earlier run of this
// one) created.
func (m *Manager) rebuild(ctx context.Context, rec Record) *Session {
	seed := rec.Patient.StoreAppointments()
	if m.refresher != nil {
		owned := make([]string, len(seed))
		for i, a := range seed {
			owned[i] = a.ID
		}
		fresh, err := m.refresher.ListAppointments(ctx, rec.Patient.ID.String(), owned)
		if err != nil {
			m.logger.Warn("session refresh failed, using login snapshot", "session_id", rec.ID, "error", err)
		} else {
			seed = fresh
		}
	}
	sess := &Session{
		ID:        rec.ID,
		Patient:   rec.Patient,
		Store:     appointments.NewStore(seed...),
		ExpiresAt: rec.ExpiresAt,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.live[rec.ID]; ok {
		return existing
	}
	m.live[rec.ID] = sess
	m.logger.Info("session restored", "session_id", rec.ID)
	return sess
}

// Destroy revokes the session behind token.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return err
	}
	m.drop(claims.ID)
	return m.repo.Delete(ctx, claims.ID)
}

func (m *Manager) drop(id string) {
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()
}

// Lookup returns a live session by id without token verification.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.live[id]
	return sess, ok
}

// PatientContact resolves the email contact of a session's patient.
func (m *Manager) PatientContact(ctx context.Context, sessionID string) (notify.Contact, error) {
	if sess, ok := m.Lookup(sessionID); ok {
		return notify.Contact{Email: sess.Patient.Email, Name: sess.Patient.FullName()}, nil
	}
	rec, err := m.repo.Load(ctx, sessionID)
	if err != nil {
		return notify.Contact{}, err
	}
	return notify.Contact{Email: rec.Patient.Email, Name: rec.Patient.FullName()}, nil
}

// Sweep forgets live sessions whose tokens have expired and reports how many
// were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sess := range m.live {
		if !sess.ExpiresAt.IsZero() && !now.Before(sess.ExpiresAt) {
			delete(m.live, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on interval until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.logger.Debug("expired sessions swept", "count", n)
				}
			}
		}
	}()
}
