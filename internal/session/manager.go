package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prepdesk/prepdesk-backend/internal/catalog"
)

// Manager owns the live in-memory controllers behind the HTTP surface. A
// session is materialized on first touch and dropped once it completes, so a
// process restart costs nothing but one Load per active session.
type Manager struct {
	store Store
	cat   catalog.Store

	mu        sync.Mutex
	exams     map[string]*Controller
	practices map[string]*Practice

	ctrlOpts []Option
	pracOpts []PracticeOption
}

func NewManager(store Store, cat catalog.Store, ctrlOpts []Option, pracOpts []PracticeOption) *Manager {
	return &Manager{
		store:     store,
		cat:       cat,
		exams:     map[string]*Controller{},
		practices: map[string]*Practice{},
		ctrlOpts:  ctrlOpts,
		pracOpts:  pracOpts,
	}
}

// CreateSession registers a new NOT_STARTED session for the given assessment.
func (m *Manager) CreateSession(ctx context.Context, userID, assessmentID, entitlementID string, mode Mode) (Session, error) {
	if mode != ModeExam && mode != ModePractice {
		return Session{}, validationf("unknown mode %q", mode)
	}
	if _, err := m.cat.GetAssessment(ctx, assessmentID); err != nil {
		return Session{}, err
	}
	sess := Session{
		ID:            uuid.NewString(),
		AssessmentID:  assessmentID,
		UserID:        userID,
		EntitlementID: entitlementID,
		Mode:          mode,
		Status:        StatusNotStarted,
		CreatedAt:     time.Now().Unix(),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Exam returns the live controller for an exam-mode session, loading it from
// the store on first touch.
func (m *Manager) Exam(ctx context.Context, sessionID string) (*Controller, error) {
	m.mu.Lock()
	if c, ok := m.exams[sessionID]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	c, err := Load(ctx, m.store, m.cat, sessionID, m.ctrlOpts...)
	if err != nil {
		return nil, err
	}
	if c.Snapshot().Mode != ModeExam {
		return nil, validationf("session %s is not an exam session", sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prior, ok := m.exams[sessionID]; ok {
		// Lost the materialization race; keep the first one.
		return prior, nil
	}
	m.exams[sessionID] = c
	return c, nil
}

// Practice returns the live run for a practice-mode session.
func (m *Manager) Practice(ctx context.Context, sessionID string) (*Practice, error) {
	m.mu.Lock()
	if p, ok := m.practices[sessionID]; ok {
		m.mu.Unlock()
		return p, nil
	}
	m.mu.Unlock()

	p, err := LoadPractice(ctx, m.store, m.cat, sessionID, m.pracOpts...)
	if err != nil {
		return nil, err
	}
	if p.sess.Mode != ModePractice {
		return nil, validationf("session %s is not a practice session", sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prior, ok := m.practices[sessionID]; ok {
		return prior, nil
	}
	m.practices[sessionID] = p
	return p, nil
}

// Release drops a completed session from the live maps.
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.exams[sessionID]; ok {
		c.StopClock()
		delete(m.exams, sessionID)
	}
	delete(m.practices, sessionID)
}

// Owns reports whether the session belongs to userID. Used by the HTTP layer
// for the view-own permission check.
func (m *Manager) Owns(ctx context.Context, sessionID, userID string) bool {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return false
	}
	return sess.UserID == userID
}

func (m *Manager) Store() Store { return m.store }
