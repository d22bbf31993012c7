package session

import (
	"context"
	"sort"
	"sync"
)

type ListOpts struct {
	AssessmentID string
	UserID       string
	Status       string
	Limit        int
	Offset       int
}

// Store is the persistence contract the controller drives. UpsertAnswer is
// keyed by (session, question): a new selection replaces the old record, but
// only when its Seq is not behind the stored one, so a delayed write cannot
// undo a later correction. UpdateSession must never move elapsed_sec
// backward. CreateResult writes exactly once per session and fails with
// ErrResultExists afterwards.
type Store interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, s Session) error
	UpsertAnswer(ctx context.Context, a Answer) error
	GetAnswers(ctx context.Context, sessionID string) ([]Answer, error)
	CreateResult(ctx context.Context, r Result) error
	GetResult(ctx context.Context, sessionID string) (Result, error)
	ListCompletedResults(ctx context.Context, assessmentID string) ([]Result, error)
	ListSessions(ctx context.Context, opts ListOpts) ([]Session, error)
}

type answerKey struct{ sessionID, questionID string }

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	answers  map[answerKey]Answer
	results  map[string]Result
}

// NewInMemoryStore backs the controller in tests and offline demos.
func NewInMemoryStore() Store {
	return &memoryStore{
		sessions: map[string]Session{},
		answers:  map[answerKey]Answer{},
		results:  map[string]Result{},
	}
}

func (m *memoryStore) CreateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) UpdateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if s.ElapsedSec < cur.ElapsedSec {
		s.ElapsedSec = cur.ElapsedSec
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryStore) UpsertAnswer(_ context.Context, a Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := answerKey{a.SessionID, a.QuestionID}
	if cur, ok := m.answers[k]; ok && cur.Seq > a.Seq {
		return nil // stale write arriving after a newer selection
	}
	m.answers[k] = a
	return nil
}

func (m *memoryStore) GetAnswers(_ context.Context, sessionID string) ([]Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Answer{}
	for k, a := range m.answers {
		if k.sessionID == sessionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (m *memoryStore) CreateResult(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.results[r.SessionID]; exists {
		return ErrResultExists
	}
	m.results[r.SessionID] = r
	return nil
}

func (m *memoryStore) GetResult(_ context.Context, sessionID string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[sessionID]
	if !ok {
		return Result{}, ErrResultNotFound
	}
	return r, nil
}

func (m *memoryStore) ListCompletedResults(_ context.Context, assessmentID string) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Result{}
	for _, r := range m.results {
		if r.AssessmentID == assessmentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (m *memoryStore) ListSessions(_ context.Context, opts ListOpts) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Session{}
	for _, s := range m.sessions {
		if opts.AssessmentID != "" && s.AssessmentID != opts.AssessmentID {
			continue
		}
		if opts.UserID != "" && s.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && string(s.Status) != opts.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Session{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
