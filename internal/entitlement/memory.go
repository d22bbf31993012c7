package entitlement

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu     sync.RWMutex
	grants map[string]Entitlement // key: userID + "\x00" + assessmentID
}

func NewMemoryStore() Store {
	return &memoryStore{grants: map[string]Entitlement{}}
}

func key(userID, assessmentID string) string { return userID + "\x00" + assessmentID }

func (m *memoryStore) Grant(_ context.Context, e Entitlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(e.UserID, e.AssessmentID)
	if _, ok := m.grants[k]; ok {
		return ErrExists
	}
	m.grants[k] = e
	return nil
}

func (m *memoryStore) Lookup(_ context.Context, userID, assessmentID string) (Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.grants[key(userID, assessmentID)]
	if !ok {
		return Entitlement{}, ErrNotEntitled
	}
	return e, nil
}

func (m *memoryStore) ListForUser(_ context.Context, userID string) ([]Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Entitlement{}
	for _, e := range m.grants {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}
