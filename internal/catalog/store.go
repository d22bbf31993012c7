package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("assessment not found")

type ListOpts struct {
	Q      string
	Limit  int
	Offset int
}

// Store is the read side the session core consumes plus the authoring write.
// GetAssessment is student-safe (answer keys stripped); GetAssessmentFull is
// for scoring and authoring surfaces only.
type Store interface {
	PutAssessment(ctx context.Context, a Assessment) error
	GetAssessment(ctx context.Context, id string) (Assessment, error)
	GetAssessmentFull(ctx context.Context, id string) (Assessment, error)
	ListAssessments(ctx context.Context, opts ListOpts) ([]Summary, error)
}

type memoryStore struct {
	mu    sync.RWMutex
	items map[string]Assessment
}

func NewInMemoryStore() Store {
	return &memoryStore{items: map[string]Assessment{}}
}

func (m *memoryStore) PutAssessment(_ context.Context, a Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[a.ID] = a
	return nil
}

func (m *memoryStore) GetAssessment(ctx context.Context, id string) (Assessment, error) {
	a, err := m.GetAssessmentFull(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	return a.StripAnswerKeys(), nil
}

func (m *memoryStore) GetAssessmentFull(_ context.Context, id string) (Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.items[id]
	if !ok {
		return Assessment{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) ListAssessments(_ context.Context, opts ListOpts) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.items))
	for _, a := range m.items {
		out = append(out, Summary{
			ID:            a.ID,
			Title:         a.Title,
			QuestionCount: len(a.Questions),
			SectionCount:  len(a.Sections),
			DurationMin:   a.DurationMin,
			PassingGrade:  a.PassingGrade,
			CreatedAt:     a.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
