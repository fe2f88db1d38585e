package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/iamasit07/guess-master/backend/internal/domain"
)

// SessionStore keeps sessions in process memory, keyed by code.
type SessionStore struct {
	sessions map[string]*domain.Session
	byID     map[string]string
	mu       sync.RWMutex
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		byID:     make(map[string]string),
	}
}

// Create stores s, failing with domain.ErrSessionCodeTaken when the code is in use.
func (st *SessionStore) Create(ctx context.Context, s *domain.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.sessions[s.Code]; exists {
		return domain.ErrSessionCodeTaken
	}
	s.Version = 1
	st.sessions[s.Code] = s.Clone()
	st.byID[s.ID] = s.Code
	return nil
}

// GetByCode returns a copy of the session stored under code.
func (st *SessionStore) GetByCode(ctx context.Context, code string) (*domain.Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, exists := st.sessions[code]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (st *SessionStore) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	code, ok := st.byID[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return st.sessions[code].Clone(), nil
}

// Update replaces the stored session if its version still matches s.Version.
func (st *SessionStore) Update(ctx context.Context, s *domain.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	current, exists := st.sessions[s.Code]
	if !exists {
		return domain.ErrSessionNotFound
	}
	if current.Version != s.Version {
		return domain.ErrStaleSession
	}
	s.Version++
	st.sessions[s.Code] = s.Clone()
	return nil
}

func (st *SessionStore) Delete(ctx context.Context, code string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, exists := st.sessions[code]; exists {
		delete(st.byID, s.ID)
		delete(st.sessions, code)
	}
	return nil
}

// List returns copies of all sessions, oldest first.
func (st *SessionStore) List(ctx context.Context) ([]domain.Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]domain.Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, *s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
