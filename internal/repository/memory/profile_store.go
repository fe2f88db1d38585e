package memory

import (
	"context"
	"sync"

	"github.com/iamasit07/guess-master/backend/internal/domain"
)

// ProfileStore remembers profiles of users seen in access tokens.
// It stands in for the users table when the server runs without a database.
type ProfileStore struct {
	profiles map[domain.PlayerID]domain.Profile
	mu       sync.RWMutex
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[domain.PlayerID]domain.Profile)}
}

func (st *ProfileStore) Remember(p domain.Profile) {
	if p.ID.IsZero() {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.profiles[p.ID] = p
}

func (st *ProfileStore) GetProfilesByIDs(ctx context.Context, ids []domain.PlayerID) ([]domain.Profile, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]domain.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := st.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
