package memory

import (
	"context"
	"sync"

	"github.com/iamasit07/guess-master/backend/internal/domain"
)

// MessageStore is an append-only in-memory message log.
type MessageStore struct {
	messages map[string][]domain.Message
	mu       sync.RWMutex
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string][]domain.Message)}
}

func (st *MessageStore) Create(ctx context.Context, m *domain.Message) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.messages[m.SessionID] = append(st.messages[m.SessionID], *m)
	return nil
}

// ListBySession returns messages in insertion order, which is creation order.
func (st *MessageStore) ListBySession(ctx context.Context, sessionID string) ([]domain.Message, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]domain.Message(nil), st.messages[sessionID]...), nil
}
