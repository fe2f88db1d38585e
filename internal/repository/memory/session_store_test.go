package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreCRUD(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()

	s := domain.NewSession("id-1", "ABC123", "u1", time.Now())
	require.NoError(t, st.Create(ctx, s))
	assert.ErrorIs(t, st.Create(ctx, domain.NewSession("id-2", "ABC123", "u2", time.Now())), domain.ErrSessionCodeTaken)

	got, err := st.GetByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, []domain.PlayerID{"u1"}, got.Players)

	byID, err := st.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", byID.Code)

	// returned records are copies
	got.Players = append(got.Players, "u2")
	again, _ := st.GetByCode(ctx, "ABC123")
	assert.Len(t, again.Players, 1)

	require.NoError(t, st.Delete(ctx, "ABC123"))
	require.NoError(t, st.Delete(ctx, "ABC123"))
	_, err = st.GetByCode(ctx, "ABC123")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = st.GetByID(ctx, "id-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionStoreVersionedUpdate(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()
	require.NoError(t, st.Create(ctx, domain.NewSession("id-1", "ABC123", "u1", time.Now())))

	first, _ := st.GetByCode(ctx, "ABC123")
	second, _ := st.GetByCode(ctx, "ABC123")

	first.AddPlayer("u2")
	require.NoError(t, st.Update(ctx, first))

	second.AddPlayer("u3")
	assert.ErrorIs(t, st.Update(ctx, second), domain.ErrStaleSession)

	got, _ := st.GetByCode(ctx, "ABC123")
	assert.Equal(t, []domain.PlayerID{"u1", "u2"}, got.Players)
	assert.Equal(t, int64(2), got.Version)
}

func TestSessionStoreListOrder(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()
	base := time.Now()
	require.NoError(t, st.Create(ctx, domain.NewSession("b", "BBB", "u1", base.Add(time.Second))))
	require.NoError(t, st.Create(ctx, domain.NewSession("a", "AAA", "u1", base)))

	list, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "AAA", list[0].Code)
	assert.Equal(t, "BBB", list[1].Code)
}

func TestMessageStoreOrder(t *testing.T) {
	ctx := context.Background()
	st := NewMessageStore()
	require.NoError(t, st.Create(ctx, &domain.Message{ID: "1", SessionID: "s", Content: "hi"}))
	require.NoError(t, st.Create(ctx, &domain.Message{ID: "2", SessionID: "s", Content: "there"}))
	require.NoError(t, st.Create(ctx, &domain.Message{ID: "3", SessionID: "other", Content: "x"}))

	msgs, err := st.ListBySession(ctx, "s")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "there", msgs[1].Content)
}

func TestSessionStoreKeepsRoundState(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s := domain.NewSession("id-1", "ABC123", "u1", now)
	require.NoError(t, st.Create(ctx, s))
	s.AddPlayer("u2")
	s.AddPlayer("u3")
	s.BeginRound("Capital of France?", "Paris", now.Add(time.Minute))
	require.NoError(t, st.Update(ctx, s))

	got, err := st.GetByCode(ctx, "ABC123")
	require.NoError(t, err)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("stored session mismatch (-want +got):\n%s", diff)
	}
}
