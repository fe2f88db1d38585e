package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/iamasit07/guess-master/backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	mu   sync.Mutex
	msgs []domain.ServerMessage
}

func (h *recordingHub) BroadcastToRoom(room string, m domain.ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, m)
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.msgs))
	for _, m := range h.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (h *recordingHub) last() domain.ServerMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.msgs[len(h.msgs)-1]
}

type MockProfileResolver struct {
	mock.Mock
}

func (m *MockProfileResolver) Profiles(ctx context.Context, ids []domain.PlayerID) (map[domain.PlayerID]domain.Profile, error) {
	args := m.Called(ctx, ids)
	if v := args.Get(0); v != nil {
		return v.(map[domain.PlayerID]domain.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLog) AppendSystem(ctx context.Context, s *domain.Session, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, "system:"+content)
}

func (l *recordingLog) AppendGuess(ctx context.Context, s *domain.Session, author domain.PlayerID, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, "guess:"+author.String()+":"+content)
}

func newTestService(t *testing.T, opts Options) (*Service, *memory.SessionStore, *recordingHub) {
	t.Helper()
	store := memory.NewSessionStore()
	svc := NewService(store, nil, &recordingLog{}, opts)
	hub := &recordingHub{}
	svc.AttachBroadcaster(hub)
	t.Cleanup(svc.Shutdown)
	return svc, store, hub
}

// seedRound creates ABC123 with u1 as master plus u2 and u3, and starts a round.
func seedRound(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Create(ctx, "abc123", "u1")
	require.NoError(t, err)
	_, err = svc.Join(ctx, "ABC123", "u2")
	require.NoError(t, err)
	_, err = svc.Join(ctx, "ABC123", "u3")
	require.NoError(t, err)
	_, err = svc.Start(ctx, "ABC123", "u1", "Capital of France?", "Paris")
	require.NoError(t, err)
}

func TestScenarioWinningGuess(t *testing.T) {
	svc, _, hub := newTestService(t, Options{})
	seedRound(t, svc)
	ctx := context.Background()

	res, err := svc.SubmitGuess(ctx, "ABC123", "u2", "  PARIS ")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	require.NotNil(t, res.Winner)
	assert.Equal(t, domain.PlayerID("u2"), res.Winner.ID)
	assert.Equal(t, domain.StatusEnded, res.Session.Status)
	assert.Equal(t, "Paris", res.Session.Answer)
	require.NotNil(t, res.Session.GameMaster)
	assert.Equal(t, domain.PlayerID("u2"), res.Session.GameMaster.ID)

	detail, err := svc.Get(ctx, "abc123", "u3")
	require.NoError(t, err)
	assert.Equal(t, 3, detail.PlayerCount)
	scores := map[domain.PlayerID]int{}
	for _, s := range detail.Scores {
		scores[s.User.ID] = s.Score
	}
	assert.Equal(t, map[domain.PlayerID]int{"u1": 0, "u2": 10, "u3": 0}, scores)
	assert.Empty(t, detail.Session.Attempts)

	assert.False(t, svc.timers.pending("ABC123"))
	assert.Equal(t, domain.EventSessionUpdated, hub.last().Type)
}

func TestCreateRejectsDuplicateAndBadCodes(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.Create(ctx, "abc123", "u1")
	require.NoError(t, err)

	_, err = svc.Create(ctx, " ABC123 ", "u2")
	assert.ErrorIs(t, err, domain.ErrSessionCodeTaken)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	_, err = svc.Create(ctx, "a!", "u2")
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))

	_, err = svc.Create(ctx, "", "u2")
	assert.ErrorIs(t, err, domain.ErrCodeRequired)
}

func TestJoinRules(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.Join(ctx, "NOPE1", "u2")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.Create(ctx, "ABC123", "u1")
	require.NoError(t, err)
	_, err = svc.Join(ctx, "ABC123", "u1")
	assert.ErrorIs(t, err, domain.ErrAlreadyJoined)

	_, err = svc.Join(ctx, "ABC123", "u2")
	require.NoError(t, err)
	_, err = svc.Join(ctx, "ABC123", "u3")
	require.NoError(t, err)
	_, err = svc.Start(ctx, "ABC123", "u1", "Capital of France?", "Paris")
	require.NoError(t, err)

	_, err = svc.Join(ctx, "ABC123", "u4")
	assert.ErrorIs(t, err, domain.ErrGameInProgress)
}

func TestStartRules(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.Start(ctx, "ABC123", "u1", "", "Paris")
	assert.ErrorIs(t, err, domain.ErrStartFields)

	_, err = svc.Start(ctx, "ABC123", "u1", "Why", "Paris")
	assert.ErrorIs(t, err, domain.ErrQuestionLength)

	_, err = svc.Start(ctx, "ABC123", "u1", "Capital of France?", "Paris")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.Create(ctx, "ABC123", "u1")
	require.NoError(t, err)
	_, err = svc.Join(ctx, "ABC123", "u2")
	require.NoError(t, err)

	_, err = svc.Start(ctx, "ABC123", "u2", "Capital of France?", "Paris")
	assert.ErrorIs(t, err, domain.ErrNotGameMaster)

	_, err = svc.Start(ctx, "ABC123", "u1", "Capital of France?", "Paris")
	assert.ErrorIs(t, err, domain.ErrNotEnoughPlayers)

	_, err = svc.Join(ctx, "ABC123", "u3")
	require.NoError(t, err)
	_, err = svc.Start(ctx, "ABC123", "u1", "Capital of France?", "Paris")
	require.NoError(t, err)
	assert.True(t, svc.timers.pending("ABC123"))

	_, err = svc.Start(ctx, "ABC123", "u1", "Capital of Spain?", "Madrid")
	assert.ErrorIs(t, err, domain.ErrGameInProgress)
}

func TestStartAfterEndedResetsRound(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	seedRound(t, svc)
	ctx := context.Background()

	_, err := svc.SubmitGuess(ctx, "ABC123", "u2", "paris")
	require.NoError(t, err)

	snap, err := svc.Start(ctx, "ABC123", "u2", "Capital of Spain?", "Madrid")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, snap.Status)
	assert.Nil(t, snap.Winner)
	assert.Nil(t, snap.EndTime)
	assert.Equal(t, "Madrid", snap.Answer)
	assert.Len(t, snap.Attempts, 3)
}

func TestSubmitGuessRules(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.SubmitGuess(ctx, "ABC123", "u2", "  ")
	assert.ErrorIs(t, err, domain.ErrGuessFields)

	_, err = svc.SubmitGuess(ctx, "ABC123", "u2", "paris")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.Create(ctx, "ABC123", "u1")
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, "ABC123", "u1", "paris")
	assert.ErrorIs(t, err, domain.ErrNotInProgress)

	_, err = svc.Join(ctx, "ABC123", "u2")
	require.NoError(t, err)
	_, err = svc.Join(ctx, "ABC123", "u3")
	require.NoError(t, err)
	_, err = svc.Start(ctx, "ABC123", "u1", "Capital of France?", "Paris")
	require.NoError(t, err)

	_, err = svc.SubmitGuess(ctx, "ABC123", "u1", "paris")
	assert.ErrorIs(t, err, domain.ErrGameMasterGuess)

	_, err = svc.SubmitGuess(ctx, "ABC123", "stranger", "paris")
	assert.ErrorIs(t, err, domain.ErrNotRoundPlayer)
}

func TestAttemptsNeverGoNegative(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	seedRound(t, svc)
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		res, err := svc.SubmitGuess(ctx, "ABC123", "u2", "London")
		require.NoError(t, err)
		assert.False(t, res.Correct)
		assert.Equal(t, want, res.AttemptsLeft)
	}

	_, err := svc.SubmitGuess(ctx, "ABC123", "u2", "Paris")
	assert.ErrorIs(t, err, domain.ErrNoAttemptsLeft)

	detail, err := svc.Get(ctx, "ABC123", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, detail.Session.Status)
	for _, a := range detail.Session.Attempts {
		if a.UserID == "u2" {
			assert.Equal(t, 0, a.AttemptsLeft)
		}
	}
}

func TestOnlyOneConcurrentWinner(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.Create(ctx, "RACE1", "gm")
	require.NoError(t, err)
	players := make([]domain.PlayerID, 0, 12)
	for i := 0; i < 12; i++ {
		id := domain.PlayerID(fmt.Sprintf("p%d", i))
		players = append(players, id)
		_, err := svc.Join(ctx, "RACE1", id)
		require.NoError(t, err)
	}
	_, err = svc.Start(ctx, "RACE1", "gm", "Capital of France?", "Paris")
	require.NoError(t, err)

	var wins, conflicts int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, p := range players {
		wg.Add(1)
		go func(p domain.PlayerID) {
			defer wg.Done()
			<-start
			res, err := svc.SubmitGuess(ctx, "RACE1", p, "paris")
			switch {
			case err == nil && res.Correct:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, domain.ErrRoundAlreadyWon):
				atomic.AddInt32(&conflicts, 1)
			}
		}(p)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(len(players)-1), conflicts)
}

func TestSanitization(t *testing.T) {
	svc, _, hub := newTestService(t, Options{})
	seedRound(t, svc)
	ctx := context.Background()

	gmView, err := svc.Get(ctx, "ABC123", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Paris", gmView.Session.Answer)

	playerView, err := svc.Get(ctx, "ABC123", "u2")
	require.NoError(t, err)
	assert.Empty(t, playerView.Session.Answer)
	assert.Equal(t, "Capital of France?", playerView.Session.Question)

	msg := hub.last()
	require.Equal(t, domain.EventSessionUpdated, msg.Type)
	snap, ok := msg.Data.(*Snapshot)
	require.True(t, ok)
	assert.Equal(t, domain.StatusInProgress, snap.Status)
	assert.Empty(t, snap.Answer)
}

func TestSessionDetailWireShape(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	seedRound(t, svc)

	detail, err := svc.Get(context.Background(), "ABC123", "u2")
	require.NoError(t, err)
	raw, err := json.Marshal(detail)
	require.NoError(t, err)

	var wire struct {
		Session struct {
			Attempts []map[string]any `json:"attempts"`
			Scores   []map[string]any `json:"scores"`
		} `json:"session"`
		Scores []map[string]any `json:"scores"`
	}
	require.NoError(t, json.Unmarshal(raw, &wire))

	require.NotEmpty(t, wire.Scores)
	user, ok := wire.Scores[0]["userId"].(map[string]any)
	require.True(t, ok, "scores entry has no userId object: %v", wire.Scores[0])
	assert.Equal(t, "u1", user["_id"])
	assert.Contains(t, wire.Scores[0], "score")

	require.NotEmpty(t, wire.Session.Scores)
	assert.Contains(t, wire.Session.Scores[0], "userId")
	require.NotEmpty(t, wire.Session.Attempts)
	assert.NotEmpty(t, wire.Session.Attempts[0]["userId"])
	assert.Contains(t, wire.Session.Attempts[0], "attemptsLeft")
}

func TestRoundTimesOut(t *testing.T) {
	svc, _, hub := newTestService(t, Options{RoundDuration: 40 * time.Millisecond})
	seedRound(t, svc)
	ctx := context.Background()

	require.Eventually(t, func() bool {
		d, err := svc.Get(ctx, "ABC123", "u2")
		return err == nil && d.Session.Status == domain.StatusEnded
	}, 2*time.Second, 10*time.Millisecond)

	d, err := svc.Get(ctx, "ABC123", "u2")
	require.NoError(t, err)
	assert.Nil(t, d.Session.Winner)
	require.NotNil(t, d.Session.GameMaster)
	assert.Equal(t, domain.PlayerID("u2"), d.Session.GameMaster.ID)
	assert.Equal(t, "Paris", d.Session.Answer)

	types := hub.types()
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, []string{domain.EventSessionUpdated, domain.EventSessionTimeout}, types[len(types)-2:])

	_, err = svc.SubmitGuess(ctx, "ABC123", "u3", "paris")
	assert.ErrorIs(t, err, domain.ErrNotInProgress)
}

func TestWinCancelsTimer(t *testing.T) {
	svc, _, hub := newTestService(t, Options{RoundDuration: 60 * time.Millisecond})
	seedRound(t, svc)

	_, err := svc.SubmitGuess(context.Background(), "ABC123", "u3", "Paris")
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	assert.NotContains(t, hub.types(), domain.EventSessionTimeout)
}

func TestStaleRoundTokenIsIgnored(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	seedRound(t, svc)
	ctx := context.Background()

	unlock := svc.locks.Lock("ABC123")
	done, err := svc.timeoutRound(ctx, "ABC123", time.Unix(0, 0))
	unlock()
	require.NoError(t, err)
	assert.False(t, done)

	d, err := svc.Get(ctx, "ABC123", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, d.Session.Status)
}

func TestLeave(t *testing.T) {
	svc, store, hub := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.Create(ctx, "ABC123", "u1")
	require.NoError(t, err)
	_, err = svc.Join(ctx, "ABC123", "u2")
	require.NoError(t, err)

	_, err = svc.Leave(ctx, "ABC123", "u1", "u2")
	assert.ErrorIs(t, err, domain.ErrLeaveOthers)

	_, err = svc.Leave(ctx, "", "u1", "")
	assert.ErrorIs(t, err, domain.ErrLeaveCodeRequired)

	_, err = svc.Leave(ctx, "ABC123", "u9", "")
	assert.ErrorIs(t, err, domain.ErrNotMember)

	res, err := svc.Leave(ctx, "abc123", "u1", "")
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	require.NotNil(t, res.Session.GameMaster)
	assert.Equal(t, domain.PlayerID("u2"), res.Session.GameMaster.ID)
	assert.Len(t, res.Session.Scores, 1)

	res, err = svc.Leave(ctx, "ABC123", "u2", "u2")
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, domain.EventSessionDeleted, hub.last().Type)

	_, err = store.GetByCode(ctx, "ABC123")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestLeaveMidRoundDeletesTimerWithSession(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	seedRound(t, svc)
	ctx := context.Background()

	for _, u := range []domain.PlayerID{"u2", "u3", "u1"} {
		_, err := svc.Leave(ctx, "ABC123", u, u)
		require.NoError(t, err)
	}
	assert.False(t, svc.timers.pending("ABC123"))
}

func TestPublishWithoutHubIsNoop(t *testing.T) {
	svc := NewService(memory.NewSessionStore(), nil, nil, Options{})
	defer svc.Shutdown()

	_, err := svc.Create(context.Background(), "ABC123", "u1")
	require.NoError(t, err)
}

func TestListHidesSecrets(t *testing.T) {
	profiles := new(MockProfileResolver)
	profiles.On("Profiles", mock.Anything, mock.Anything).Return(map[domain.PlayerID]domain.Profile{
		"u1": {ID: "u1", Username: "alice", FullName: "Alice A"},
	}, nil)

	store := memory.NewSessionStore()
	svc := NewService(store, profiles, nil, Options{})
	defer svc.Shutdown()
	ctx := context.Background()

	_, err := svc.Create(ctx, "ABC123", "u1")
	require.NoError(t, err)
	_, err = svc.Join(ctx, "ABC123", "u2")
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].PlayerCount)
	require.NotNil(t, list[0].GameMaster)
	assert.Equal(t, "alice", list[0].GameMaster.Username)
	assert.Equal(t, domain.Profile{ID: "u2"}, list[0].Players[1])
}

func TestDashboard(t *testing.T) {
	profiles := new(MockProfileResolver)
	profiles.On("Profiles", mock.Anything, []domain.PlayerID{"u2"}).Return(map[domain.PlayerID]domain.Profile{
		"u2": {ID: "u2", Username: "bob"},
	}, nil)
	profiles.On("Profiles", mock.Anything, []domain.PlayerID{"ghost"}).Return(map[domain.PlayerID]domain.Profile{}, nil)
	profiles.On("Profiles", mock.Anything, mock.Anything).Return(map[domain.PlayerID]domain.Profile{}, nil)

	svc := NewService(memory.NewSessionStore(), profiles, nil, Options{})
	defer svc.Shutdown()
	seedRound(t, svc)
	ctx := context.Background()

	_, err := svc.SubmitGuess(ctx, "ABC123", "u2", "Rome")
	require.NoError(t, err)

	dash, err := svc.Dashboard(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "bob", dash.User.Username)
	assert.Equal(t, domain.UserStats{GamesPlayed: 1, GamesWon: 0, TotalGuesses: 1}, dash.Stats)

	_, err = svc.Dashboard(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
