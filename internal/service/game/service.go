package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/iamasit07/guess-master/backend/pkg/uid"
	"github.com/rs/zerolog/log"
)

const DefaultRoundDuration = 60 * time.Second

// SessionStore persists session records keyed by code.
// Update must fail with domain.ErrStaleSession when the stored version moved on.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByCode(ctx context.Context, code string) (*domain.Session, error)
	Update(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]domain.Session, error)
}

// ProfileResolver expands player ids for display.
type ProfileResolver interface {
	Profiles(ctx context.Context, ids []domain.PlayerID) (map[domain.PlayerID]domain.Profile, error)
}

// MessageLog records session events in the chat log.
type MessageLog interface {
	AppendSystem(ctx context.Context, s *domain.Session, content string)
	AppendGuess(ctx context.Context, s *domain.Session, author domain.PlayerID, content string)
}

// Broadcaster delivers a frame to every subscriber of a room.
type Broadcaster interface {
	BroadcastToRoom(room string, message domain.ServerMessage)
}

type Options struct {
	RoundDuration     time.Duration
	RetryInterval     time.Duration
	MaxTimeoutRetries int
	Now               func() time.Time
	NewID             func() string
}

func (o *Options) setDefaults() {
	if o.RoundDuration <= 0 {
		o.RoundDuration = DefaultRoundDuration
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
	if o.MaxTimeoutRetries < 0 {
		o.MaxTimeoutRetries = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uid.NewSessionID
	}
}

// Service owns every session state transition.
type Service struct {
	store    SessionStore
	profiles ProfileResolver
	messages MessageLog
	opts     Options

	locks  *keyedMutex
	timers *roundTimers

	hubMu sync.RWMutex
	hub   Broadcaster
}

func NewService(store SessionStore, profiles ProfileResolver, messages MessageLog, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		store:    store,
		profiles: profiles,
		messages: messages,
		opts:     opts,
		locks:    newKeyedMutex(),
		timers:   newRoundTimers(),
	}
}

// AttachBroadcaster sets the push hub. Until then publishing is a no-op.
func (svc *Service) AttachBroadcaster(b Broadcaster) {
	svc.hubMu.Lock()
	svc.hub = b
	svc.hubMu.Unlock()
}

// Shutdown stops all pending round timers.
func (svc *Service) Shutdown() {
	svc.timers.stopAll()
}

// RoundDuration is the configured length of a round.
func (svc *Service) RoundDuration() time.Duration {
	return svc.opts.RoundDuration
}

// timestamps are kept at microsecond precision so they survive a database round trip intact
func (svc *Service) now() time.Time {
	return svc.opts.Now().UTC().Truncate(time.Microsecond)
}

type GuessResult struct {
	Correct      bool
	Winner       *domain.Profile
	AttemptsLeft int
	Session      *Snapshot
}

type LeaveResult struct {
	Deleted bool
	Session *Snapshot
}

type Dashboard struct {
	User  domain.Profile   `json:"user"`
	Stats domain.UserStats `json:"stats"`
}

// Create opens a new waiting session owned by creator.
func (svc *Service) Create(ctx context.Context, rawCode string, creator domain.PlayerID) (*Snapshot, error) {
	code := domain.NormalizeCode(rawCode)
	if err := domain.ValidateCode(code); err != nil {
		return nil, err
	}
	if creator.IsZero() {
		return nil, domain.ErrUnauthenticated
	}

	unlock := svc.locks.Lock(code)
	defer unlock()

	sess := domain.NewSession(svc.opts.NewID(), code, creator, svc.now())
	if err := svc.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	log.Info().Str("component", "session").Str("code", code).Str("user", creator.String()).Msg("session created")
	svc.publishUpdate(ctx, sess)
	return svc.snapshot(ctx, sess, creator), nil
}

// Join adds user to a session that is not mid-round.
func (svc *Service) Join(ctx context.Context, rawCode string, user domain.PlayerID) (*Snapshot, error) {
	code := domain.NormalizeCode(rawCode)
	if code == "" {
		return nil, domain.ErrJoinCodeRequired
	}
	if user.IsZero() {
		return nil, domain.ErrUnauthenticated
	}

	unlock := svc.locks.Lock(code)
	defer unlock()

	sess, err := svc.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sess.Status == domain.StatusInProgress {
		return nil, domain.ErrGameInProgress
	}
	if sess.IsMember(user) {
		return nil, domain.ErrAlreadyJoined
	}

	sess.AddPlayer(user)
	sess.UpdatedAt = svc.now()
	if err := svc.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to join session %s: %w", code, err)
	}

	log.Info().Str("component", "session").Str("code", code).Str("user", user.String()).Msg("player joined")
	svc.appendSystem(ctx, sess, fmt.Sprintf("%s joined the game", svc.displayName(ctx, user)))
	svc.publishUpdate(ctx, sess)
	return svc.snapshot(ctx, sess, user), nil
}

// Start begins a round. Only the game master may call it and at least three players are needed.
func (svc *Service) Start(ctx context.Context, rawCode string, caller domain.PlayerID, question, answer string) (*Snapshot, error) {
	code := domain.NormalizeCode(rawCode)
	if code == "" || strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return nil, domain.ErrStartFields
	}
	q, a, err := domain.ValidateRound(question, answer)
	if err != nil {
		return nil, err
	}

	unlock := svc.locks.Lock(code)
	defer unlock()

	sess, err := svc.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !sess.IsGameMaster(caller) {
		return nil, domain.ErrNotGameMaster
	}
	if len(sess.Players) < domain.MinPlayersToStart {
		return nil, domain.ErrNotEnoughPlayers
	}
	if sess.Status == domain.StatusInProgress {
		return nil, domain.ErrGameInProgress
	}

	now := svc.now()
	sess.BeginRound(q, a, now)
	sess.UpdatedAt = now
	if err := svc.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to start round in %s: %w", code, err)
	}
	svc.armRoundTimer(code, now, svc.opts.RoundDuration, 0)

	log.Info().Str("component", "session").Str("code", code).Dur("duration", svc.opts.RoundDuration).Msg("round started")
	svc.appendSystem(ctx, sess, fmt.Sprintf("New round: %s", q))
	svc.publishUpdate(ctx, sess)
	return svc.snapshot(ctx, sess, caller), nil
}

// SubmitGuess checks a guess against the current round's answer.
func (svc *Service) SubmitGuess(ctx context.Context, rawCode string, user domain.PlayerID, guess string) (*GuessResult, error) {
	code := domain.NormalizeCode(rawCode)
	if code == "" {
		return nil, domain.ErrGuessFields
	}
	g, err := domain.ValidateGuess(guess)
	if err != nil {
		return nil, err
	}

	unlock := svc.locks.Lock(code)
	defer unlock()

	sess, err := svc.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sess.Status == domain.StatusEnded && !sess.Winner.IsZero() {
		return nil, domain.ErrRoundAlreadyWon
	}
	if sess.Status != domain.StatusInProgress {
		return nil, domain.ErrNotInProgress
	}
	if sess.IsGameMaster(user) {
		return nil, domain.ErrGameMasterGuess
	}
	left, ok := sess.Attempts[user]
	if !ok {
		return nil, domain.ErrNotRoundPlayer
	}
	if left <= 0 {
		return nil, domain.ErrNoAttemptsLeft
	}

	if !domain.AnswerMatches(g, sess.Answer) {
		sess.Attempts[user] = left - 1
		sess.UpdatedAt = svc.now()
		if err := svc.store.Update(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to record guess in %s: %w", code, err)
		}
		svc.appendGuess(ctx, sess, user, g)
		return &GuessResult{AttemptsLeft: left - 1}, nil
	}

	sess.AwardWin(user)
	if err := svc.finalize(ctx, sess, user); err != nil {
		return nil, err
	}

	name := svc.displayName(ctx, user)
	log.Info().Str("component", "session").Str("code", code).Str("winner", user.String()).Msg("round won")
	svc.appendSystem(ctx, sess, fmt.Sprintf("%s guessed it! The answer was %s", name, sess.Answer))
	svc.publishUpdate(ctx, sess)

	snap := svc.snapshot(ctx, sess, user)
	var winner *domain.Profile
	for i := range snap.Players {
		if snap.Players[i].ID == user {
			winner = &snap.Players[i]
			break
		}
	}
	if winner == nil {
		winner = &domain.Profile{ID: user}
	}
	return &GuessResult{Correct: true, Winner: winner, Session: snap}, nil
}

// finalize ends the current round of sess, persists it and clears its timer.
// The caller holds the code lock.
func (svc *Service) finalize(ctx context.Context, sess *domain.Session, winner domain.PlayerID) error {
	now := svc.now()
	sess.Finalize(winner, now)
	sess.UpdatedAt = now
	if err := svc.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("failed to finalize round in %s: %w", sess.Code, err)
	}
	svc.timers.cancel(sess.Code)
	return nil
}

// Leave removes target from the session. Players may only remove themselves.
// The last player leaving deletes the session.
func (svc *Service) Leave(ctx context.Context, rawCode string, requester, target domain.PlayerID) (*LeaveResult, error) {
	code := domain.NormalizeCode(rawCode)
	if code == "" {
		return nil, domain.ErrLeaveCodeRequired
	}
	if target.IsZero() {
		target = requester
	}
	if !domain.SameID(target, requester) {
		return nil, domain.ErrLeaveOthers
	}

	unlock := svc.locks.Lock(code)
	defer unlock()

	sess, err := svc.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !sess.IsMember(target) {
		return nil, domain.ErrNotMember
	}

	sess.RemovePlayer(target)
	if len(sess.Players) == 0 {
		if err := svc.store.Delete(ctx, code); err != nil {
			return nil, fmt.Errorf("failed to delete session %s: %w", code, err)
		}
		svc.timers.cancel(code)
		log.Info().Str("component", "session").Str("code", code).Msg("session deleted after last player left")
		svc.publishDeletion(code)
		return &LeaveResult{Deleted: true}, nil
	}

	sess.UpdatedAt = svc.now()
	if err := svc.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to leave session %s: %w", code, err)
	}

	log.Info().Str("component", "session").Str("code", code).Str("user", target.String()).Msg("player left")
	svc.appendSystem(ctx, sess, fmt.Sprintf("%s left the game", svc.displayName(ctx, target)))
	svc.publishUpdate(ctx, sess)
	return &LeaveResult{Session: svc.snapshot(ctx, sess, requester)}, nil
}

// Get returns the session as seen by viewer.
func (svc *Service) Get(ctx context.Context, rawCode string, viewer domain.PlayerID) (*SessionDetail, error) {
	code := domain.NormalizeCode(rawCode)
	if code == "" {
		return nil, domain.ErrSessionNotFound
	}
	sess, err := svc.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	snap := svc.snapshot(ctx, sess, viewer)
	return &SessionDetail{Session: snap, PlayerCount: len(sess.Players), Scores: snap.Scores}, nil
}

// Exists reports whether a session with code is stored.
func (svc *Service) Exists(ctx context.Context, rawCode string) (bool, error) {
	_, err := svc.store.GetByCode(ctx, domain.NormalizeCode(rawCode))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	return err == nil, err
}

// List returns every session without round secrets.
func (svc *Service) List(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := svc.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var ids []domain.PlayerID
	for i := range sessions {
		ids = append(ids, sessions[i].GameMaster)
		ids = append(ids, sessions[i].Players...)
	}
	profiles := svc.resolveProfiles(ctx, dedupe(ids))

	out := make([]SessionSummary, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		players := make([]domain.Profile, 0, len(s.Players))
		for _, p := range s.Players {
			players = append(players, *profileRef(profiles, p))
		}
		out = append(out, SessionSummary{
			Code:        s.Code,
			Status:      s.Status,
			PlayerCount: len(s.Players),
			GameMaster:  profileRef(profiles, s.GameMaster),
			Players:     players,
		})
	}
	return out, nil
}

// Dashboard returns the profile of user with stats over live sessions.
func (svc *Service) Dashboard(ctx context.Context, user domain.PlayerID) (*Dashboard, error) {
	if user.IsZero() {
		return nil, domain.ErrUnauthenticated
	}
	if svc.profiles == nil {
		return nil, domain.ErrUserNotFound
	}
	found, err := svc.profiles.Profiles(ctx, []domain.PlayerID{user})
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", user, err)
	}
	profile, ok := found[user]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	sessions, err := svc.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return &Dashboard{User: profile, Stats: domain.ComputeStats(user, sessions)}, nil
}

func dedupe(ids []domain.PlayerID) []domain.PlayerID {
	seen := make(map[domain.PlayerID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (svc *Service) displayName(ctx context.Context, id domain.PlayerID) string {
	p := svc.resolveProfiles(ctx, []domain.PlayerID{id})[id]
	switch {
	case p.FullName != "":
		return p.FullName
	case p.Username != "":
		return p.Username
	}
	return id.String()
}

func (svc *Service) appendSystem(ctx context.Context, s *domain.Session, content string) {
	if svc.messages != nil {
		svc.messages.AppendSystem(ctx, s, content)
	}
}

func (svc *Service) appendGuess(ctx context.Context, s *domain.Session, user domain.PlayerID, guess string) {
	if svc.messages != nil {
		svc.messages.AppendGuess(ctx, s, user, guess)
	}
}

func (svc *Service) broadcaster() Broadcaster {
	svc.hubMu.RLock()
	defer svc.hubMu.RUnlock()
	return svc.hub
}

// publishUpdate pushes the anonymous snapshot of sess to its room.
func (svc *Service) publishUpdate(ctx context.Context, sess *domain.Session) {
	hub := svc.broadcaster()
	if hub == nil {
		return
	}
	hub.BroadcastToRoom(sess.Code, domain.ServerMessage{
		Type: domain.EventSessionUpdated,
		Code: sess.Code,
		Data: svc.snapshot(ctx, sess, ""),
	})
}

func (svc *Service) publishDeletion(code string) {
	hub := svc.broadcaster()
	if hub == nil {
		return
	}
	hub.BroadcastToRoom(code, domain.ServerMessage{Type: domain.EventSessionDeleted, Code: code})
}

func (svc *Service) publishTimeout(code string) {
	hub := svc.broadcaster()
	if hub == nil {
		return
	}
	hub.BroadcastToRoom(code, domain.ServerMessage{
		Type:    domain.EventSessionTimeout,
		Code:    code,
		Message: "Session timed out",
	})
}
