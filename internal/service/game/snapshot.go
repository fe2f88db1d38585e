package game

import (
	"context"
	"sort"
	"time"

	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// Snapshot is the viewer-scoped, display-ready form of a session.
type Snapshot struct {
	ID         string               `json:"_id"`
	Code       string               `json:"code"`
	GameMaster *domain.Profile      `json:"gameMaster"`
	Players    []domain.Profile     `json:"players"`
	Status     domain.SessionStatus `json:"status"`
	Question   string               `json:"question,omitempty"`
	Answer     string               `json:"answer,omitempty"`
	Attempts   []AttemptView        `json:"attempts"`
	Scores     []ScoreView          `json:"scores"`
	Winner     *domain.Profile      `json:"winner"`
	StartTime  *time.Time           `json:"startTime"`
	EndTime    *time.Time           `json:"endTime"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

type AttemptView struct {
	UserID       domain.PlayerID `json:"userId"`
	AttemptsLeft int             `json:"attemptsLeft"`
}

type ScoreView struct {
	User  domain.Profile `json:"userId"`
	Score int            `json:"score"`
}

// SessionDetail is returned by Get.
type SessionDetail struct {
	Session     *Snapshot   `json:"session"`
	PlayerCount int         `json:"playerCount"`
	Scores      []ScoreView `json:"scores"`
}

// SessionSummary is the public listing entry; it never carries round secrets.
type SessionSummary struct {
	Code        string               `json:"code"`
	Status      domain.SessionStatus `json:"status"`
	PlayerCount int                  `json:"playerCount"`
	GameMaster  *domain.Profile      `json:"gameMaster"`
	Players     []domain.Profile     `json:"players"`
}

// referencedIDs lists every player id a projection of s needs to expand.
func referencedIDs(s *domain.Session) []domain.PlayerID {
	seen := make(map[domain.PlayerID]struct{}, len(s.Players)+2)
	ids := make([]domain.PlayerID, 0, len(s.Players)+2)
	add := func(id domain.PlayerID) {
		if id.IsZero() {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	add(s.GameMaster)
	for _, p := range s.Players {
		add(p)
	}
	for id := range s.Scores {
		add(id)
	}
	add(s.Winner)
	return ids
}

// resolveProfiles expands ids for display. Lookup failures degrade to bare ids.
func (svc *Service) resolveProfiles(ctx context.Context, ids []domain.PlayerID) map[domain.PlayerID]domain.Profile {
	out := make(map[domain.PlayerID]domain.Profile, len(ids))
	if svc.profiles != nil && len(ids) > 0 {
		found, err := svc.profiles.Profiles(ctx, ids)
		if err != nil {
			log.Warn().Err(err).Str("component", "session").Msg("profile lookup failed, falling back to ids")
		}
		for id, p := range found {
			out[id] = p
		}
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			out[id] = domain.Profile{ID: id}
		}
	}
	return out
}

func profileRef(profiles map[domain.PlayerID]domain.Profile, id domain.PlayerID) *domain.Profile {
	if id.IsZero() {
		return nil
	}
	p, ok := profiles[id]
	if !ok {
		p = domain.Profile{ID: id}
	}
	return &p
}

// orderedKeys returns the keys of m following the roster order, then any strays sorted.
func orderedKeys(players []domain.PlayerID, m map[domain.PlayerID]int) []domain.PlayerID {
	keys := make([]domain.PlayerID, 0, len(m))
	seen := make(map[domain.PlayerID]struct{}, len(m))
	for _, p := range players {
		if _, ok := m[p]; ok {
			keys = append(keys, p)
			seen[p] = struct{}{}
		}
	}
	var rest []domain.PlayerID
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(keys, rest...)
}

// project builds a snapshot of s for viewer. The empty viewer is used for broadcasts.
func project(s *domain.Session, viewer domain.PlayerID, profiles map[domain.PlayerID]domain.Profile) *Snapshot {
	snap := &Snapshot{
		ID:         s.ID,
		Code:       s.Code,
		GameMaster: profileRef(profiles, s.GameMaster),
		Players:    make([]domain.Profile, 0, len(s.Players)),
		Status:     s.Status,
		Question:   s.Question,
		Attempts:   make([]AttemptView, 0, len(s.Attempts)),
		Scores:     make([]ScoreView, 0, len(s.Scores)),
		Winner:     profileRef(profiles, s.Winner),
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.AnswerVisibleTo(viewer) {
		snap.Answer = s.Answer
	}
	for _, p := range s.Players {
		snap.Players = append(snap.Players, *profileRef(profiles, p))
	}
	for _, id := range orderedKeys(s.Players, s.Attempts) {
		snap.Attempts = append(snap.Attempts, AttemptView{UserID: id, AttemptsLeft: s.Attempts[id]})
	}
	for _, id := range orderedKeys(s.Players, s.Scores) {
		snap.Scores = append(snap.Scores, ScoreView{User: *profileRef(profiles, id), Score: s.Scores[id]})
	}
	return snap
}

func (svc *Service) snapshot(ctx context.Context, s *domain.Session, viewer domain.PlayerID) *Snapshot {
	return project(s, viewer, svc.resolveProfiles(ctx, referencedIDs(s)))
}
