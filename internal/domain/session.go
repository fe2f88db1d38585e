package domain

import "time"

const (
	AttemptsPerRound = 3
	WinningPoints    = 10
)

// Session is the stored record of one guessing game.
type Session struct {
	ID         string
	Code       string
	GameMaster PlayerID
	Players    []PlayerID
	Status     SessionStatus
	Question   string
	Answer     string
	Attempts   map[PlayerID]int
	Scores     map[PlayerID]int
	Winner     PlayerID
	StartTime  *time.Time
	EndTime    *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int64
}

// NewSession returns a waiting session owned by creator.
func NewSession(id, code string, creator PlayerID, now time.Time) *Session {
	return &Session{
		ID:         id,
		Code:       code,
		GameMaster: creator,
		Players:    []PlayerID{creator},
		Status:     StatusWaiting,
		Attempts:   map[PlayerID]int{},
		Scores:     map[PlayerID]int{creator: 0},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *Session) IsMember(id PlayerID) bool {
	return s.indexOf(id) >= 0
}

func (s *Session) indexOf(id PlayerID) int {
	for i, p := range s.Players {
		if SameID(p, id) {
			return i
		}
	}
	return -1
}

func (s *Session) IsGameMaster(id PlayerID) bool {
	return SameID(s.GameMaster, id)
}

// AnswerVisibleTo reports whether viewer may see the answer.
// The empty viewer is anonymous and only sees it outside a live round.
func (s *Session) AnswerVisibleTo(viewer PlayerID) bool {
	if s.Status != StatusInProgress {
		return true
	}
	return s.IsGameMaster(viewer)
}

func (s *Session) ensureMaps() {
	if s.Attempts == nil {
		s.Attempts = map[PlayerID]int{}
	}
	if s.Scores == nil {
		s.Scores = map[PlayerID]int{}
	}
}

// AddPlayer appends id and gives it a score entry if it has none.
func (s *Session) AddPlayer(id PlayerID) {
	s.ensureMaps()
	s.Players = append(s.Players, id)
	if _, ok := s.Scores[id]; !ok {
		s.Scores[id] = 0
	}
}

// RemovePlayer drops id from the roster, scores and attempts.
// A departing game master is replaced by the first remaining player.
func (s *Session) RemovePlayer(id PlayerID) {
	idx := s.indexOf(id)
	if idx < 0 {
		return
	}
	s.Players = append(s.Players[:idx:idx], s.Players[idx+1:]...)
	delete(s.Scores, id)
	delete(s.Attempts, id)

	if s.IsGameMaster(id) {
		s.GameMaster = ""
		if len(s.Players) > 0 {
			s.GameMaster = s.Players[0]
		}
	}
}

// BeginRound resets round data and hands every player a fresh set of attempts.
func (s *Session) BeginRound(question, answer string, now time.Time) {
	s.ensureMaps()
	started := now
	s.Status = StatusInProgress
	s.Question = question
	s.Answer = answer
	s.Winner = ""
	s.StartTime = &started
	s.EndTime = nil
	s.Attempts = make(map[PlayerID]int, len(s.Players))
	for _, p := range s.Players {
		s.Attempts[p] = AttemptsPerRound
		if _, ok := s.Scores[p]; !ok {
			s.Scores[p] = 0
		}
	}
}

// Finalize ends the round with winner (zero for a timeout) and rotates the game master.
func (s *Session) Finalize(winner PlayerID, now time.Time) {
	ended := now
	s.Status = StatusEnded
	s.Winner = winner
	s.EndTime = &ended
	s.Attempts = map[PlayerID]int{}
	s.GameMaster = NextGameMaster(s.Players, s.GameMaster, winner)
}

// AwardWin credits the winning points to id.
func (s *Session) AwardWin(id PlayerID) {
	s.ensureMaps()
	s.Scores[id] += WinningPoints
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Players = append([]PlayerID(nil), s.Players...)
	c.Attempts = make(map[PlayerID]int, len(s.Attempts))
	for k, v := range s.Attempts {
		c.Attempts[k] = v
	}
	c.Scores = make(map[PlayerID]int, len(s.Scores))
	for k, v := range s.Scores {
		c.Scores[k] = v
	}
	if s.StartTime != nil {
		t := *s.StartTime
		c.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	return &c
}
