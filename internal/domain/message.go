package domain

import "time"

type MessageType string

const (
	MessageChat   MessageType = "chat"
	MessageSystem MessageType = "system"
	MessageGuess  MessageType = "guess"
)

// ParseMessageType maps an optional client value to a MessageType, defaulting to chat.
func ParseMessageType(v string) (MessageType, error) {
	switch MessageType(v) {
	case "":
		return MessageChat, nil
	case MessageChat, MessageSystem, MessageGuess:
		return MessageType(v), nil
	}
	return "", ErrMessageType
}

// Message is one append-only entry in a session's log. A zero UserID marks a system message.
type Message struct {
	ID        string
	SessionID string
	UserID    PlayerID
	Content   string
	Type      MessageType
	CreatedAt time.Time
}

// UserStats summarises a player's activity across live sessions.
type UserStats struct {
	GamesPlayed  int `json:"gamesPlayed"`
	GamesWon     int `json:"gamesWon"`
	TotalGuesses int `json:"totalGuesses"`
}

// ComputeStats folds sessions into stats for id.
func ComputeStats(id PlayerID, sessions []Session) UserStats {
	var st UserStats
	for i := range sessions {
		s := &sessions[i]
		if !s.IsMember(id) {
			continue
		}
		st.GamesPlayed++
		if SameID(s.Winner, id) {
			st.GamesWon++
		}
		if left, ok := s.Attempts[id]; ok {
			st.TotalGuesses += AttemptsPerRound - left
		}
	}
	return st
}
