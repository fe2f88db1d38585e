package domain

import "errors"

// to represent the session status
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"
	StatusInProgress SessionStatus = "in-progress"
	StatusEnded      SessionStatus = "ended"
)

// Kind classifies an Error so transports can pick a response status
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindConflict
	KindNotFound
	KindPermissionDenied
	KindInvalidState
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindInvalidState:
		return "invalid_state"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Error is a business failure with a message safe to show to clients
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

var (
	ErrCodeRequired      = NewError(KindInvalidArgument, "A session code is required to create a game")
	ErrInvalidCode       = NewError(KindInvalidArgument, "Session code must be 3-20 letters or digits")
	ErrSessionCodeTaken  = NewError(KindConflict, "Session code already exists")
	ErrSessionNotFound   = NewError(KindNotFound, "Session not found")
	ErrStaleSession      = NewError(KindInternal, "session was modified concurrently")
	ErrJoinCodeRequired  = NewError(KindInvalidArgument, "Session code is required")
	ErrGameInProgress    = NewError(KindInvalidState, "Game already in progress")
	ErrAlreadyJoined     = NewError(KindConflict, "You have already joined")
	ErrStartFields       = NewError(KindInvalidArgument, "Code, question, and answer are required to start the game")
	ErrQuestionLength    = NewError(KindInvalidArgument, "Question must be between 5 and 500 characters")
	ErrAnswerLength      = NewError(KindInvalidArgument, "Answer must be between 1 and 200 characters")
	ErrNotGameMaster     = NewError(KindPermissionDenied, "Only the game master can start the session")
	ErrNotEnoughPlayers  = NewError(KindInvalidArgument, "At least 3 players are required to start")
	ErrGuessFields       = NewError(KindInvalidArgument, "Session code and guess are required")
	ErrGuessLength       = NewError(KindInvalidArgument, "Guess must be between 1 and 200 characters")
	ErrNotInProgress     = NewError(KindInvalidState, "Game is not in progress")
	ErrRoundAlreadyWon   = NewError(KindConflict, "Game already has a winner")
	ErrGameMasterGuess   = NewError(KindPermissionDenied, "Game masters cannot submit guesses")
	ErrNotRoundPlayer    = NewError(KindInvalidArgument, "You are not part of this game")
	ErrNoAttemptsLeft    = NewError(KindInvalidArgument, "No attempts left")
	ErrLeaveCodeRequired = NewError(KindInvalidArgument, "Session code is required")
	ErrLeaveOthers       = NewError(KindPermissionDenied, "You can only leave for yourself")
	ErrNotMember         = NewError(KindInvalidArgument, "You are not part of this session")
	ErrMessageFields     = NewError(KindInvalidArgument, "Session and content are required")
	ErrMessageType       = NewError(KindInvalidArgument, "Message type must be chat, system, or guess")
	ErrUnauthenticated   = NewError(KindUnauthenticated, "User not authenticated")
	ErrMessageSession    = NewError(KindNotFound, "Game session not found")
	ErrUserNotFound      = NewError(KindNotFound, "User not found")
)

// push event types
const (
	EventSessionUpdated = "sessionUpdated"
	EventSessionDeleted = "sessionDeleted"
	EventSessionTimeout = "sessionTimeout"
	EventNewMessage     = "newMessage"
	EventError          = "error"
	EventSubscribed     = "subscribed"
	EventUnsubscribed   = "unsubscribed"
)

// ClientMessage is a frame received on the websocket
type ClientMessage struct {
	Type string `json:"type"`
	JWT  string `json:"jwt,omitempty"`
	Code string `json:"code,omitempty"`
}

// ServerMessage is a frame pushed to websocket subscribers
type ServerMessage struct {
	Type    string      `json:"type"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
