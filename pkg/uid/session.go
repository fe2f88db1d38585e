package uid

import "github.com/google/uuid"

// NewSessionID returns a random id for a game session record
func NewSessionID() string {
	return uuid.NewString()
}

// NewClientID identifies a single websocket connection
func NewClientID() string {
	return uuid.NewString()
}
