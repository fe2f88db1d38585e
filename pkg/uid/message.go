package uid

import "github.com/google/uuid"

// NewMessageID returns a time-ordered id so message ids sort by creation
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
