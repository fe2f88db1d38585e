package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PlayerID is the canonical identifier of a user inside a session.
type PlayerID string

func (id PlayerID) String() string {
	return string(id)
}

func (id PlayerID) IsZero() bool {
	return id == ""
}

// Profile is the display form of a player.
type Profile struct {
	ID       PlayerID `json:"_id"`
	Username string   `json:"username,omitempty"`
	FullName string   `json:"fullName,omitempty"`
}

// ToPlayerID normalizes any player reference to a PlayerID.
// Unsupported values yield the zero id.
func ToPlayerID(v any) PlayerID {
	switch ref := v.(type) {
	case nil:
		return ""
	case PlayerID:
		return PlayerID(strings.TrimSpace(string(ref)))
	case *PlayerID:
		if ref == nil {
			return ""
		}
		return ToPlayerID(*ref)
	case string:
		return PlayerID(strings.TrimSpace(ref))
	case int64:
		return PlayerID(strconv.FormatInt(ref, 10))
	case int:
		return PlayerID(strconv.Itoa(ref))
	case Profile:
		return ToPlayerID(ref.ID)
	case *Profile:
		if ref == nil {
			return ""
		}
		return ToPlayerID(ref.ID)
	case fmt.Stringer:
		return PlayerID(strings.TrimSpace(ref.String()))
	}
	return ""
}

// SameID reports whether a and b refer to the same non-empty player.
func SameID(a, b any) bool {
	ida := ToPlayerID(a)
	return !ida.IsZero() && ida == ToPlayerID(b)
}
