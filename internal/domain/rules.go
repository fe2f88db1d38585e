package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	MinCodeLength     = 3
	MaxCodeLength     = 20
	MinQuestionLength = 5
	MaxQuestionLength = 500
	MinAnswerLength   = 1
	MaxAnswerLength   = 200
	MaxGuessLength    = 200
	MinPlayersToStart = 3
)

// NormalizeCode trims and uppercases a session code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks an already normalized code against the A-Z0-9 3..20 rule.
func ValidateCode(code string) error {
	if code == "" {
		return ErrCodeRequired
	}
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return ErrInvalidCode
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return ErrInvalidCode
		}
	}
	return nil
}

// ValidateRound trims question and answer and checks their lengths.
func ValidateRound(question, answer string) (string, string, error) {
	q := strings.TrimSpace(question)
	a := strings.TrimSpace(answer)
	if q == "" || a == "" {
		return "", "", ErrStartFields
	}
	if n := utf8.RuneCountInString(q); n < MinQuestionLength || n > MaxQuestionLength {
		return "", "", ErrQuestionLength
	}
	if n := utf8.RuneCountInString(a); n < MinAnswerLength || n > MaxAnswerLength {
		return "", "", ErrAnswerLength
	}
	return q, a, nil
}

// ValidateGuess trims a guess and checks its length.
func ValidateGuess(guess string) (string, error) {
	g := strings.TrimSpace(guess)
	if g == "" {
		return "", ErrGuessFields
	}
	if utf8.RuneCountInString(g) > MaxGuessLength {
		return "", ErrGuessLength
	}
	return g, nil
}

// AnswerMatches compares a guess with the stored answer, ignoring case and surrounding space.
func AnswerMatches(guess, answer string) bool {
	return strings.EqualFold(strings.TrimSpace(guess), strings.TrimSpace(answer))
}

// NextGameMaster picks who leads the next round.
// A winner who is still playing takes over; a lone player keeps the role;
// otherwise the role moves to the first other player after the current one.
func NextGameMaster(players []PlayerID, current, winner PlayerID) PlayerID {
	if len(players) == 0 {
		return ""
	}
	if !winner.IsZero() && !SameID(winner, current) {
		for _, p := range players {
			if SameID(p, winner) {
				return p
			}
		}
	}
	if len(players) == 1 {
		return players[0]
	}

	start := -1
	for i, p := range players {
		if SameID(p, current) {
			start = i
			break
		}
	}
	for step := 1; step <= len(players); step++ {
		candidate := players[(start+step+len(players))%len(players)]
		if !SameID(candidate, current) {
			return candidate
		}
	}
	return current
}
