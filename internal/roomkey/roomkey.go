// Package roomkey derives the canonical key for a 1:1 conversation.
package roomkey

import (
	"errors"
	"strings"
)

// Separator joins the two participant ids inside a key.
const Separator = "-"

// ErrEmptyParticipant is returned when either participant id is blank.
var ErrEmptyParticipant = errors.New("participant id must not be empty")

// Derive maps an unordered pair of participant ids to the canonical room
// key: the pair sorted lexicographically and joined with Separator, so
// Derive(a, b) == Derive(b, a). Identical ids yield a valid self-chat key.
func Derive(a, b string) (string, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return "", ErrEmptyParticipant
	}
	if b < a {
		a, b = b, a
	}
	return a + Separator + b, nil
}
