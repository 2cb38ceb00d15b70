// ABOUTME: Conversation identifier type backed by random UUIDs
// ABOUTME: Parses only the canonical hyphenated text form carried in cookies

package conversation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when a string is not a canonical conversation id.
var ErrInvalidID = errors.New("invalid conversation id")

// canonicalIDLength is the length of xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx.
const canonicalIDLength = 36

// ID identifies a conversation. Its String form is the canonical UUID text.
type ID = uuid.UUID

// NewID returns a random (version 4) conversation id.
func NewID() ID {
	return uuid.New()
}

// ParseID parses the canonical text form of an id. Braced, URN and
// unhyphenated forms accepted by uuid.Parse are rejected.
func ParseID(s string) (ID, error) {
	if len(s) != canonicalIDLength {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q: %v", ErrInvalidID, s, err)
	}
	return id, nil
}
