// ABOUTME: Tests for conversation id generation and parsing
// ABOUTME: Verifies only the canonical cookie form is accepted

package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID_RoundTrip(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := NewID()
		parsed, err := ParseID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestParseID_Canonical(t *testing.T) {
	id, err := ParseID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id.String())
}

func TestParseID_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "not-a-conversation"},
		{"braced", "{6ba7b810-9dad-11d1-80b4-00c04fd430c8}"},
		{"urn", "urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"no hyphens", "6ba7b8109dad11d180b400c04fd430c8"},
		{"bad hex", "zba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"misplaced hyphen", "6ba7b8109-dad-11d1-80b4-00c04fd430c8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseID(tt.input)
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}
}

func TestNewID_Version4(t *testing.T) {
	id := NewID()
	assert.Equal(t, byte(4), byte(id.Version()))
	assert.Len(t, id.String(), 36)
	assert.Equal(t, 4, strings.Count(id.String(), "-"))
}
