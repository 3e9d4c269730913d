package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	createdAt := time.Date(2025, 6, 1, 12, 30, 0, 123456000, time.UTC)
	cursor := encodeCursor(createdAt, 42)
	assert.NotEmpty(t, cursor, "expected non-empty cursor")

	decoded, err := decodeCursor(cursor)
	require.NoError(t, err, "expected cursor to decode")
	assert.Equal(t, int64(42), decoded.Id, "expected id to round-trip")
	assert.True(t, decoded.CreatedAt.Equal(createdAt), "expected createdAt to round-trip, got %v", decoded.CreatedAt)
}

func TestDecodeCursorEmpty(t *testing.T) {
	decoded, err := decodeCursor("")
	require.NoError(t, err, "empty cursor means first page")
	assert.Zero(t, decoded.Id, "expected zero cursor for empty input")
}

func TestDecodeCursorMalformed(t *testing.T) {
	tcases := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "!!!not-base64!!!"},
		{name: "missing separator", cursor: "MTIzNDU"},
		{name: "non-numeric timestamp", cursor: "YWJjOjQy"},
		{name: "non-numeric id", cursor: "MTIzOmFiYw"},
		{name: "zero id", cursor: "MTIzOjA"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeCursor(tc.cursor)
			assert.Error(t, err, "expected error for cursor %q", tc.cursor)
			assert.True(t, IsValidationError(err), "expected ValidationError, got %T", err)
		})
	}
}
