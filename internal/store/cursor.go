package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/siphyr/dmserver/internal/database"
)

// A cursor is the (createdAt, id) key of the oldest message the caller
// has already seen, base64 encoded so clients treat it as opaque.

func encodeCursor(createdAt time.Time, id int64) string {
	raw := fmt.Sprintf("%d:%d", createdAt.UnixMicro(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (database.ConversationCursor, error) {
	if cursor == "" {
		return database.ConversationCursor{}, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return database.ConversationCursor{}, &ValidationError{Field: "cursor", Reason: "malformed"}
	}

	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return database.ConversationCursor{}, &ValidationError{Field: "cursor", Reason: "malformed"}
	}

	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return database.ConversationCursor{}, &ValidationError{Field: "cursor", Reason: "malformed"}
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return database.ConversationCursor{}, &ValidationError{Field: "cursor", Reason: "malformed"}
	}

	return database.ConversationCursor{
		CreatedAt: time.UnixMicro(micros).UTC(),
		Id:        id,
	}, nil
}
