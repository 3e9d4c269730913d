package store

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/siphyr/dmserver/internal/database"
	"github.com/siphyr/dmserver/internal/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MessageStore is the durable, append-only record of direct messages
// and the single source of truth for their ordering. Appends are
// serialized so ids and timestamps are assigned monotonically; reads
// never take the append lock.
type MessageStore struct {
	log *log.Logger
	db  database.MessagingRepository

	// appendLock linearizes timestamp assignment and the insert that
	// follows it. Ids come from the database sequence, so insert order
	// is id order.
	appendLock sync.Mutex
	// lastCreatedAt is the logical clock: assigned timestamps never go
	// backwards even if the wall clock does.
	lastCreatedAt time.Time
}

func NewMessageStore(logger *log.Logger, db database.MessagingRepository) *MessageStore {
	return &MessageStore{
		log: logger,
		db:  db,
	}
}

// Append validates, timestamps and durably commits one message. The
// returned Message carries the server-assigned id and createdAt; it is
// visible to ListConversation before Append returns.
func (s *MessageStore) Append(senderId, recipientId, content string) (types.Message, error) {
	if senderId == "" {
		return types.Message{}, &ValidationError{Field: "sender_id", Reason: "must not be empty"}
	}
	if recipientId == "" {
		return types.Message{}, &ValidationError{Field: "recipient_id", Reason: "must not be empty"}
	}
	if senderId == recipientId {
		return types.Message{}, &ValidationError{Field: "recipient_id", Reason: "cannot message yourself"}
	}
	if strings.TrimSpace(content) == "" {
		return types.Message{}, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	s.appendLock.Lock()
	defer s.appendLock.Unlock()

	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	if createdAt.Before(s.lastCreatedAt) {
		createdAt = s.lastCreatedAt
	}

	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		SenderId:    senderId,
		RecipientId: recipientId,
		Content:     content,
		CreatedAt:   createdAt,
	})
	if err != nil {
		s.log.Println("create message:", err)
		return types.Message{}, &StorageError{Op: "append", Err: err}
	}

	s.lastCreatedAt = createdAt

	return messageFromRecord(msg), nil
}

// ListConversation returns one page of the conversation between the
// unordered pair {userA, userB}, newest first. The returned cursor
// resumes strictly after the last row of this page; calling again with
// the same cursor yields the same rows unless new messages arrived.
func (s *MessageStore) ListConversation(userA, userB, cursor string, limit int) (types.ConversationPage, error) {
	if userA == "" || userB == "" {
		return types.ConversationPage{}, &ValidationError{Field: "peer_id", Reason: "must not be empty"}
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	before, err := decodeCursor(cursor)
	if err != nil {
		return types.ConversationPage{}, err
	}

	// Fetch one past the page to learn whether older rows remain.
	records, err := s.db.GetConversation(userA, userB, before, limit+1)
	if err != nil {
		s.log.Println("get conversation:", err)
		return types.ConversationPage{}, &StorageError{Op: "list conversation", Err: err}
	}

	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}

	page := types.ConversationPage{
		Messages: make([]types.Message, 0, len(records)),
		HasMore:  hasMore,
	}
	for _, rec := range records {
		page.Messages = append(page.Messages, messageFromRecord(rec))
	}

	if hasMore {
		last := records[len(records)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.Id)
	}

	return page, nil
}

// ListRecentConversations returns the caller's conversations ordered
// by most recent activity, one entry per peer.
func (s *MessageStore) ListRecentConversations(userId string, limit int) ([]types.ConversationSummary, error) {
	if userId == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}

	if limit <= 0 {
		limit = defaultPageSize
	}

	records, err := s.db.ListRecentConversations(userId, limit)
	if err != nil {
		return nil, &StorageError{Op: "list conversations", Err: err}
	}

	summaries := make([]types.ConversationSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, types.ConversationSummary{
			Peer: types.User{
				Id:          rec.PeerId,
				DisplayName: rec.PeerDisplayName,
				AvatarUrl:   rec.PeerAvatarUrl,
			},
			LastMessage:   messageFromRecord(rec.LastMessage),
			LastMessageAt: rec.LastMessage.CreatedAt,
		})
	}

	return summaries, nil
}

func messageFromRecord(rec database.Message) types.Message {
	return types.Message{
		Id:          rec.Id,
		SenderId:    rec.SenderId,
		RecipientId: rec.RecipientId,
		Content:     rec.Content,
		CreatedAt:   rec.CreatedAt,
	}
}
