package store

import (
	"github.com/siphyr/dmserver/internal/types"
)

// ConversationReader is the pull side of the delivery contract. A
// client reconciles the two views like this: on connect, page history
// until caught up, then apply live pushes; a pushed message whose id is
// already present in a pulled page is dropped, since a reconnect race
// can produce both.
type ConversationReader struct {
	store *MessageStore
}

func NewConversationReader(s *MessageStore) *ConversationReader {
	return &ConversationReader{store: s}
}

func (r *ConversationReader) Conversation(userId, peerId, cursor string, limit int) (types.ConversationPage, error) {
	return r.store.ListConversation(userId, peerId, cursor, limit)
}

func (r *ConversationReader) RecentConversations(userId string, limit int) ([]types.ConversationSummary, error) {
	return r.store.ListRecentConversations(userId, limit)
}
