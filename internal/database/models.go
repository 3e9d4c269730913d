package database

import "time"

type User struct {
	Id          string
	DisplayName string
	AvatarUrl   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Message struct {
	Id          int64
	SenderId    string
	RecipientId string
	Content     string
	CreatedAt   time.Time
}

// ConversationSummary is the newest message exchanged with one peer.
type ConversationSummary struct {
	PeerId          string
	PeerDisplayName string
	PeerAvatarUrl   string
	LastMessage     Message
}

type UpsertUserParams struct {
	Id          string
	DisplayName string
	AvatarUrl   string
}

type CreateMessageParams struct {
	SenderId    string
	RecipientId string
	Content     string
	CreatedAt   time.Time
}

// ConversationCursor is the keyset position of the oldest row already
// returned. A zero Id means "from the newest message".
type ConversationCursor struct {
	CreatedAt time.Time
	Id        int64
}
