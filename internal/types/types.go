package types

import (
	"time"
)

type User struct {
	Id          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarUrl   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id          int64     `json:"id"`
	SenderId    string    `json:"sender_id"`
	RecipientId string    `json:"recipient_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConversationPage is one page of a conversation's history, newest
// first. NextCursor is only set when HasMore is true.
type ConversationPage struct {
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"has_more"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// ConversationSummary describes the most recent exchange with a single
// peer, used for the conversation list.
type ConversationSummary struct {
	Peer          User      `json:"peer"`
	LastMessage   Message   `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
}
