package database

type MessagingRepository interface {
	Ping() error
	UpsertUser(params UpsertUserParams) (User, error)
	GetUserById(id string) (User, error)
	ListUsers() ([]User, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetConversation(userA, userB string, before ConversationCursor, limit int) ([]Message, error)
	ListRecentConversations(userId string, limit int) ([]ConversationSummary, error)
}
