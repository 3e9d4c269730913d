package database

import (
	"github.com/stretchr/testify/mock"
)

type MockMessagingRepository struct {
	mock.Mock
}

func (m *MockMessagingRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockMessagingRepository) UpsertUser(params UpsertUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMessagingRepository) GetUserById(id string) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMessagingRepository) ListUsers() ([]User, error) {
	args := m.Called()
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockMessagingRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessagingRepository) GetConversation(userA, userB string, before ConversationCursor, limit int) ([]Message, error) {
	args := m.Called(userA, userB, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockMessagingRepository) ListRecentConversations(userId string, limit int) ([]ConversationSummary, error) {
	args := m.Called(userId, limit)
	return args.Get(0).([]ConversationSummary), args.Error(1)
}
