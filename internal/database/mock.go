package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateUser(params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetUserById(id int64) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetUserByName(name string) (User, error) {
	args := m.Called(name)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetUsersByIds(ids []int64) ([]User, error) {
	args := m.Called(ids)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockChatRepository) UpdateDisplayName(userId int64, displayName string) error {
	args := m.Called(userId, displayName)
	return args.Error(0)
}
func (m *MockChatRepository) UpdateAvatar(userId int64, avatarIcon string) error {
	args := m.Called(userId, avatarIcon)
	return args.Error(0)
}
func (m *MockChatRepository) CreateChannel(params CreateChannelParams) (Channel, error) {
	args := m.Called(params)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockChatRepository) ListChannels() ([]Channel, error) {
	args := m.Called()
	return args.Get(0).([]Channel), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(channelId, userId int64, content string) (int64, error) {
	args := m.Called(channelId, userId, content)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockChatRepository) GetMessagesSince(channelId, afterId int64, limit int) ([]Message, error) {
	args := m.Called(channelId, afterId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) GetMessagePage(channelId, page, pageSize int64) ([]Message, error) {
	args := m.Called(channelId, page, pageSize)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) CountMessages(channelId int64) (int64, error) {
	args := m.Called(channelId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockChatRepository) CountMessagesAfter(channelId, afterId int64) (int64, error) {
	args := m.Called(channelId, afterId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockChatRepository) GetReadCursor(userId, channelId int64) (int64, bool, error) {
	args := m.Called(userId, channelId)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}
func (m *MockChatRepository) AdvanceReadCursor(userId, channelId, messageId int64, policy CursorPolicy) error {
	args := m.Called(userId, channelId, messageId, policy)
	return args.Error(0)
}
func (m *MockChatRepository) CountUnreadAll(userId int64) ([]ChannelUnread, error) {
	args := m.Called(userId)
	return args.Get(0).([]ChannelUnread), args.Error(1)
}
func (m *MockChatRepository) SaveImage(name string, data []byte) error {
	args := m.Called(name, data)
	return args.Error(0)
}
func (m *MockChatRepository) GetImage(name string) ([]byte, error) {
	args := m.Called(name)
	return args.Get(0).([]byte), args.Error(1)
}
func (m *MockChatRepository) Reset() error {
	args := m.Called()
	return args.Error(0)
}
