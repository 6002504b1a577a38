package database

// CursorPolicy selects how an existing read cursor row is updated when
// a fetch reports a new last-seen message id.
type CursorPolicy string

const (
	// PolicyOverwrite is last-write-wins: a stale advance moves the
	// cursor backwards. This is the default.
	PolicyOverwrite CursorPolicy = "overwrite"
	// PolicyMax keeps the cursor monotonic.
	PolicyMax CursorPolicy = "max"
)

type ChatRepository interface {
	Ping() error

	CreateUser(params CreateUserParams) (User, error)
	GetUserById(id int64) (User, error)
	GetUserByName(name string) (User, error)
	GetUsersByIds(ids []int64) ([]User, error)
	UpdateDisplayName(userId int64, displayName string) error
	UpdateAvatar(userId int64, avatarIcon string) error

	CreateChannel(params CreateChannelParams) (Channel, error)
	ListChannels() ([]Channel, error)

	CreateMessage(channelId, userId int64, content string) (int64, error)
	GetMessagesSince(channelId, afterId int64, limit int) ([]Message, error)
	GetMessagePage(channelId, page, pageSize int64) ([]Message, error)
	CountMessages(channelId int64) (int64, error)
	CountMessagesAfter(channelId, afterId int64) (int64, error)

	GetReadCursor(userId, channelId int64) (int64, bool, error)
	AdvanceReadCursor(userId, channelId, messageId int64, policy CursorPolicy) error
	CountUnreadAll(userId int64) ([]ChannelUnread, error)

	SaveImage(name string, data []byte) error
	GetImage(name string) ([]byte, error)

	Reset() error
}
