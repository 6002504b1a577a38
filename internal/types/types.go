package types

import (
	"time"
)

type User struct {
	Id          int64  `json:"-"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	AvatarIcon  string `json:"avatar_icon"`
}

type Channel struct {
	Id          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Message is the wire form of a channel message. Date is preformatted
// because clients render it verbatim.
type Message struct {
	Id      int64  `json:"id"`
	User    User   `json:"user"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

type ChannelUnread struct {
	ChannelId int64 `json:"channel_id"`
	Unread    int64 `json:"unread"`
}

type HistoryPage struct {
	Messages []Message `json:"messages"`
	Page     int64     `json:"page"`
	MaxPage  int64     `json:"max_page"`
}
