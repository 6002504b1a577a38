package database

import "time"

type User struct {
	Id           int64
	Name         string
	PasswordHash string
	DisplayName  string
	AvatarIcon   string
	CreatedAt    time.Time
}

type Channel struct {
	Id          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Message struct {
	Id        int64
	ChannelId int64
	UserId    int64
	Content   string
	CreatedAt time.Time
}

type ChannelUnread struct {
	ChannelId int64
	Unread    int64
}

type CreateUserParams struct {
	Name         string
	PasswordHash string
	DisplayName  string
	AvatarIcon   string
}

type CreateChannelParams struct {
	Name        string
	Description string
}
