package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

func (db *PgChatRepository) CreateUser(params CreateUserParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (name, password_hash, display_name, avatar_icon, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, name, display_name, avatar_icon, created_at",
		params.Name,
		params.PasswordHash,
		params.DisplayName,
		params.AvatarIcon,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Name,
		&u.DisplayName,
		&u.AvatarIcon,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgChatRepository) GetUserById(id int64) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, password_hash, display_name, avatar_icon, created_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Name,
		&user.PasswordHash,
		&user.DisplayName,
		&user.AvatarIcon,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgChatRepository) GetUserByName(name string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, password_hash, display_name, avatar_icon, created_at FROM users "+
			"WHERE name = $1 LIMIT 1",
		name,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Name,
		&user.PasswordHash,
		&user.DisplayName,
		&user.AvatarIcon,
		&user.CreatedAt,
	)

	return user, err
}

// GetUsersByIds resolves a set of author ids in one round trip. Callers
// pass the distinct id set of a message page to avoid a query per row.
func (db *PgChatRepository) GetUsersByIds(ids []int64) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}

	rows, err := db.conn.Query(
		"SELECT id, name, display_name, avatar_icon FROM users WHERE id = ANY($1)",
		pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0, len(ids))
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Name, &u.DisplayName, &u.AvatarIcon); err != nil {
			break
		}

		users = append(users, u)
	}
	return users, err
}

func (db *PgChatRepository) UpdateDisplayName(userId int64, displayName string) error {
	_, err := db.conn.Exec(
		"UPDATE users SET display_name = $2 WHERE id = $1",
		userId,
		displayName,
	)

	return err
}

func (db *PgChatRepository) UpdateAvatar(userId int64, avatarIcon string) error {
	_, err := db.conn.Exec(
		"UPDATE users SET avatar_icon = $2 WHERE id = $1",
		userId,
		avatarIcon,
	)

	return err
}

func (db *PgChatRepository) CreateChannel(params CreateChannelParams) (Channel, error) {
	res := db.conn.QueryRow(
		"INSERT INTO channels (name, description, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $3) RETURNING id, name, description, created_at, updated_at",
		params.Name,
		params.Description,
		time.Now().UTC(),
	)

	var ch Channel
	err := res.Scan(
		&ch.Id,
		&ch.Name,
		&ch.Description,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)

	return ch, err
}

func (db *PgChatRepository) ListChannels() ([]Channel, error) {
	rows, err := db.conn.Query(
		"SELECT id, name, description, created_at, updated_at FROM channels ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels = make([]Channel, 0)
	for rows.Next() {
		var ch Channel
		if err = rows.Scan(&ch.Id, &ch.Name, &ch.Description, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			break
		}

		channels = append(channels, ch)
	}
	return channels, err
}

func (db *PgChatRepository) CreateMessage(channelId, userId int64, content string) (int64, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (channel_id, user_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id",
		channelId,
		userId,
		content,
		time.Now().UTC(),
	)

	var id int64
	err := res.Scan(&id)

	return id, err
}

// GetMessagesSince returns messages with id > afterId, newest first.
// Descending order lets the index serve the LIMIT directly; callers
// reverse before presenting.
func (db *PgChatRepository) GetMessagesSince(channelId, afterId int64, limit int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, channel_id, user_id, content, created_at FROM messages "+
			"WHERE channel_id = $1 AND id > $2 ORDER BY id DESC LIMIT $3",
		channelId,
		afterId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.ChannelId, &msg.UserId, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}
	return messages, err
}

// GetMessagePage returns the page-th page (1-indexed) of a channel,
// newest first. Same reversal contract as GetMessagesSince.
func (db *PgChatRepository) GetMessagePage(channelId, page, pageSize int64) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, channel_id, user_id, content, created_at FROM messages "+
			"WHERE channel_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3",
		channelId,
		pageSize,
		(page-1)*pageSize,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, pageSize)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.ChannelId, &msg.UserId, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}
	return messages, err
}

func (db *PgChatRepository) CountMessages(channelId int64) (int64, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE channel_id = $1",
		channelId,
	)

	var cnt int64
	err := row.Scan(&cnt)

	return cnt, err
}

func (db *PgChatRepository) CountMessagesAfter(channelId, afterId int64) (int64, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE channel_id = $1 AND id > $2",
		channelId,
		afterId,
	)

	var cnt int64
	err := row.Scan(&cnt)

	return cnt, err
}

func (db *PgChatRepository) GetReadCursor(userId, channelId int64) (int64, bool, error) {
	row := db.conn.QueryRow(
		"SELECT message_id FROM haveread WHERE user_id = $1 AND channel_id = $2 LIMIT 1",
		userId,
		channelId,
	)

	var messageId int64
	err := row.Scan(&messageId)
	if err == sql.ErrNoRows {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}

	return messageId, true, nil
}

// AdvanceReadCursor upserts the (user, channel) cursor in a single
// statement; atomicity comes from the store, not the service layer.
func (db *PgChatRepository) AdvanceReadCursor(userId, channelId, messageId int64, policy CursorPolicy) error {
	var update string
	switch policy {
	case PolicyMax:
		update = "GREATEST(haveread.message_id, EXCLUDED.message_id)"
	case PolicyOverwrite:
		update = "EXCLUDED.message_id"
	default:
		return fmt.Errorf("unknown cursor policy %q", policy)
	}

	_, err := db.conn.Exec(
		"INSERT INTO haveread (user_id, channel_id, message_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) "+
			"ON CONFLICT (user_id, channel_id) DO UPDATE SET message_id = "+update+", updated_at = $4",
		userId,
		channelId,
		messageId,
		time.Now().UTC(),
	)

	return err
}

// CountUnreadAll derives the unread count for every known channel in
// one set-oriented query. A missing cursor row counts the whole
// channel, same as a per-channel lookup falling back to COUNT(*).
func (db *PgChatRepository) CountUnreadAll(userId int64) ([]ChannelUnread, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, COUNT(m.id) FROM channels c "+
			"LEFT JOIN haveread h ON h.channel_id = c.id AND h.user_id = $1 "+
			"LEFT JOIN messages m ON m.channel_id = c.id AND m.id > COALESCE(h.message_id, 0) "+
			"GROUP BY c.id ORDER BY c.id",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts = make([]ChannelUnread, 0)
	for rows.Next() {
		var cu ChannelUnread
		if err = rows.Scan(&cu.ChannelId, &cu.Unread); err != nil {
			break
		}

		counts = append(counts, cu)
	}
	return counts, err
}

func (db *PgChatRepository) SaveImage(name string, data []byte) error {
	_, err := db.conn.Exec(
		"INSERT INTO images (name, data) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
		name,
		data,
	)

	return err
}

func (db *PgChatRepository) GetImage(name string) ([]byte, error) {
	row := db.conn.QueryRow(
		"SELECT data FROM images WHERE name = $1 LIMIT 1",
		name,
	)

	var data []byte
	err := row.Scan(&data)

	return data, err
}

// Reset truncates state above the reserved seed thresholds. Used by the
// test harness only, never in steady-state operation.
func (db *PgChatRepository) Reset() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// children before parents, or the FK constraints reject the sweep
	stmts := []string{
		"DELETE FROM haveread",
		"DELETE FROM messages WHERE id > 10000",
		"DELETE FROM channels WHERE id > 10",
		"DELETE FROM users WHERE id > 1000",
		"DELETE FROM images WHERE id > 1001",
	}
	for _, stmt := range stmts {
		if _, err = tx.Exec(stmt); err != nil {
			return err
		}
	}

	return tx.Commit()
}
