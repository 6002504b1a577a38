// Package chat implements the message delivery and read tracking
// engine: the append-only per-channel message log, the per-user
// per-channel read cursor, unread count derivation and reverse
// chronological pagination. All cross-request state lives in the
// repository; the service itself is stateless.
package chat

import (
	"errors"
	"log"

	"github.com/nfukui/chatline/internal/cache"
	"github.com/nfukui/chatline/internal/database"
	"github.com/nfukui/chatline/internal/types"
)

const (
	// FetchLimit bounds a single incremental fetch.
	FetchLimit = 100
	// PageSize is the fixed history page size.
	PageSize = 20

	dateFormat = "2006/01/02 15:04:05"
)

// ErrInvalidPage is returned by History for a page outside [1, maxPage].
var ErrInvalidPage = errors.New("invalid page")

type Service struct {
	log      *log.Logger
	repo     database.ChatRepository
	channels *cache.ChannelCache
	policy   database.CursorPolicy
}

func NewService(logger *log.Logger, repo database.ChatRepository, channels *cache.ChannelCache, policy database.CursorPolicy) *Service {
	if policy == "" {
		policy = database.PolicyOverwrite
	}

	return &Service{
		log:      logger,
		repo:     repo,
		channels: channels,
		policy:   policy,
	}
}

// Append adds a message to a channel's log and returns its id. Ids are
// assigned by the store and strictly increase, so id order is creation
// order within a channel.
func (s *Service) Append(channelId, userId int64, content string) (int64, error) {
	return s.repo.CreateMessage(channelId, userId, content)
}

// FetchSince returns up to FetchLimit messages with id > afterId in
// chronological order and advances the caller's read cursor to the
// highest id returned. A cursor advance failure is logged but does not
// fail the fetch; read availability wins over cursor freshness.
func (s *Service) FetchSince(userId, channelId, afterId int64) ([]types.Message, error) {
	msgs, err := s.repo.GetMessagesSince(channelId, afterId, FetchLimit)
	if err != nil {
		return nil, err
	}

	out, err := s.resolveMessages(msgs)
	if err != nil {
		return nil, err
	}

	if len(msgs) > 0 {
		// msgs is newest first, so msgs[0] carries the max id.
		if err := s.repo.AdvanceReadCursor(userId, channelId, msgs[0].Id, s.policy); err != nil {
			s.log.Printf("advance read cursor user=%d channel=%d: %v", userId, channelId, err)
		}
	}

	return out, nil
}

// Unread returns the number of messages in a channel newer than the
// user's cursor. A user who never fetched the channel has everything
// unread.
func (s *Service) Unread(userId, channelId int64) (int64, error) {
	cursor, ok, err := s.repo.GetReadCursor(userId, channelId)
	if err != nil {
		return 0, err
	}

	if !ok {
		return s.repo.CountMessages(channelId)
	}
	return s.repo.CountMessagesAfter(channelId, cursor)
}

// UnreadAll returns an unread count for every known channel, ordered
// by channel id. The counts are derived in one set-oriented query
// rather than a round trip per channel.
func (s *Service) UnreadAll(userId int64) ([]types.ChannelUnread, error) {
	counts, err := s.repo.CountUnreadAll(userId)
	if err != nil {
		return nil, err
	}

	out := make([]types.ChannelUnread, 0, len(counts))
	for _, c := range counts {
		out = append(out, types.ChannelUnread{
			ChannelId: c.ChannelId,
			Unread:    c.Unread,
		})
	}
	return out, nil
}

// History returns the page-th page (1-indexed) of a channel's log in
// chronological order. It never touches read cursors. An empty channel
// still has one valid, empty page.
func (s *Service) History(channelId, page int64) (types.HistoryPage, error) {
	cnt, err := s.repo.CountMessages(channelId)
	if err != nil {
		return types.HistoryPage{}, err
	}

	maxPage := (cnt + PageSize - 1) / PageSize
	if maxPage == 0 {
		maxPage = 1
	}
	if page < 1 || page > maxPage {
		return types.HistoryPage{}, ErrInvalidPage
	}

	msgs, err := s.repo.GetMessagePage(channelId, page, PageSize)
	if err != nil {
		return types.HistoryPage{}, err
	}

	out, err := s.resolveMessages(msgs)
	if err != nil {
		return types.HistoryPage{}, err
	}

	return types.HistoryPage{
		Messages: out,
		Page:     page,
		MaxPage:  maxPage,
	}, nil
}

// Channels returns the channel list, served from the cache when warm.
func (s *Service) Channels() ([]types.Channel, error) {
	if channels, ok := s.channels.GetChannels(); ok {
		return channels, nil
	}

	dbChannels, err := s.repo.ListChannels()
	if err != nil {
		return nil, err
	}

	channels := make([]types.Channel, 0, len(dbChannels))
	for _, ch := range dbChannels {
		channels = append(channels, types.Channel{
			Id:          ch.Id,
			Name:        ch.Name,
			Description: ch.Description,
			CreatedAt:   ch.CreatedAt,
			UpdatedAt:   ch.UpdatedAt,
		})
	}

	if err := s.channels.SetChannels(channels); err != nil {
		s.log.Printf("cache channel list: %v", err)
	}

	return channels, nil
}

func (s *Service) CreateChannel(name, description string) (types.Channel, error) {
	ch, err := s.repo.CreateChannel(database.CreateChannelParams{
		Name:        name,
		Description: description,
	})
	if err != nil {
		return types.Channel{}, err
	}

	if err := s.channels.Invalidate(); err != nil {
		s.log.Printf("invalidate channel list: %v", err)
	}

	return types.Channel{
		Id:          ch.Id,
		Name:        ch.Name,
		Description: ch.Description,
		CreatedAt:   ch.CreatedAt,
		UpdatedAt:   ch.UpdatedAt,
	}, nil
}

// Reset truncates state above the reserved seed thresholds and drops
// the cache. Test harness only.
func (s *Service) Reset() error {
	if err := s.repo.Reset(); err != nil {
		return err
	}
	return s.channels.Flush()
}

// resolveMessages reverses a newest-first message slice to
// chronological order and resolves authors with a single batched
// lookup over the distinct author-id set.
func (s *Service) resolveMessages(msgs []database.Message) ([]types.Message, error) {
	out := make([]types.Message, 0, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}

	seen := make(map[int64]struct{}, len(msgs))
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.UserId]; ok {
			continue
		}
		seen[m.UserId] = struct{}{}
		ids = append(ids, m.UserId)
	}

	users, err := s.repo.GetUsersByIds(ids)
	if err != nil {
		return nil, err
	}

	byId := make(map[int64]database.User, len(users))
	for _, u := range users {
		byId[u.Id] = u
	}

	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		u := byId[m.UserId]
		out = append(out, types.Message{
			Id: m.Id,
			User: types.User{
				Id:          u.Id,
				Name:        u.Name,
				DisplayName: u.DisplayName,
				AvatarIcon:  u.AvatarIcon,
			},
			Date:    m.CreatedAt.Format(dateFormat),
			Content: m.Content,
		})
	}

	return out, nil
}
