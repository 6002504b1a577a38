package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/nfukui/chatline/internal/database"
	"github.com/nfukui/chatline/internal/testutil"
	"github.com/nfukui/chatline/internal/types"
	"github.com/stretchr/testify/assert"
)

var testTime = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, repo database.ChatRepository) *Service {
	return NewService(testutil.TestLogger(t), repo, nil, database.PolicyOverwrite)
}

func TestFetchSince(t *testing.T) {
	users := []database.User{
		{Id: 1, Name: "alice", DisplayName: "Alice", AvatarIcon: "a.png"},
		{Id: 2, Name: "bob", DisplayName: "Bob", AvatarIcon: "b.png"},
	}
	// newest first, as the store returns them
	msgs := []database.Message{
		{Id: 5, ChannelId: 7, UserId: 2, Content: "third", CreatedAt: testTime},
		{Id: 4, ChannelId: 7, UserId: 1, Content: "second", CreatedAt: testTime},
		{Id: 3, ChannelId: 7, UserId: 2, Content: "first", CreatedAt: testTime},
	}

	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetMessagesSince", int64(7), int64(2), FetchLimit).Return(msgs, nil).Once()
	mockRepo.On("GetUsersByIds", []int64{2, 1}).Return(users, nil).Once()
	mockRepo.On("AdvanceReadCursor", int64(9), int64(7), int64(5), database.PolicyOverwrite).Return(nil).Once()

	svc := newTestService(t, mockRepo)
	out, err := svc.FetchSince(9, 7, 2)
	assert.NoError(t, err)

	assert.Len(t, out, 3, "expected all fetched messages")
	for i := 1; i < len(out); i++ {
		assert.Greater(t, out[i].Id, out[i-1].Id, "expected strictly increasing ids after reversal")
	}
	assert.Equal(t, "first", out[0].Content)
	assert.Equal(t, "bob", out[0].User.Name)
	assert.Equal(t, "Alice", out[1].User.DisplayName)
	assert.Equal(t, "2025/06/01 12:30:00", out[0].Date, "expected preformatted date")
}

func TestFetchSince_Empty(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	// no AdvanceReadCursor expectation: an empty fetch must not touch
	// the cursor
	mockRepo.On("GetMessagesSince", int64(7), int64(10), FetchLimit).Return([]database.Message{}, nil).Once()

	svc := newTestService(t, mockRepo)
	out, err := svc.FetchSince(9, 7, 10)
	assert.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out, "expected empty slice, not nil, for JSON encoding")
}

func TestFetchSince_AdvanceFailureDoesNotFailFetch(t *testing.T) {
	msgs := []database.Message{
		{Id: 1, ChannelId: 7, UserId: 1, Content: "hi", CreatedAt: testTime},
	}
	users := []database.User{{Id: 1, Name: "alice"}}

	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetMessagesSince", int64(7), int64(0), FetchLimit).Return(msgs, nil).Once()
	mockRepo.On("GetUsersByIds", []int64{1}).Return(users, nil).Once()
	mockRepo.On("AdvanceReadCursor", int64(9), int64(7), int64(1), database.PolicyOverwrite).
		Return(errors.New("db error")).Once()

	svc := newTestService(t, mockRepo)
	out, err := svc.FetchSince(9, 7, 0)
	assert.NoError(t, err, "expected fetch to succeed despite cursor failure")
	assert.Len(t, out, 1)
}

func TestFetchSince_StoreError(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetMessagesSince", int64(7), int64(0), FetchLimit).
		Return([]database.Message{}, errors.New("db error")).Once()

	svc := newTestService(t, mockRepo)
	_, err := svc.FetchSince(9, 7, 0)
	assert.Error(t, err)
}

func TestAppendThenFetchSince(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("CreateMessage", int64(7), int64(9), "hi").Return(int64(42), nil).Once()
	mockRepo.On("GetMessagesSince", int64(7), int64(41), FetchLimit).Return([]database.Message{
		{Id: 42, ChannelId: 7, UserId: 9, Content: "hi", CreatedAt: testTime},
	}, nil).Once()
	mockRepo.On("GetUsersByIds", []int64{9}).Return([]database.User{{Id: 9, Name: "carol"}}, nil).Once()
	mockRepo.On("AdvanceReadCursor", int64(9), int64(7), int64(42), database.PolicyOverwrite).Return(nil).Once()

	svc := newTestService(t, mockRepo)

	id, err := svc.Append(7, 9, "hi")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)

	out, err := svc.FetchSince(9, 7, id-1)
	assert.NoError(t, err)
	assert.Len(t, out, 1, "expected exactly the appended message")
	assert.Equal(t, id, out[0].Id)
	assert.Equal(t, "hi", out[0].Content)
	assert.Equal(t, "carol", out[0].User.Name)
}

func TestUnread(t *testing.T) {
	tcases := []struct {
		name      string
		cursor    int64
		cursorSet bool
		count     int64
		expected  int64
	}{
		{
			name:      "no cursor counts everything",
			cursorSet: false,
			count:     5,
			expected:  5,
		},
		{
			name:      "cursor counts messages after",
			cursor:    3,
			cursorSet: true,
			count:     2,
			expected:  2,
		},
		{
			name:      "stale cursor inflates the count",
			cursor:    1,
			cursorSet: true,
			count:     4,
			expected:  4,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			mockRepo.On("GetReadCursor", int64(9), int64(7)).Return(tc.cursor, tc.cursorSet, nil).Once()
			if tc.cursorSet {
				mockRepo.On("CountMessagesAfter", int64(7), tc.cursor).Return(tc.count, nil).Once()
			} else {
				mockRepo.On("CountMessages", int64(7)).Return(tc.count, nil).Once()
			}

			svc := newTestService(t, mockRepo)
			n, err := svc.Unread(9, 7)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, n)
		})
	}
}

func TestUnreadAll(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("CountUnreadAll", int64(9)).Return([]database.ChannelUnread{
		{ChannelId: 1, Unread: 3},
		{ChannelId: 2, Unread: 0},
		{ChannelId: 3, Unread: 12},
	}, nil).Once()

	svc := newTestService(t, mockRepo)
	counts, err := svc.UnreadAll(9)
	assert.NoError(t, err)

	assert.Equal(t, []types.ChannelUnread{
		{ChannelId: 1, Unread: 3},
		{ChannelId: 2, Unread: 0},
		{ChannelId: 3, Unread: 12},
	}, counts, "expected one count per channel in channel id order")
}

func TestHistory(t *testing.T) {
	tcases := []struct {
		name        string
		count       int64
		page        int64
		wantMaxPage int64
		wantErr     error
	}{
		{
			name:        "first page",
			count:       45,
			page:        1,
			wantMaxPage: 3,
		},
		{
			name:        "last page",
			count:       45,
			page:        3,
			wantMaxPage: 3,
		},
		{
			name:        "empty channel still has one page",
			count:       0,
			page:        1,
			wantMaxPage: 1,
		},
		{
			name:    "page beyond max",
			count:   45,
			page:    4,
			wantErr: ErrInvalidPage,
		},
		{
			name:    "page zero",
			count:   45,
			page:    0,
			wantErr: ErrInvalidPage,
		},
		{
			name:    "negative page",
			count:   45,
			page:    -1,
			wantErr: ErrInvalidPage,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			mockRepo.On("CountMessages", int64(7)).Return(tc.count, nil).Once()
			if tc.wantErr == nil {
				mockRepo.On("GetMessagePage", int64(7), tc.page, int64(PageSize)).
					Return([]database.Message{}, nil).Once()
				mockRepo.On("GetUsersByIds", []int64(nil)).Return([]database.User{}, nil).Maybe()
			}

			svc := newTestService(t, mockRepo)
			history, err := svc.History(7, tc.page)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.page, history.Page)
			assert.Equal(t, tc.wantMaxPage, history.MaxPage)
		})
	}
}

func TestHistory_PageConcatenation(t *testing.T) {
	const total = 45
	users := []database.User{{Id: 1, Name: "alice", DisplayName: "Alice"}}

	// page p holds ids (total - p*PageSize, total - (p-1)*PageSize],
	// newest first
	pageRows := func(page int64) []database.Message {
		hi := total - (page-1)*PageSize
		lo := hi - PageSize
		if lo < 0 {
			lo = 0
		}
		rows := make([]database.Message, 0, hi-lo)
		for id := hi; id > lo; id-- {
			rows = append(rows, database.Message{
				Id: id, ChannelId: 7, UserId: 1, Content: "m", CreatedAt: testTime,
			})
		}
		return rows
	}

	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	for page := int64(1); page <= 3; page++ {
		mockRepo.On("CountMessages", int64(7)).Return(int64(total), nil).Once()
		mockRepo.On("GetMessagePage", int64(7), page, int64(PageSize)).
			Return(pageRows(page), nil).Once()
	}
	mockRepo.On("GetUsersByIds", []int64{1}).Return(users, nil).Times(3)

	svc := newTestService(t, mockRepo)

	// newest page first, prepending older pages reconstructs the log
	var all []types.Message
	for page := int64(1); page <= 3; page++ {
		history, err := svc.History(7, page)
		assert.NoError(t, err)
		all = append(history.Messages, all...)
	}

	assert.Len(t, all, total)
	for i, m := range all {
		assert.Equal(t, int64(i+1), m.Id, "expected the concatenated pages to rebuild the full log")
	}
}

func TestHistory_Reversal(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("CountMessages", int64(7)).Return(int64(3), nil).Once()
	mockRepo.On("GetMessagePage", int64(7), int64(1), int64(PageSize)).Return([]database.Message{
		{Id: 3, ChannelId: 7, UserId: 1, Content: "c", CreatedAt: testTime},
		{Id: 2, ChannelId: 7, UserId: 1, Content: "b", CreatedAt: testTime},
		{Id: 1, ChannelId: 7, UserId: 1, Content: "a", CreatedAt: testTime},
	}, nil).Once()
	mockRepo.On("GetUsersByIds", []int64{1}).Return([]database.User{{Id: 1, Name: "alice"}}, nil).Once()

	svc := newTestService(t, mockRepo)
	history, err := svc.History(7, 1)
	assert.NoError(t, err)

	assert.Len(t, history.Messages, 3)
	assert.Equal(t, int64(1), history.Messages[0].Id, "expected chronological order")
	assert.Equal(t, int64(3), history.Messages[2].Id)
}

func TestChannels_CacheMiss(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("ListChannels").Return([]database.Channel{
		{Id: 1, Name: "general", Description: "everything"},
	}, nil).Once()

	// nil cache: every call goes to the repository
	svc := newTestService(t, mockRepo)
	channels, err := svc.Channels()
	assert.NoError(t, err)
	assert.Len(t, channels, 1)
	assert.Equal(t, "general", channels[0].Name)
}

func TestCreateChannel(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("CreateChannel", database.CreateChannelParams{
		Name:        "random",
		Description: "anything",
	}).Return(database.Channel{Id: 11, Name: "random", Description: "anything"}, nil).Once()

	svc := newTestService(t, mockRepo)
	ch, err := svc.CreateChannel("random", "anything")
	assert.NoError(t, err)
	assert.Equal(t, int64(11), ch.Id)
}

func TestReset(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("Reset").Return(nil).Once()

	svc := newTestService(t, mockRepo)
	assert.NoError(t, svc.Reset())
}
