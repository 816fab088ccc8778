package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zyx3721/ops-integrated-admin-console/internal/client/realtime"
)

func event(t *testing.T, eventType, payload string) realtime.Event {
	t.Helper()
	require.True(t, json.Valid([]byte(payload)))
	return realtime.Event{Type: eventType, Raw: json.RawMessage(payload)}
}

func TestInbox_OnNotice(t *testing.T) {
	in := NewInbox(testLogger())

	in.onNotice(event(t, EventNotice,
		`{"type":"notice","title":"Maintenance","content":"tonight","time":1756600000000}`))

	list := in.List()
	require.Len(t, list, 1)
	n := list[0]
	require.NotEmpty(t, n.ID)
	require.Equal(t, CategoryNotice, n.Category)
	require.Equal(t, "Maintenance", n.Title)
	require.Equal(t, "tonight", n.Body)
	require.Equal(t, time.UnixMilli(1756600000000), n.Time)

	notice, chat := in.UnreadCounts()
	require.Equal(t, 1, notice)
	require.Equal(t, 0, chat)
}

func TestInbox_OnNoticeDefaultTitle(t *testing.T) {
	in := NewInbox(testLogger())

	in.onNotice(event(t, EventNotice, `{"type":"notice","content":"no title"}`))

	list := in.List()
	require.Len(t, list, 1)
	require.Equal(t, "System notice", list[0].Title)
	require.False(t, list[0].Time.IsZero())
}

func TestInbox_OnChat(t *testing.T) {
	in := NewInbox(testLogger())

	in.onChat(event(t, EventChat,
		`{"type":"chat","senderId":7,"senderName":"bob","content":"hi"}`))

	list := in.List()
	require.Len(t, list, 1)
	require.Equal(t, CategoryChat, list[0].Category)
	require.Equal(t, "bob", list[0].Title)
	require.Equal(t, int64(7), list[0].SenderID)

	notice, chat := in.UnreadCounts()
	require.Equal(t, 0, notice)
	require.Equal(t, 1, chat)
}

func TestInbox_OnGroupChat(t *testing.T) {
	in := NewInbox(testLogger())

	in.onGroupChat(event(t, EventGroupChat,
		`{"type":"groupChat","senderId":7,"groupId":3,"content":"hi all"}`))

	list := in.List()
	require.Len(t, list, 1)
	require.Equal(t, CategoryChat, list[0].Category)
	require.Equal(t, "Group message", list[0].Title)
	require.Equal(t, int64(3), list[0].GroupID)
}

func TestInbox_OnUnreadOverwritesLocalCounts(t *testing.T) {
	in := NewInbox(testLogger())
	in.onNotice(event(t, EventNotice, `{"type":"notice","content":"x"}`))
	in.onChat(event(t, EventChat, `{"type":"chat","content":"y"}`))

	in.onUnread(event(t, EventUnread, `{"type":"unread","noticeCount":12,"chatCount":5}`))

	notice, chat := in.UnreadCounts()
	require.Equal(t, 12, notice)
	require.Equal(t, 5, chat)
	require.Equal(t, 17, in.TotalUnread())
}

func TestInbox_BadPayloadIsDropped(t *testing.T) {
	in := NewInbox(testLogger())

	in.onNotice(realtime.Event{Type: EventNotice, Raw: json.RawMessage(`{"time":"not a number"}`)})
	in.onUnread(realtime.Event{Type: EventUnread, Raw: json.RawMessage(`[]`)})

	require.Empty(t, in.List())
	require.Equal(t, 0, in.TotalUnread())
}
