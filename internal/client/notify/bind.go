package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zyx3721/ops-integrated-admin-console/internal/client/realtime"
)

// Event types the inbox consumes from the push channel.
const (
	EventNotice    = "notice"
	EventChat      = "chat"
	EventGroupChat = "groupChat"
	EventUnread    = "unread"
)

type noticePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Time    int64  `json:"time"`
}

type chatPayload struct {
	SenderID   int64  `json:"senderId"`
	SenderName string `json:"senderName"`
	GroupID    int64  `json:"groupId"`
	Content    string `json:"content"`
	Time       int64  `json:"time"`
}

type unreadPayload struct {
	NoticeCount int `json:"noticeCount"`
	ChatCount   int `json:"chatCount"`
}

// Bind subscribes the inbox to the push channel and returns the
// subscription handles so a caller can detach it again. Counter updates
// from the server ("unread") overwrite the locally incremented values;
// the server total wins.
func (in *Inbox) Bind(ch *realtime.Channel) []*realtime.Subscription {
	return []*realtime.Subscription{
		ch.On(EventNotice, in.onNotice),
		ch.On(EventChat, in.onChat),
		ch.On(EventGroupChat, in.onGroupChat),
		ch.On(EventUnread, in.onUnread),
	}
}

func (in *Inbox) onNotice(evt realtime.Event) {
	var p noticePayload
	if err := evt.Decode(&p); err != nil {
		in.log.Error(context.Background(), "bad notice payload", "error", err)
		return
	}
	title := p.Title
	if title == "" {
		title = "System notice"
	}
	in.Add(&Notification{
		ID:       uuid.NewString(),
		Category: CategoryNotice,
		Title:    title,
		Body:     p.Content,
		Time:     eventTime(p.Time),
	})
	in.addNotice()
}

func (in *Inbox) onChat(evt realtime.Event) {
	var p chatPayload
	if err := evt.Decode(&p); err != nil {
		in.log.Error(context.Background(), "bad chat payload", "error", err)
		return
	}
	title := p.SenderName
	if title == "" {
		title = "New message"
	}
	in.Add(&Notification{
		ID:       uuid.NewString(),
		Category: CategoryChat,
		Title:    title,
		Body:     p.Content,
		Time:     eventTime(p.Time),
		SenderID: p.SenderID,
	})
	in.addChat()
}

func (in *Inbox) onGroupChat(evt realtime.Event) {
	var p chatPayload
	if err := evt.Decode(&p); err != nil {
		in.log.Error(context.Background(), "bad group chat payload", "error", err)
		return
	}
	title := p.SenderName
	if title == "" {
		title = "Group message"
	}
	in.Add(&Notification{
		ID:       uuid.NewString(),
		Category: CategoryChat,
		Title:    title,
		Body:     p.Content,
		Time:     eventTime(p.Time),
		SenderID: p.SenderID,
		GroupID:  p.GroupID,
	})
	in.addChat()
}

func (in *Inbox) onUnread(evt realtime.Event) {
	var p unreadPayload
	if err := evt.Decode(&p); err != nil {
		in.log.Error(context.Background(), "bad unread payload", "error", err)
		return
	}
	in.SetUnreadCount(p.NoticeCount, p.ChatCount)
}

// eventTime converts the wire timestamp (epoch milliseconds) to a
// time.Time, falling back to the local clock when absent.
func eventTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
