// Package notify keeps a bounded, newest-first window of push
// notifications for display, plus the unread counters pushed by the
// server.
//
// The buffer is a recency window, not the source of truth for unread
// totals: those arrive on their own "unread" event and live in separate
// counters.
package notify

import (
	"sync"
	"time"

	"github.com/zyx3721/ops-integrated-admin-console/internal/logging"
)

const (
	// DefaultCapacity bounds the buffer; inserting past it evicts the
	// oldest entry.
	DefaultCapacity = 20

	// DefaultDismissAfter is how long a notification stays "current"
	// before the popup auto-dismisses.
	DefaultDismissAfter = 5 * time.Second
)

// Category tells notice-style notifications apart from chat messages.
type Category string

const (
	CategoryNotice Category = "notice"
	CategoryChat   Category = "chat"
)

// Notification is one inbox entry derived from a push event.
type Notification struct {
	ID       string
	Category Category
	Title    string
	Body     string
	Time     time.Time
	Read     bool
	SenderID int64
	GroupID  int64
}

// Inbox is the bounded notification buffer. Safe for concurrent use; the
// realtime dispatch and UI reads run on different goroutines.
type Inbox struct {
	mu           sync.Mutex
	items        []*Notification
	current      *Notification
	dismissTimer *time.Timer

	noticeCount int
	chatCount   int

	capacity     int
	dismissAfter time.Duration
	log          logging.Logger
}

// Option configures an Inbox.
type Option func(*Inbox)

func WithCapacity(n int) Option {
	return func(in *Inbox) { in.capacity = n }
}

func WithDismissAfter(d time.Duration) Option {
	return func(in *Inbox) { in.dismissAfter = d }
}

func NewInbox(log logging.Logger, opts ...Option) *Inbox {
	in := &Inbox{
		capacity:     DefaultCapacity,
		dismissAfter: DefaultDismissAfter,
		log:          log,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Add inserts a notification at the front, evicting the oldest entry past
// the capacity, and makes it the current popup. The popup auto-dismisses
// after the configured duration unless a newer notification superseded it
// in the meantime (checked by id at fire time, not by blind clearing).
func (in *Inbox) Add(n *Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.items = append([]*Notification{n}, in.items...)
	if len(in.items) > in.capacity {
		in.items = in.items[:in.capacity]
	}

	in.current = n
	if in.dismissTimer != nil {
		in.dismissTimer.Stop()
	}
	id := n.ID
	in.dismissTimer = time.AfterFunc(in.dismissAfter, func() {
		in.mu.Lock()
		defer in.mu.Unlock()
		if in.current != nil && in.current.ID == id {
			in.current = nil
		}
	})
}

// Current returns the notification currently shown as a popup, or nil.
func (in *Inbox) Current() *Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.current
}

// CloseCurrent dismisses the popup immediately.
func (in *Inbox) CloseCurrent() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.current = nil
	if in.dismissTimer != nil {
		in.dismissTimer.Stop()
		in.dismissTimer = nil
	}
}

// List returns the buffered notifications, newest first.
func (in *Inbox) List() []*Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]*Notification, len(in.items))
	copy(out, in.items)
	return out
}

// MarkRead flags the notification with the given id as read.
func (in *Inbox) MarkRead(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, n := range in.items {
		if n.ID == id {
			n.Read = true
			return
		}
	}
}

// SetUnreadCount overwrites both unread counters with server-pushed
// totals.
func (in *Inbox) SetUnreadCount(notice, chat int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.noticeCount = notice
	in.chatCount = chat
}

// UnreadCounts returns the (notice, chat) unread counters.
func (in *Inbox) UnreadCounts() (int, int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.noticeCount, in.chatCount
}

// TotalUnread is the sum of both counters.
func (in *Inbox) TotalUnread() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.noticeCount + in.chatCount
}

// ClearNoticeCount zeroes the notice counter, e.g. when the user opens the
// notice list.
func (in *Inbox) ClearNoticeCount() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.noticeCount = 0
}

// ClearChatCount zeroes the chat counter.
func (in *Inbox) ClearChatCount() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.chatCount = 0
}

// Clear empties the buffer, counters and popup. Called alongside a session
// clear; notifications never outlive the login they arrived in.
func (in *Inbox) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.items = nil
	in.current = nil
	in.noticeCount = 0
	in.chatCount = 0
	if in.dismissTimer != nil {
		in.dismissTimer.Stop()
		in.dismissTimer = nil
	}
}

func (in *Inbox) addNotice() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.noticeCount++
}

func (in *Inbox) addChat() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.chatCount++
}
