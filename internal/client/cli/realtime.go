package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/zyx3721/ops-integrated-admin-console/internal/client/notify"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/realtime"
)

// Watch opens the realtime channel (if needed) and starts printing incoming
// notifications as they arrive. Watching stays on until logout.
func (a *App) Watch(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Not logged in")
		return nil
	}

	if a.watchSub == nil {
		a.watchSub = a.channel.On(realtime.Wildcard, func(evt realtime.Event) {
			if !a.watching || evt.Type == notify.EventUnread {
				return
			}
			printlnFn(fmt.Sprintf("[%s] %s", evt.Type, string(evt.Raw)))
		})
	}
	a.watching = true

	a.channel.Connect()
	printlnFn("Watching for notifications")
	return nil
}

// Send pushes one realtime frame: args[0] is the event type, the rest is
// the message text.
func (a *App) Send(ctx context.Context, args []string) error {
	a.channel.Send(args[0], map[string]any{"content": strings.Join(args[1:], " ")})
	return nil
}

// Notices lists the buffered notifications, newest first.
func (a *App) Notices(ctx context.Context) error {
	list := a.inbox.List()
	if len(list) == 0 {
		printlnFn("No notifications")
		return nil
	}
	for _, n := range list {
		marker := " "
		if !n.Read {
			marker = "*"
		}
		printlnFn(fmt.Sprintf("%s [%s] %s: %s (%s)",
			marker, n.Category, n.Title, n.Body, n.Time.Format("15:04:05")))
	}
	a.inbox.ClearNoticeCount()
	a.inbox.ClearChatCount()
	return nil
}

// Status shows the session and connection state.
func (a *App) Status(ctx context.Context) error {
	cred := a.guard.Credential()
	if cred.Token == "" {
		printlnFn("Session: logged out")
	} else if cred.ExpiresAt.IsZero() {
		printlnFn("Session:", cred.Username, "(no expiry)")
	} else {
		printlnFn("Session:", cred.Username, "until", cred.ExpiresAt.Format("2006-01-02 15:04:05"))
	}
	printlnFn("Realtime:", a.channel.State().String())
	notice, chat := a.inbox.UnreadCounts()
	printlnFn(fmt.Sprintf("Unread: %d notices, %d chats", notice, chat))
	return nil
}
