// Package cli is the interactive console client: a small REPL over the
// auth API, the realtime channel and the notification inbox.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/zyx3721/ops-integrated-admin-console/internal/client/api"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/config"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/notify"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/realtime"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/session"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/transport"
	"github.com/zyx3721/ops-integrated-admin-console/internal/logging"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	guard   *session.Guard
	auth    *api.Service
	channel *realtime.Channel
	inbox   *notify.Inbox
	log     logging.Logger
	reader  *bufio.Reader

	watching bool
	watchSub *realtime.Subscription
}

func NewApp(cfg *config.Config, log logging.Logger) (*App, error) {
	ctx := context.Background()

	db, err := session.InitDatabase(ctx, cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	app := &App{
		config: cfg,
		db:     db,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
	}

	store := session.NewSQLiteStore(db)
	app.guard = session.NewGuard(store, log, session.WithOnExpired(app.onSessionExpired))

	tr := transport.New(cfg.ServerBaseURL, cfg.RequestTimeout, app.guard, log)
	app.auth = api.NewService(tr, app.guard, log)

	app.channel = realtime.NewChannel(realtime.Options{
		URL:                  cfg.RealtimeURL,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, app.guard, log)

	app.inbox = notify.NewInbox(log)
	app.inbox.Bind(app.channel)

	return app, nil
}

// onSessionExpired is the guard's one-shot expiry hook: tear down the live
// connection, drop buffered notifications and tell the user.
func (a *App) onSessionExpired() {
	a.channel.Disconnect()
	a.inbox.Clear()
	printlnFn("Session expired, please log in again.")
}

func (a *App) isLoggedIn() bool {
	return a.guard.IsValid()
}

func (a *App) getStatus() string {
	cred := a.guard.Credential()
	if cred.Token == "" {
		return "(logged out)"
	}
	s := cred.Username
	if a.channel.IsConnected() {
		s += " live"
	}
	if n := a.inbox.TotalUnread(); n > 0 {
		s += fmt.Sprintf(" %d unread", n)
	}
	return "(" + s + ")"
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()

	if err := a.guard.Restore(ctx); err != nil {
		a.log.Error(ctx, "failed to restore session", "error", err)
	}
	if a.guard.EnsureValid(ctx) {
		printlnFn("Welcome back,", a.guard.Credential().Username)
	}

	printlnFn("Ops console (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}

func (a *App) Close() {
	a.channel.Disconnect()
	if a.db != nil {
		_ = a.db.Close()
	}
}
