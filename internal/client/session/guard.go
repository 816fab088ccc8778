package session

import (
	"context"
	"sync"
	"time"

	"github.com/zyx3721/ops-integrated-admin-console/internal/logging"
)

// Guard owns the current credential and the expiry side effect.
//
// Many callers can observe an expired or rejected credential at the same
// time (N in-flight requests all coming back 401). Guard collapses those
// observations into exactly one session clear and one OnExpired callback
// per login epoch; the flag rearms on the next SetSession.
type Guard struct {
	mu           sync.Mutex
	cred         Credential
	expiredFired bool

	store     Store
	log       logging.Logger
	onExpired func()
	now       func() time.Time
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithOnExpired installs the callback fired once per login epoch when the
// session is invalidated — typically navigation back to the login screen.
func WithOnExpired(fn func()) GuardOption {
	return func(g *Guard) { g.onExpired = fn }
}

// WithClock overrides the time source. Tests use it to fast-forward past
// the credential expiry.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

func NewGuard(store Store, log logging.Logger, opts ...GuardOption) *Guard {
	g := &Guard{
		store: store,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Restore loads a previously persisted credential into memory. Called once
// at startup, before any request is issued.
func (g *Guard) Restore(ctx context.Context) error {
	cred, err := g.store.Load(ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.cred = cred
	g.expiredFired = false
	g.mu.Unlock()
	return nil
}

// SetSession stores a fresh credential, persists it and rearms the one-shot
// expiry flag.
func (g *Guard) SetSession(ctx context.Context, token, username string, expiresAt time.Time) error {
	cred := Credential{Token: token, Username: username, ExpiresAt: expiresAt}

	g.mu.Lock()
	g.cred = cred
	g.expiredFired = false
	g.mu.Unlock()

	return g.store.Save(ctx, cred)
}

// Credential returns a copy of the current credential.
func (g *Guard) Credential() Credential {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cred
}

// Token returns the current token, or "" when logged out.
func (g *Guard) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cred.Token
}

// IsValid reports whether the current credential is usable right now.
// Purely local, never touches the network.
func (g *Guard) IsValid() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cred.ValidAt(g.now())
}

// EnsureValid returns true for a usable credential. An expired credential is
// proactively cleared so later calls start from a clean logged-out state.
func (g *Guard) EnsureValid(ctx context.Context) bool {
	g.mu.Lock()
	if g.cred.Token == "" {
		g.mu.Unlock()
		return false
	}
	if g.cred.ValidAt(g.now()) {
		g.mu.Unlock()
		return true
	}
	g.mu.Unlock()

	if err := g.ClearSession(ctx); err != nil {
		g.log.Error(ctx, "failed to clear expired session", "error", err)
	}
	return false
}

// ClearSession wipes the in-memory credential and the durable store.
// Does not fire OnExpired; deliberate logout is not an expiry.
func (g *Guard) ClearSession(ctx context.Context) error {
	g.mu.Lock()
	g.cred = Credential{}
	g.mu.Unlock()

	return g.store.Clear(ctx)
}

// Invalidate reacts to a rejected credential (local expiry or a 401 from
// the transport): clears the session and fires OnExpired, both at most once
// per login epoch. Safe to call concurrently; extra calls are no-ops.
func (g *Guard) Invalidate(ctx context.Context) {
	g.mu.Lock()
	if g.expiredFired {
		g.mu.Unlock()
		return
	}
	g.expiredFired = true
	g.cred = Credential{}
	g.mu.Unlock()

	if err := g.store.Clear(ctx); err != nil {
		g.log.Error(ctx, "failed to clear invalidated session", "error", err)
	}
	g.log.Warn(ctx, "session expired, returning to login")

	if g.onExpired != nil {
		g.onExpired()
	}
}
