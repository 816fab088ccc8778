package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zyx3721/ops-integrated-admin-console/internal/logging"
)

// ---- fake store ----

type fakeStore struct {
	mu         sync.Mutex
	saved      Credential
	hasSaved   bool
	clearCalls int
	loadRet    Credential
	loadErr    error
	saveErr    error
	clearErr   error
}

func (f *fakeStore) Load(ctx context.Context) (Credential, error) {
	return f.loadRet, f.loadErr
}

func (f *fakeStore) Save(ctx context.Context, cred Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = cred
	f.hasSaved = true
	return f.saveErr
}

func (f *fakeStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	return f.clearErr
}

func (f *fakeStore) clears() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clearCalls
}

func testLogger() logging.Logger {
	// above error, keeps test output quiet
	return logging.NewDefault(slog.LevelError + 4)
}

func newTestGuard(t *testing.T, opts ...GuardOption) (*Guard, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	return NewGuard(store, testLogger(), opts...), store
}

// ---- tests ----

func TestGuard_IsValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		token     string
		expiresAt time.Time
		want      bool
	}{
		{name: "no token", token: "", want: false},
		{name: "no expiry", token: "t", want: true},
		{name: "future expiry", token: "t", expiresAt: now.Add(time.Hour), want: true},
		{name: "past expiry", token: "t", expiresAt: now.Add(-time.Second), want: false},
		{name: "no token with future expiry", token: "", expiresAt: now.Add(time.Hour), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGuard(t, WithClock(func() time.Time { return now }))
			require.NoError(t, g.SetSession(context.Background(), tt.token, "alice", tt.expiresAt))
			require.Equal(t, tt.want, g.IsValid())
		})
	}
}

func TestGuard_EnsureValid_ClearsExpired(t *testing.T) {
	now := time.Now()
	g, store := newTestGuard(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, g.SetSession(ctx, "t1", "alice", now.Add(time.Hour)))
	require.True(t, g.EnsureValid(ctx))

	// fast-forward past the expiry
	now = now.Add(2 * time.Hour)
	require.False(t, g.EnsureValid(ctx))
	require.Empty(t, g.Token())
	require.Equal(t, 1, store.clears())
}

func TestGuard_Invalidate_FiresOnce(t *testing.T) {
	var fired atomic.Int32
	g, store := newTestGuard(t, WithOnExpired(func() { fired.Add(1) }))
	ctx := context.Background()

	require.NoError(t, g.SetSession(ctx, "t1", "alice", time.Time{}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Invalidate(ctx)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), fired.Load())
	require.Equal(t, 1, store.clears())
	require.Empty(t, g.Token())
}

func TestGuard_Invalidate_RearmsAfterLogin(t *testing.T) {
	var fired atomic.Int32
	g, _ := newTestGuard(t, WithOnExpired(func() { fired.Add(1) }))
	ctx := context.Background()

	require.NoError(t, g.SetSession(ctx, "t1", "alice", time.Time{}))
	g.Invalidate(ctx)
	g.Invalidate(ctx)
	require.Equal(t, int32(1), fired.Load())

	// fresh login rearms the one-shot flag
	require.NoError(t, g.SetSession(ctx, "t2", "alice", time.Time{}))
	g.Invalidate(ctx)
	require.Equal(t, int32(2), fired.Load())
}

func TestGuard_ClearSession_DoesNotFireHook(t *testing.T) {
	var fired atomic.Int32
	g, _ := newTestGuard(t, WithOnExpired(func() { fired.Add(1) }))
	ctx := context.Background()

	require.NoError(t, g.SetSession(ctx, "t1", "alice", time.Time{}))
	require.NoError(t, g.ClearSession(ctx))
	require.Equal(t, int32(0), fired.Load())
	require.False(t, g.IsValid())
}

func TestGuard_Restore(t *testing.T) {
	store := &fakeStore{loadRet: Credential{Token: "persisted", Username: "alice"}}
	g := NewGuard(store, testLogger())

	require.NoError(t, g.Restore(context.Background()))
	require.Equal(t, "persisted", g.Token())
	require.True(t, g.IsValid())
}
