package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/zyx3721/ops-integrated-admin-console/internal/client/session"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/transport"
	"github.com/zyx3721/ops-integrated-admin-console/internal/logging"
)

const baseURL = "http://console.test/api"

// ---- helpers ----

type memStore struct {
	mu   sync.Mutex
	cred session.Credential
}

func (m *memStore) Load(ctx context.Context) (session.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred, nil
}

func (m *memStore) Save(ctx context.Context, cred session.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = cred
	return nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = session.Credential{}
	return nil
}

func testLogger() logging.Logger {
	return logging.NewDefault(slog.LevelError + 4)
}

func newTestService(t *testing.T, guardOpts ...session.GuardOption) (*Service, *session.Guard) {
	t.Helper()
	guard := session.NewGuard(&memStore{}, testLogger(), guardOpts...)
	tr := transport.New(baseURL, 0, guard, testLogger())

	httpmock.ActivateNonDefault(tr.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	// encryption off unless a test overrides this responder
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/crypto/config",
		okEnvelope(map[string]any{"enabled": false}))

	return NewService(tr, guard, testLogger()), guard
}

func okEnvelope(data any) httpmock.Responder {
	return httpmock.NewJsonResponderOrPanic(200, map[string]any{
		"code":    200,
		"message": "",
		"data":    data,
	})
}

// ---- tests ----

func TestLogin_InstallsSession(t *testing.T) {
	svc, guard := newTestService(t)

	expire := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/auth/login",
		okEnvelope(map[string]any{
			"access_token": "tok-1",
			"expireAt":     expire.Format(time.RFC3339),
		}))

	res, err := svc.Login(context.Background(), LoginParams{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	require.Equal(t, "tok-1", res.Token)

	require.True(t, guard.IsValid())
	cred := guard.Credential()
	require.Equal(t, "tok-1", cred.Token)
	require.Equal(t, "alice", cred.Username)
	require.True(t, cred.ExpiresAt.Equal(expire))
}

func TestLogin_SendsCaptchaAnswer(t *testing.T) {
	svc, _ := newTestService(t)

	var sentBody map[string]any
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/auth/login",
		func(req *http.Request) (*http.Response, error) {
			raw, _ := io.ReadAll(req.Body)
			require.NoError(t, json.Unmarshal(raw, &sentBody))
			return okEnvelope(map[string]any{"access_token": "tok-1"})(req)
		})

	_, err := svc.Login(context.Background(), LoginParams{
		Username: "alice",
		Password: "hunter2",
		Code:     "7261",
		UUID:     "captcha-uuid",
	})
	require.NoError(t, err)
	require.Equal(t, "7261", sentBody["code"])
	require.Equal(t, "captcha-uuid", sentBody["uuid"])
}

func TestLogin_NoTokenInResponse(t *testing.T) {
	svc, guard := newTestService(t)

	httpmock.RegisterResponder(http.MethodPost, baseURL+"/auth/login",
		okEnvelope(map[string]any{}))

	_, err := svc.Login(context.Background(), LoginParams{Username: "alice", Password: "x"})
	require.Error(t, err)
	require.False(t, guard.IsValid())
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, guard := newTestService(t)

	httpmock.RegisterResponder(http.MethodPost, baseURL+"/auth/login",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"code": 500, "message": "user not found", "data": nil,
		}))

	_, err := svc.Login(context.Background(), LoginParams{Username: "alice", Password: "x"})
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "user not found", apiErr.Message)
	require.False(t, guard.IsValid())
}

func TestLogout_ClearsLocalStateBeforeServerCall(t *testing.T) {
	svc, guard := newTestService(t)
	require.NoError(t, guard.SetSession(context.Background(), "tok-1", "alice", time.Time{}))

	var tokenDuringCall atomic.Value
	httpmock.RegisterResponder(http.MethodPost, baseURL+transport.LogoutPath,
		func(req *http.Request) (*http.Response, error) {
			tokenDuringCall.Store(guard.Token())
			return okEnvelope(nil)(req)
		})

	require.NoError(t, svc.Logout(context.Background()))
	require.Empty(t, guard.Token())
	// by the time the server saw the request the local session was gone
	require.Equal(t, "", tokenDuringCall.Load())
}

func TestLogout_ServerFailureIsSwallowed(t *testing.T) {
	var fired atomic.Int32
	svc, guard := newTestService(t, session.WithOnExpired(func() { fired.Add(1) }))
	require.NoError(t, guard.SetSession(context.Background(), "tok-1", "alice", time.Time{}))

	httpmock.RegisterResponder(http.MethodPost, baseURL+transport.LogoutPath,
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"code": 401, "message": "token already dead", "data": nil,
		}))

	require.NoError(t, svc.Logout(context.Background()))
	require.Empty(t, guard.Token())
	// a rejected logout must not bounce the user through the expiry path
	require.Equal(t, int32(0), fired.Load())
}

func TestLogout_WithoutSessionSkipsServerCall(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Logout(context.Background()))
	require.Zero(t, httpmock.GetCallCountInfo()["POST "+baseURL+transport.LogoutPath])
}

func TestCaptcha(t *testing.T) {
	svc, _ := newTestService(t)

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/auth/code",
		okEnvelope(map[string]any{
			"captchaEnabled": true,
			"uuid":           "u-1",
			"img":            "aGVsbG8=",
		}))

	res, err := svc.Captcha(context.Background())
	require.NoError(t, err)
	require.True(t, res.Enabled)
	require.Equal(t, "u-1", res.UUID)
	require.Equal(t, "aGVsbG8=", res.Img)
}

func TestGetInfo(t *testing.T) {
	svc, _ := newTestService(t)

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/system/user/getInfo",
		okEnvelope(map[string]any{
			"user":        map[string]any{"userId": 7, "userName": "alice", "nickName": "Alice"},
			"roles":       []string{"admin"},
			"permissions": []string{"*:*:*"},
		}))

	res, err := svc.GetInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), res.User.UserID)
	require.Equal(t, "alice", res.User.Username)
	require.Equal(t, []string{"admin"}, res.Roles)
	require.Equal(t, []string{"*:*:*"}, res.Permissions)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(t)

	var sentBody map[string]any
	httpmock.RegisterResponder(http.MethodPut, baseURL+"/system/user/profile",
		func(req *http.Request) (*http.Response, error) {
			raw, _ := io.ReadAll(req.Body)
			require.NoError(t, json.Unmarshal(raw, &sentBody))
			return okEnvelope(nil)(req)
		})

	err := svc.UpdateProfile(context.Background(), ProfileInfo{Nickname: "Alice", Email: "a@b.c"})
	require.NoError(t, err)
	require.Equal(t, "Alice", sentBody["nickName"])
	require.Equal(t, "a@b.c", sentBody["email"])
}

func TestUpdatePassword_SendsBothFields(t *testing.T) {
	svc, _ := newTestService(t)

	var sentBody map[string]any
	httpmock.RegisterResponder(http.MethodPut, baseURL+"/system/user/profile/updatePwd",
		func(req *http.Request) (*http.Response, error) {
			raw, _ := io.ReadAll(req.Body)
			require.NoError(t, json.Unmarshal(raw, &sentBody))
			return okEnvelope(nil)(req)
		})

	require.NoError(t, svc.UpdatePassword(context.Background(), "old-pass", "new-pass"))
	// encryption is off in this setup; the transport's own tests cover the
	// encrypted path
	require.Equal(t, "old-pass", sentBody["oldPassword"])
	require.Equal(t, "new-pass", sentBody["newPassword"])
}
