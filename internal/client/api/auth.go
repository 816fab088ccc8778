// Package api wraps the console backend endpoints behind typed Go calls.
// It is a thin layer: request/response shapes plus which fields are
// sensitive; all crypto and error mapping lives in the transport.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zyx3721/ops-integrated-admin-console/internal/client/session"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/transport"
	"github.com/zyx3721/ops-integrated-admin-console/internal/logging"
)

const (
	loginPath          = "/auth/login"
	registerPath       = "/auth/register"
	captchaPath        = "/auth/code"
	smsCodePath        = "/resource/sms/code"
	userInfoPath       = "/system/user/getInfo"
	profilePath        = "/system/user/profile"
	updatePasswordPath = "/system/user/profile/updatePwd"
)

// LoginParams carries the login form. Password travels encrypted.
type LoginParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
	UUID     string `json:"uuid,omitempty"`
}

// RegisterParams carries the self-registration form.
type RegisterParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
	UUID     string `json:"uuid,omitempty"`
}

// LoginResult is the token grant returned by the backend.
type LoginResult struct {
	Token    string `json:"access_token"`
	ExpireAt string `json:"expireAt,omitempty"`
}

// CaptchaResult is a rendered captcha challenge. Img is a base64 PNG.
type CaptchaResult struct {
	Enabled bool   `json:"captchaEnabled"`
	UUID    string `json:"uuid"`
	Img     string `json:"img"`
}

// UserInfo is the identity block behind an authenticated session.
type UserInfo struct {
	UserID   int64  `json:"userId"`
	Username string `json:"userName"`
	Nickname string `json:"nickName"`
	Email    string `json:"email"`
	Phone    string `json:"phonenumber"`
}

// UserInfoResult bundles the identity with its grants.
type UserInfoResult struct {
	User        UserInfo `json:"user"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// ProfileInfo is the editable subset of the user record.
type ProfileInfo struct {
	Nickname string `json:"nickName"`
	Email    string `json:"email"`
	Phone    string `json:"phonenumber"`
	Sex      string `json:"sex,omitempty"`
}

// Service is the auth endpoint group. It owns the login/logout lifecycle
// against the session guard.
type Service struct {
	tr    *transport.Transport
	guard *session.Guard
	log   logging.Logger
}

func NewService(tr *transport.Transport, guard *session.Guard, log logging.Logger) *Service {
	return &Service{tr: tr, guard: guard, log: log}
}

// Login authenticates and installs the granted token as the current
// session. The credential expiry comes from the response when present,
// otherwise from the token's own exp claim.
func (s *Service) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	var res LoginResult
	if err := s.tr.Post(ctx, loginPath, params, &res, "password"); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if res.Token == "" {
		return nil, fmt.Errorf("login: backend returned no token")
	}

	expiresAt := session.ResolveExpiry(res.Token, res.ExpireAt)
	if err := s.guard.SetSession(ctx, res.Token, params.Username, expiresAt); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &res, nil
}

// Register creates an account. It does not log the user in.
func (s *Service) Register(ctx context.Context, params RegisterParams) error {
	if err := s.tr.Post(ctx, registerPath, params, nil, "password"); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Logout ends the session. Local state is cleared first so a token the
// backend already rejected cannot re-trigger the expiry path; the server
// call is then best-effort and its failure only logged.
func (s *Service) Logout(ctx context.Context) error {
	token := s.guard.Token()
	if err := s.guard.ClearSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if token == "" {
		return nil
	}

	if err := s.tr.Post(ctx, transport.LogoutPath, nil, nil); err != nil {
		s.log.Warn(ctx, "server-side logout failed", "error", err)
	}
	return nil
}

// Captcha fetches a fresh captcha challenge for the login form.
func (s *Service) Captcha(ctx context.Context) (*CaptchaResult, error) {
	var res CaptchaResult
	if err := s.tr.Get(ctx, captchaPath, &res); err != nil {
		return nil, fmt.Errorf("captcha: %w", err)
	}
	return &res, nil
}

// SendSmsCode asks the backend to text a verification code.
func (s *Service) SendSmsCode(ctx context.Context, phone string) error {
	path := fmt.Sprintf("%s?phonenumber=%s", smsCodePath, phone)
	if err := s.tr.Get(ctx, path, nil); err != nil {
		return fmt.Errorf("send sms code: %w", err)
	}
	return nil
}

// GetInfo returns the identity and grants of the current session.
func (s *Service) GetInfo(ctx context.Context) (*UserInfoResult, error) {
	var res UserInfoResult
	if err := s.tr.Get(ctx, userInfoPath, &res); err != nil {
		return nil, fmt.Errorf("get user info: %w", err)
	}
	return &res, nil
}

// GetProfile returns the editable profile of the current user.
func (s *Service) GetProfile(ctx context.Context) (*ProfileInfo, error) {
	var res ProfileInfo
	if err := s.tr.Get(ctx, profilePath, &res); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &res, nil
}

// UpdateProfile saves profile edits.
func (s *Service) UpdateProfile(ctx context.Context, profile ProfileInfo) error {
	if err := s.tr.Put(ctx, profilePath, profile, nil); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UpdatePassword changes the account password. Both password fields
// travel encrypted.
func (s *Service) UpdatePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	}
	err := s.tr.Send(ctx, http.MethodPut, updatePasswordPath, body, nil,
		"oldPassword", "newPassword")
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
