// Package transport implements the encrypted request/response pipeline
// between the console client and the backend.
//
// Every call travels as JSON inside the standard envelope
// {code, message, data}. Designated sensitive request fields are replaced
// with RSA ciphertext before the call; response data recognised as an
// AES-GCM envelope is decrypted after it. Key material is fetched lazily
// from the backend and cached for the process lifetime.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zyx3721/ops-integrated-admin-console/internal/client/session"
	"github.com/zyx3721/ops-integrated-admin-console/internal/cryptox"
	"github.com/zyx3721/ops-integrated-admin-console/internal/logging"
)

const (
	codeOK           = 200
	codeUnauthorized = 401

	cryptoConfigPath = "/crypto/config"

	// LogoutPath is special-cased: a 401 from logout itself must not
	// trigger the expiry redirect again.
	LogoutPath = "/auth/logout"

	// DefaultTimeout bounds a whole logical request, including the lazy
	// key-material fetch.
	DefaultTimeout = 30 * time.Second
)

// DefaultSensitiveFields are the request fields encrypted by convention
// when the caller does not name its own.
var DefaultSensitiveFields = []string{"password", "oldPassword", "newPassword"}

// Transport is the crypto-aware HTTP client. Construct once per session
// context and share; all methods are safe for concurrent use.
type Transport struct {
	rest  *resty.Client
	guard *session.Guard
	log   logging.Logger
	keys  keyCache
}

func New(baseURL string, timeout time.Duration, guard *session.Guard, log logging.Logger) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Transport{rest: rest, guard: guard, log: log}
}

// HTTPClient exposes the underlying http.Client so tests can install mocks.
func (t *Transport) HTTPClient() *http.Client {
	return t.rest.GetClient()
}

// envelope is the fixed backend response shape.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Send performs one logical request.
//
// Named sensitive fields present and non-empty in body are replaced with
// RSA ciphertext when encryption is enabled. The response envelope is
// unwrapped, decrypted if needed, and decoded into out (which may be nil).
//
// Failures map to the error taxonomy: ErrSessionExpired for a rejected
// credential (after triggering the guard's one-shot redirect), *APIError
// for other application codes, *NetworkError for transport failures.
// Decrypt failures never surface; the raw value is returned instead.
func (t *Transport) Send(ctx context.Context, method, path string, body, out any, sensitive ...string) error {
	payload, err := t.encodeBody(ctx, body, sensitive)
	if err != nil {
		return err
	}

	req := t.rest.R().SetContext(ctx)
	if token := t.guard.Token(); token != "" {
		// A locally expired credential is rejected before it hits the wire,
		// with the same one-shot invalidation a server 401 would trigger.
		if !t.guard.IsValid() {
			if path != LogoutPath {
				t.guard.Invalidate(ctx)
			}
			return ErrSessionExpired
		}
		req.SetHeader("Authorization", token)
	}
	if payload != nil {
		req.SetBody(payload)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &NetworkError{Err: err}
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil || env.Code == 0 {
		// No application envelope; all we know is the HTTP status.
		return &NetworkError{Err: fmt.Errorf("http %s", resp.Status())}
	}

	if env.Code == codeUnauthorized {
		if path != LogoutPath {
			t.guard.Invalidate(ctx)
		}
		return ErrSessionExpired
	}
	if env.Code != codeOK {
		return &APIError{Code: env.Code, Message: env.Message}
	}

	data := t.maybeDecrypt(ctx, env.Data)
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Get issues a GET request and decodes the data into out.
func (t *Transport) Get(ctx context.Context, path string, out any) error {
	return t.Send(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request, encrypting the named sensitive fields.
func (t *Transport) Post(ctx context.Context, path string, body, out any, sensitive ...string) error {
	return t.Send(ctx, http.MethodPost, path, body, out, sensitive...)
}

// Put issues a PUT request.
func (t *Transport) Put(ctx context.Context, path string, body, out any, sensitive ...string) error {
	return t.Send(ctx, http.MethodPut, path, body, out, sensitive...)
}

// encodeBody replaces the named sensitive fields with RSA ciphertext. When
// encryption is disabled (including a failed key-material fetch) the body
// passes through unchanged. An actual encryption failure aborts the call;
// a sensitive value must never leave in plaintext once encryption is on.
func (t *Transport) encodeBody(ctx context.Context, body any, sensitive []string) (any, error) {
	if body == nil || len(sensitive) == 0 {
		return body, nil
	}

	mat := t.keyMaterial(ctx)
	if !mat.Enabled || mat.PublicKey == "" {
		return body, nil
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("sensitive fields require an object body: %w", err)
	}

	for _, name := range sensitive {
		value, ok := fields[name].(string)
		if !ok || value == "" {
			continue
		}
		encrypted, err := cryptox.EncryptRSA(value, mat.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("encrypt field %q: %w", name, err)
		}
		fields[name] = encrypted
	}
	return fields, nil
}

// maybeDecrypt sniffs the response data for the AES envelope shape and
// decrypts it in place. A failed decrypt means the cached key is stale:
// the cache is invalidated (next call refetches) and the raw value is
// returned as-is — one rotated key must not fail the whole session.
func (t *Transport) maybeDecrypt(ctx context.Context, data json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return data
	}
	if !cryptox.IsEncryptedEnvelope(s) {
		return data
	}

	key := t.keyMaterial(ctx).AESKeyBytes()
	if key == nil {
		return data
	}

	plain, err := cryptox.DecryptEnvelope(s, key)
	if err != nil {
		t.log.Warn(ctx, "response decrypt failed, invalidating key material", "error", err)
		t.keys.invalidate()
		return data
	}
	return plain
}
