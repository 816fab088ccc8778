package transport

import (
	"context"
	"encoding/base64"
	"sync"
)

// KeyMaterial is the hybrid-encryption configuration served by the backend:
// the RSA public key for request fields and the AES key for response
// bodies. When Enabled is false everything passes through in plaintext.
type KeyMaterial struct {
	Enabled   bool   `json:"enabled"`
	PublicKey string `json:"publicKey"`
	AESKey    string `json:"aesKey"`
}

// AESKeyBytes decodes the base64 symmetric key. Empty or undecodable keys
// yield nil, which disables response decryption.
func (k KeyMaterial) AESKeyBytes() []byte {
	if k.AESKey == "" {
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(k.AESKey)
	if err != nil {
		return nil
	}
	return key
}

// keyCache caches KeyMaterial for the process lifetime. Only a successful
// fetch is cached; failures leave the cache empty so the next call retries.
// Invalidate models server-side key rotation: the client is never told
// proactively, it finds out when a decrypt fails.
type keyCache struct {
	mu  sync.Mutex
	mat *KeyMaterial
}

func (c *keyCache) get() (KeyMaterial, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mat == nil {
		return KeyMaterial{}, false
	}
	return *c.mat, true
}

func (c *keyCache) put(mat KeyMaterial) {
	c.mu.Lock()
	c.mat = &mat
	c.mu.Unlock()
}

func (c *keyCache) invalidate() {
	c.mu.Lock()
	c.mat = nil
	c.mu.Unlock()
}

// keyMaterial returns the cached configuration, fetching it on first use.
// The fetch itself travels unencrypted and bypasses Send so it cannot
// recurse into the encryption path. Fetch failure degrades to "encryption
// disabled" for this call only (fail-open on the capability probe, never on
// a live payload) and is not cached.
func (t *Transport) keyMaterial(ctx context.Context) KeyMaterial {
	if mat, ok := t.keys.get(); ok {
		return mat
	}

	var envelope struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    KeyMaterial `json:"data"`
	}

	resp, err := t.rest.R().
		SetContext(ctx).
		SetResult(&envelope).
		Get(cryptoConfigPath)
	if err != nil || resp.IsError() || envelope.Code != codeOK {
		t.log.Warn(ctx, "failed to fetch crypto config, proceeding unencrypted", "error", err)
		return KeyMaterial{}
	}

	t.keys.put(envelope.Data)
	return envelope.Data
}

// InvalidateKeyMaterial drops the cached key material, forcing a refetch on
// the next call that needs it.
func (t *Transport) InvalidateKeyMaterial() {
	t.keys.invalidate()
}
