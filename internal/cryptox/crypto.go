// Package cryptox implements the hybrid wire crypto used by the console
// backend: RSA (PKCS#1 v1.5) for sensitive request fields and AES-GCM for
// encrypted response bodies.
//
// An encrypted response body travels as "<ivBase64>.<cipherTextBase64>".
// The IV is always 12 bytes, so its base64 form is always 16 characters,
// which makes structural sniffing cheap.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

const (
	// IVSize is the AES-GCM nonce length used on the wire.
	IVSize = 12

	// encodedIVLength is the base64 length of a 12-byte IV.
	encodedIVLength = 16

	// EnvelopeSeparator joins the IV and ciphertext parts.
	EnvelopeSeparator = "."

	// minEncodedCipherLength filters out strings too short to hold a
	// GCM tag, e.g. "2024.01" style values.
	minEncodedCipherLength = 11
)

var (
	ErrMalformedEnvelope = errors.New("malformed encrypted envelope")
	ErrInvalidPublicKey  = errors.New("invalid RSA public key")
)

// IsEncryptedEnvelope reports whether s structurally looks like an AES-GCM
// envelope: exactly two base64 parts separated by a dot, the first being a
// 12-byte IV. Ordinary strings (UUIDs, sentences, version numbers) fail one
// of the checks and are left alone.
func IsEncryptedEnvelope(s string) bool {
	parts := strings.Split(s, EnvelopeSeparator)
	if len(parts) != 2 {
		return false
	}
	if len(parts[0]) != encodedIVLength || len(parts[1]) < minEncodedCipherLength {
		return false
	}
	if _, err := base64.StdEncoding.DecodeString(parts[0]); err != nil {
		return false
	}
	if _, err := base64.StdEncoding.DecodeString(parts[1]); err != nil {
		return false
	}
	return true
}

// DecryptEnvelope opens an "ivB64.cipherB64" envelope with the given AES key
// and returns the plaintext.
func DecryptEnvelope(envelope string, key []byte) ([]byte, error) {
	parts := strings.Split(envelope, EnvelopeSeparator)
	if len(parts) != 2 {
		return nil, ErrMalformedEnvelope
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if len(iv) != IVSize {
		return nil, ErrMalformedEnvelope
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("aes-gcm open: %w", err)
	}
	return plaintext, nil
}

// EncodeEnvelope seals plaintext with AES-GCM under key and encodes it in
// the wire format. The counterpart of DecryptEnvelope; the server does this
// in production, the client only needs it in tests and tooling.
func EncodeEnvelope(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	ciphertext := aesgcm.Seal(nil, iv, plaintext, nil)
	return base64.StdEncoding.EncodeToString(iv) + EnvelopeSeparator +
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

// EncryptRSA encrypts plaintext with the server's public key using
// PKCS#1 v1.5 and returns the base64 ciphertext. This is a one-way
// transform; only the server holds the private key.
func EncryptRSA(plaintext string, publicKey string) (string, error) {
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return "", err
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("rsa encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// parsePublicKey accepts either a PEM block or bare base64 DER, in PKIX or
// PKCS#1 form. The config endpoint serves bare base64.
func parsePublicKey(raw string) (*rsa.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidPublicKey
	}

	var der []byte
	if block, _ := pem.Decode([]byte(raw)); block != nil {
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
		}
		der = decoded
	}

	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, ErrInvalidPublicKey
		}
		return pub, nil
	}
	if pub, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return pub, nil
	}
	return nil, ErrInvalidPublicKey
}
