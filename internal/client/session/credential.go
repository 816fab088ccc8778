// Package session owns the client credential: storage, validity checks and
// the one-shot expiry side effect that sends the user back to the login
// screen.
package session

import "time"

// Credential is the authenticated session state. A zero ExpiresAt means the
// credential never expires on the client side; the server remains free to
// reject it.
type Credential struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// ValidAt reports whether the credential is usable at the given instant.
// No network I/O: token present and either no expiry or expiry in the
// future.
func (c Credential) ValidAt(now time.Time) bool {
	if c.Token == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(c.ExpiresAt)
}
