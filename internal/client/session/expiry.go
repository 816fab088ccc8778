package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ResolveExpiry determines the credential expiry for a fresh login.
//
// Preference order: an explicit RFC 3339 timestamp from the server, then the
// token's own JWT "exp" claim (parsed without signature verification; the
// client only needs the timestamp, not trust in it). Anything unparsable
// yields a zero time, i.e. a non-expiring credential — an unreadable expiry
// must not lock the user out.
func ResolveExpiry(token, rawExpire string) time.Time {
	if rawExpire != "" {
		t, err := time.Parse(time.RFC3339, rawExpire)
		if err != nil {
			return time.Time{}
		}
		return t
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
