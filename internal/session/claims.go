package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ProExpiry reads the exp claim from a Pro token for display. The signature
// is not checked; validity is decided by the backend only.
func ProExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
