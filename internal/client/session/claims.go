package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Status is a read-only view of the stored session, for display.
type Status struct {
	Authenticated    bool
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Subject          string
}

// TokenExpiry extracts exp from a JWT without verifying its signature. The
// client never trusts these claims for authorization; the server does that.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func tokenSubject(token string) string {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return ""
	}
	return claims.Subject
}

// Status describes the stored tokens. Opaque (non-JWT) tokens yield zero
// expiry times.
func (s *Store) Status(ctx context.Context) Status {
	access, _ := s.GetAccessToken(ctx)
	refresh, _ := s.GetRefreshToken(ctx)

	st := Status{Authenticated: access != ""}
	if exp, ok := TokenExpiry(access); ok {
		st.AccessExpiresAt = exp
	}
	if exp, ok := TokenExpiry(refresh); ok {
		st.RefreshExpiresAt = exp
	}
	st.Subject = tokenSubject(access)
	return st
}

// RefreshExpired reports whether the stored refresh token is a JWT whose
// exp is in the past. Tokens without a readable exp are assumed valid.
func (s *Store) RefreshExpired(ctx context.Context, now time.Time) bool {
	refresh, err := s.GetRefreshToken(ctx)
	if err != nil || refresh == "" {
		return false
	}
	exp, ok := TokenExpiry(refresh)
	return ok && now.After(exp)
}
