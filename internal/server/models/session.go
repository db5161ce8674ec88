package models

import "time"

// Session binds an opaque token to an authenticated user. It references the
// user by id only and carries no credential material.
type Session struct {
	ID        string
	UserID    int64
	UserName  string
	CreatedAt time.Time
	// ExpiresAt is zero for sessions without expiry.
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
