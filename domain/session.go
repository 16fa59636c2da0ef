package domain

import "time"

// Session represents an authenticated browser session.
type Session struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	UserAgent string    `bson:"user_agent,omitempty"`
	IPAddress string    `bson:"ip_address,omitempty"`
	Remember  bool      `bson:"remember"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// IsExpired reports whether the session is past its expiry at the given time.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
