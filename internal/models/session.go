package models

import "time"

// Session is a browser session of the web tier. The identity fields are
// empty while nobody is signed in; the session itself outlives sign-outs.
type Session struct {
	ID             string `gorm:"primaryKey;type:uuid"`
	Token          string `gorm:"type:text"`
	Email          string `gorm:"index"`
	UserID         string `gorm:"type:text"`
	TokenExpiresAt time.Time
	ExpiresAt      time.Time `gorm:"index;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SignedIn reports whether the session carries an unexpired identity.
func (s Session) SignedIn(now time.Time) bool {
	if s.Token == "" || s.Email == "" {
		return false
	}
	return s.TokenExpiresAt.IsZero() || now.Before(s.TokenExpiresAt)
}
