package models

import "time"

// BankSession is the ephemeral record of an in-flight bank activation
// handshake. It lives in Redis with a TTL and is discarded as soon as the
// handshake resolves or is abandoned.
type BankSession struct {
	ApplicationID string    `json:"applicationId"`
	RedirectURL   string    `json:"redirectUrl"`
	OpenedAt      time.Time `json:"openedAt"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
	PollAttempts  int       `json:"pollAttempts"`
}

// Touch records one status poll against the session.
func (s *BankSession) Touch(now time.Time) {
	s.LastCheckedAt = now
	s.PollAttempts++
}
