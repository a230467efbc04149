// Package session tracks the active sessions of each principal and enforces
// the concurrent-session cap.
package session

import "time"

// Session groups the tokens issued together for one login instance. A session
// is owned by exactly one principal; a principal owns zero or more sessions.
type Session struct {
	ID           string
	PrincipalID  string
	TokenIDs     []string // jtis issued under this session, access+refresh pair
	CreatedAt    time.Time
	LastActivity time.Time
	DeviceInfo   string
	IPAddress    string
}

// clone returns a copy safe to hand to callers; TokenIDs is copied so
// registry internals are never aliased.
func (s *Session) clone() *Session {
	c := *s
	c.TokenIDs = append([]string(nil), s.TokenIDs...)
	return &c
}
