package auth

import (
	"time"

	"trash4cash/internal/resource/models"
	id "trash4cash/pkg/domain"
)

// Session binds a console session id to the operator's backend token.
type Session struct {
	ID        id.SessionID `json:"id"`
	Token     string       `json:"token"`
	User      models.User  `json:"user"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Expired reports whether the session's token is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
