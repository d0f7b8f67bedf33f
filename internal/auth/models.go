package auth

import (
	"time"

	"github.com/google/uuid"
)

// UserClaims describes the validated identity extracted from an access token.
type UserClaims struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// ContextUser represents the authenticated principal stored in the request context.
type ContextUser struct {
	ID    uuid.UUID
	Email string
}
