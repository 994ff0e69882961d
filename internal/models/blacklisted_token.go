package models

import (
	"time"

	"github.com/google/uuid"
)

// BlacklistedToken records a token that must never validate again.
// TokenKey is the hashed bearer value (the same digest token rows use), so
// the raw token never appears in this table either.
type BlacklistedToken struct {
	ID        uuid.UUID `json:"id"`
	TokenKey  string    `json:"token_key"`
	CreatedAt time.Time `json:"created_at"`
}
