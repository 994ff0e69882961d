package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenType tags the purpose of an issued bearer token. The (token, type)
// pair is unique in the store.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeURL     TokenType = "url"
	TokenTypeSession TokenType = "session"
)

// ParseTokenType validates a wire-level type tag.
func ParseTokenType(raw string) (TokenType, bool) {
	switch TokenType(raw) {
	case TokenTypeAccess, TokenTypeURL, TokenTypeSession:
		return TokenType(raw), true
	}
	return "", false
}

// TokenMetadata is the structured metadata recorded at issuance time.
type TokenMetadata struct {
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	DeviceID  string            `json:"device_id,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Token represents an issued bearer token.
//
// The Token field holds the raw bearer value only between generation and
// persistence; repositories hash it at rest and return the hashed form.
// Once Revoked is set the row is immutable except for cleanup deletion.
type Token struct {
	ID            uuid.UUID      `json:"id"`
	Token         string         `json:"token"`
	SubjectID     string         `json:"subject_id"`
	Type          TokenType      `json:"type"`
	CreatedAt     time.Time      `json:"created_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
	Revoked       bool           `json:"revoked"`
	RevokedReason string         `json:"revoked_reason,omitempty"`
	RevokedAt     *time.Time     `json:"revoked_at,omitempty"`
	UsageCount    int64          `json:"usage_count"`
	LastUsedAt    *time.Time     `json:"last_used_at,omitempty"`
	LastUsedIP    string         `json:"last_used_ip,omitempty"`
	LastUsedAgent string         `json:"last_used_agent,omitempty"`
	Metadata      *TokenMetadata `json:"metadata,omitempty"`
}

func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
