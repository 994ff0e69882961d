package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/et1613/chitchatproject-sub001/internal/models"
)

// TokenRepository is the durable source of truth for issued tokens and the
// revocation blacklist.
//
// Raw bearer values are hashed internally before they touch a query, so the
// store never sees plaintext tokens. Lookup methods return (nil, nil) when
// the row is absent; only infrastructure failures surface as errors.
type TokenRepository interface {
	// CreateToken stores a newly issued token (hashed at rest).
	CreateToken(ctx context.Context, token *models.Token) error

	// GetToken fetches a token by its raw bearer value and type.
	GetToken(ctx context.Context, rawToken string, typ models.TokenType) (*models.Token, error)

	// GetTokensByValue fetches every row carrying the raw bearer value,
	// regardless of type.
	GetTokensByValue(ctx context.Context, rawToken string) ([]*models.Token, error)

	// ListActiveBySubject returns the non-revoked tokens of a subject,
	// optionally narrowed to one type.
	ListActiveBySubject(ctx context.Context, subjectID string, typ *models.TokenType) ([]*models.Token, error)

	// UpdateUsage persists the usage counter and last-used fields.
	UpdateUsage(ctx context.Context, id uuid.UUID, usageCount int64, lastUsedAt time.Time, ip, agent string) error

	// RevokeToken sets revoked = TRUE with a reason. The row is kept for
	// audit until the cleanup sweep deletes it.
	RevokeToken(ctx context.Context, id uuid.UUID, reason string, at time.Time) error

	// RemoveToken deletes a single token row.
	RemoveToken(ctx context.Context, id uuid.UUID) error

	// ListSweepable returns a bounded batch of rows that are revoked or
	// expired before the cutoff, for the background sweep.
	ListSweepable(ctx context.Context, expiredBefore time.Time, limit int) ([]*models.Token, error)

	// Blacklist operations. BlacklistToken is keyed by the hashed bearer
	// value and is idempotent.
	BlacklistToken(ctx context.Context, tokenKey string) error
	IsTokenBlacklisted(ctx context.Context, tokenKey string) (bool, error)

	// RemoveBlacklistedBefore deletes up to limit blacklist entries added
	// before the cutoff, returning how many went away.
	RemoveBlacklistedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
