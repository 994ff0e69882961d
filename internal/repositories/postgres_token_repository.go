package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/et1613/chitchatproject-sub001/internal/models"
	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

type postgresTokenRepository struct {
	db DB
}

func NewPostgresTokenRepository(db DB) TokenRepository {
	return &postgresTokenRepository{db: db}
}

const tokenColumns = `
	id, token_key, subject_id, token_type, created_at, expires_at,
	revoked, revoked_reason, revoked_at,
	usage_count, last_used_at, last_used_ip, last_used_agent, metadata
`

// ----------------------------
// Create / Get
// ----------------------------

func (r *postgresTokenRepository) CreateToken(ctx context.Context, token *models.Token) error {
	metadata, err := marshalMetadata(token.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tokens (id, token_key, subject_id, token_type, created_at, expires_at,
		                    revoked, revoked_reason, usage_count, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.Exec(ctx, query,
		token.ID,
		utils.HashToken(token.Token),
		token.SubjectID,
		token.Type,
		token.CreatedAt,
		token.ExpiresAt,
		token.Revoked,
		token.RevokedReason,
		token.UsageCount,
		metadata,
	)
	return err
}

func (r *postgresTokenRepository) GetToken(ctx context.Context, rawToken string, typ models.TokenType) (*models.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE token_key = $1 AND token_type = $2
	`
	row := r.db.QueryRow(ctx, query, utils.HashToken(rawToken), typ)

	t, err := scanToken(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTokenRepository) GetTokensByValue(ctx context.Context, rawToken string) ([]*models.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE token_key = $1
	`
	rows, err := r.db.Query(ctx, query, utils.HashToken(rawToken))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

func (r *postgresTokenRepository) ListActiveBySubject(ctx context.Context, subjectID string, typ *models.TokenType) ([]*models.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE subject_id = $1 AND revoked = FALSE
	`
	args := []interface{}{subjectID}
	if typ != nil {
		query += ` AND token_type = $2`
		args = append(args, *typ)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

// ----------------------------
// Mutations
// ----------------------------

func (r *postgresTokenRepository) UpdateUsage(ctx context.Context, id uuid.UUID, usageCount int64, lastUsedAt time.Time, ip, agent string) error {
	// revoked rows are immutable; the guard keeps a racing revoke from
	// being overwritten by a slow validation.
	query := `
		UPDATE tokens
		SET usage_count = $2, last_used_at = $3, last_used_ip = $4, last_used_agent = $5
		WHERE id = $1 AND revoked = FALSE
	`
	_, err := r.db.Exec(ctx, query, id, usageCount, lastUsedAt, ip, agent)
	return err
}

func (r *postgresTokenRepository) RevokeToken(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	query := `
		UPDATE tokens
		SET revoked = TRUE, revoked_reason = $2, revoked_at = $3
		WHERE id = $1 AND revoked = FALSE
	`
	_, err := r.db.Exec(ctx, query, id, reason, at)
	return err
}

func (r *postgresTokenRepository) RemoveToken(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM tokens WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *postgresTokenRepository) ListSweepable(ctx context.Context, expiredBefore time.Time, limit int) ([]*models.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE revoked = TRUE OR expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, expiredBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

// ----------------------------
// Blacklist
// ----------------------------

func (r *postgresTokenRepository) BlacklistToken(ctx context.Context, tokenKey string) error {
	query := `
		INSERT INTO blacklisted_tokens (id, token_key, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (token_key) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, uuid.New(), tokenKey)
	return err
}

func (r *postgresTokenRepository) IsTokenBlacklisted(ctx context.Context, tokenKey string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blacklisted_tokens WHERE token_key = $1
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, tokenKey).Scan(&exists)
	return exists, err
}

func (r *postgresTokenRepository) RemoveBlacklistedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM blacklisted_tokens
		WHERE id IN (
			SELECT id FROM blacklisted_tokens
			WHERE created_at < $1
			LIMIT $2
		)
	`
	tag, err := r.db.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ----------------------------
// Scanning helpers
// ----------------------------

func scanToken(row pgx.Row) (*models.Token, error) {
	var (
		t        models.Token
		metadata []byte
	)
	err := row.Scan(
		&t.ID,
		&t.Token,
		&t.SubjectID,
		&t.Type,
		&t.CreatedAt,
		&t.ExpiresAt,
		&t.Revoked,
		&t.RevokedReason,
		&t.RevokedAt,
		&t.UsageCount,
		&t.LastUsedAt,
		&t.LastUsedIP,
		&t.LastUsedAgent,
		&metadata,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		t.Metadata = &models.TokenMetadata{}
		if err := json.Unmarshal(metadata, t.Metadata); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func collectTokens(rows pgx.Rows) ([]*models.Token, error) {
	var out []*models.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func marshalMetadata(md *models.TokenMetadata) ([]byte, error) {
	if md == nil {
		return nil, nil
	}
	return json.Marshal(md)
}
