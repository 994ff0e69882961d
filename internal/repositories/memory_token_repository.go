package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/et1613/chitchatproject-sub001/internal/models"
	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

// MemoryTokenRepository is an in-process TokenRepository used by unit tests
// and local development. It mirrors the Postgres implementation's semantics,
// including hash-at-rest and (nil, nil) on missing rows.
type MemoryTokenRepository struct {
	mu        sync.RWMutex
	tokens    map[uuid.UUID]*models.Token // Token field holds the hashed value
	blacklist map[string]time.Time        // token key -> added at
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{
		tokens:    make(map[uuid.UUID]*models.Token),
		blacklist: make(map[string]time.Time),
	}
}

func (r *MemoryTokenRepository) CreateToken(_ context.Context, token *models.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *token
	stored.Token = utils.HashToken(token.Token)
	r.tokens[stored.ID] = &stored
	return nil
}

func (r *MemoryTokenRepository) GetToken(_ context.Context, rawToken string, typ models.TokenType) (*models.Token, error) {
	key := utils.HashToken(rawToken)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tokens {
		if t.Token == key && t.Type == typ {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryTokenRepository) GetTokensByValue(_ context.Context, rawToken string) ([]*models.Token, error) {
	key := utils.HashToken(rawToken)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Token
	for _, t := range r.tokens {
		if t.Token == key {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryTokenRepository) ListActiveBySubject(_ context.Context, subjectID string, typ *models.TokenType) ([]*models.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Token
	for _, t := range r.tokens {
		if t.SubjectID != subjectID || t.Revoked {
			continue
		}
		if typ != nil && t.Type != *typ {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryTokenRepository) UpdateUsage(_ context.Context, id uuid.UUID, usageCount int64, lastUsedAt time.Time, ip, agent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.Revoked {
		return nil
	}
	t.UsageCount = usageCount
	at := lastUsedAt
	t.LastUsedAt = &at
	t.LastUsedIP = ip
	t.LastUsedAgent = agent
	return nil
}

func (r *MemoryTokenRepository) RevokeToken(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.Revoked {
		return nil
	}
	t.Revoked = true
	t.RevokedReason = reason
	ts := at
	t.RevokedAt = &ts
	return nil
}

func (r *MemoryTokenRepository) RemoveToken(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, id)
	return nil
}

func (r *MemoryTokenRepository) ListSweepable(_ context.Context, expiredBefore time.Time, limit int) ([]*models.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Token
	for _, t := range r.tokens {
		if !t.Revoked && !t.ExpiresAt.Before(expiredBefore) {
			continue
		}
		cp := *t
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryTokenRepository) BlacklistToken(_ context.Context, tokenKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blacklist[tokenKey]; !ok {
		r.blacklist[tokenKey] = time.Now()
	}
	return nil
}

func (r *MemoryTokenRepository) IsTokenBlacklisted(_ context.Context, tokenKey string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.blacklist[tokenKey]
	return ok, nil
}

func (r *MemoryTokenRepository) RemoveBlacklistedBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for key, added := range r.blacklist {
		if !added.Before(cutoff) {
			continue
		}
		delete(r.blacklist, key)
		removed++
		if removed == int64(limit) {
			break
		}
	}
	return removed, nil
}

// SetBlacklistedAt backdates a blacklist entry; test helper for the
// retention sweep.
func (r *MemoryTokenRepository) SetBlacklistedAt(tokenKey string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blacklist[tokenKey] = at
}

var _ TokenRepository = (*MemoryTokenRepository)(nil)
