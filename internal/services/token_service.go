package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/et1613/chitchatproject-sub001/internal/cache"
	"github.com/et1613/chitchatproject-sub001/internal/models"
	"github.com/et1613/chitchatproject-sub001/internal/repositories"
	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

// Expiry and cache policy defaults. URL tokens are short-lived links; access
// and session tokens ride out a whole client install.
const (
	DefaultAccessTokenTTL = 30 * 24 * time.Hour
	DefaultURLTokenTTL    = 7 * 24 * time.Hour
	DefaultCacheSliding   = 30 * time.Minute
	DefaultCacheAbsolute  = 1 * time.Hour
	DefaultMaxUsageCount  = 10000
)

// PresenceRevoker is the bridge into the connection registry: revoking a
// subject's tokens must also drop their live connections.
type PresenceRevoker interface {
	RevokeSessions(subjectID string) int
}

// TokenService orchestrates issuance, validation, rotation and revocation
// across the durable store, the cache and the blacklist.
//
// Expected negative outcomes (bad, expired, revoked, blacklisted tokens)
// come back as false with a nil error; only storage failures return errors.
type TokenService interface {
	Store(ctx context.Context, subjectID string, typ models.TokenType, token string, expiresAt *time.Time, metadata *models.TokenMetadata) (*models.Token, error)
	Validate(ctx context.Context, token string, typ models.TokenType, originIP, originAgent string) (bool, error)
	// Authenticate is Validate plus the resolved token row, for callers
	// that need the owning subject (the websocket endpoint).
	Authenticate(ctx context.Context, token string, typ models.TokenType, originIP, originAgent string) (*models.Token, bool, error)
	Revoke(ctx context.Context, token, reason string) error
	RevokeAllForSubject(ctx context.Context, subjectID string, typ *models.TokenType, reason string) (int, error)
	Rotate(ctx context.Context, oldToken, subjectID string, typ models.TokenType) (*models.Token, error)
}

type tokenService struct {
	repo     repositories.TokenRepository
	cache    *cache.Cache
	presence PresenceRevoker

	accessTTL     time.Duration
	urlTTL        time.Duration
	cacheSliding  time.Duration
	cacheAbsolute time.Duration
	maxUsage      int64
}

// TokenServiceOptions tunes token TTLs, cache TTLs and the usage ceiling;
// zero values fall back to the defaults above.
type TokenServiceOptions struct {
	AccessTokenTTL time.Duration
	URLTokenTTL    time.Duration
	CacheSliding   time.Duration
	CacheAbsolute  time.Duration
	MaxUsageCount  int64
}

func NewTokenService(repo repositories.TokenRepository, c *cache.Cache, presence PresenceRevoker, opts TokenServiceOptions) TokenService {
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if opts.URLTokenTTL <= 0 {
		opts.URLTokenTTL = DefaultURLTokenTTL
	}
	if opts.CacheSliding <= 0 {
		opts.CacheSliding = DefaultCacheSliding
	}
	if opts.CacheAbsolute <= 0 {
		opts.CacheAbsolute = DefaultCacheAbsolute
	}
	if opts.MaxUsageCount <= 0 {
		opts.MaxUsageCount = DefaultMaxUsageCount
	}
	return &tokenService{
		repo:          repo,
		cache:         c,
		presence:      presence,
		accessTTL:     opts.AccessTokenTTL,
		urlTTL:        opts.URLTokenTTL,
		cacheSliding:  opts.CacheSliding,
		cacheAbsolute: opts.CacheAbsolute,
		maxUsage:      opts.MaxUsageCount,
	}
}

// cache key spaces: one for token rows, one for blacklist membership.
func tokenCacheKey(typ models.TokenType, raw string) string {
	return cache.KeyFromStrings("token", string(typ), raw)
}

func blacklistCacheKey(tokenKey string) string {
	return cache.KeyFromStrings("blacklist", tokenKey)
}

// ---------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------

func (s *tokenService) Store(ctx context.Context, subjectID string, typ models.TokenType, token string, expiresAt *time.Time, metadata *models.TokenMetadata) (*models.Token, error) {
	now := time.Now().UTC()
	exp := now.Add(s.ttlFor(typ))
	if expiresAt != nil {
		exp = expiresAt.UTC()
	}

	t := &models.Token{
		ID:        uuid.New(),
		Token:     token,
		SubjectID: subjectID,
		Type:      typ,
		CreatedAt: now,
		ExpiresAt: exp,
		Metadata:  metadata,
	}
	if err := s.repo.CreateToken(ctx, t); err != nil {
		utils.Logger.WithError(err).Error("failed to persist issued token")
		return nil, fmt.Errorf("store token: %w", err)
	}

	cached := *t
	cached.Token = utils.HashToken(token)
	s.cache.Set(tokenCacheKey(typ, token), &cached, s.cacheSliding, s.cacheAbsolute)
	return t, nil
}

func (s *tokenService) ttlFor(typ models.TokenType) time.Duration {
	if typ == models.TokenTypeURL {
		return s.urlTTL
	}
	return s.accessTTL
}

// ---------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------

func (s *tokenService) Validate(ctx context.Context, token string, typ models.TokenType, originIP, originAgent string) (bool, error) {
	_, ok, err := s.Authenticate(ctx, token, typ, originIP, originAgent)
	return ok, err
}

func (s *tokenService) Authenticate(ctx context.Context, token string, typ models.TokenType, originIP, originAgent string) (*models.Token, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	tokenKey := utils.HashToken(token)

	// (a) blacklist dominates everything, including a stale cache entry
	// that still says "valid".
	blacklisted, err := s.isBlacklisted(ctx, tokenKey)
	if err != nil {
		return nil, false, fmt.Errorf("blacklist lookup: %w", err)
	}
	if blacklisted {
		s.cache.Delete(tokenCacheKey(typ, token))
		return nil, false, nil
	}

	// (b) cache fast path. Usage counters on this path are eventually
	// consistent: the increment lives on the cached copy and reaches the
	// store the next time the entry expires out of cache.
	if v, ok := s.cache.Get(tokenCacheKey(typ, token)); ok {
		cached, ok := v.(*models.Token)
		if ok && cached.Type == typ {
			if cached.Revoked || cached.IsExpired() || cached.UsageCount >= s.maxUsage {
				s.cache.Delete(tokenCacheKey(typ, token))
				return nil, false, nil
			}
			// copy-on-write so concurrent hits never mutate a
			// struct another goroutine is reading
			cp := *cached
			cp.UsageCount++
			now := time.Now().UTC()
			cp.LastUsedAt = &now
			cp.LastUsedIP = originIP
			cp.LastUsedAgent = originAgent
			s.cache.Set(tokenCacheKey(typ, token), &cp, s.cacheSliding, s.cacheAbsolute)
			return &cp, true, nil
		}
		s.cache.Delete(tokenCacheKey(typ, token))
	}

	// (c) authoritative store fallback.
	stored, err := s.repo.GetToken(ctx, token, typ)
	if err != nil {
		utils.Logger.WithError(err).Error("token store lookup failed during validation")
		return nil, false, fmt.Errorf("token lookup: %w", err)
	}
	if stored == nil {
		return nil, false, nil
	}
	if stored.Revoked || stored.IsExpired() {
		// a dead row must never validate again; blacklist it so the
		// decision survives cache churn.
		if err := s.blacklist(ctx, tokenKey); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if stored.UsageCount >= s.maxUsage {
		return nil, false, nil
	}

	stored.UsageCount++
	now := time.Now().UTC()
	stored.LastUsedAt = &now
	stored.LastUsedIP = originIP
	stored.LastUsedAgent = originAgent
	if err := s.repo.UpdateUsage(ctx, stored.ID, stored.UsageCount, now, originIP, originAgent); err != nil {
		utils.Logger.WithError(err).Error("failed to persist token usage")
		return nil, false, fmt.Errorf("update token usage: %w", err)
	}

	s.cache.Set(tokenCacheKey(typ, token), stored, s.cacheSliding, s.cacheAbsolute)
	return stored, true, nil
}

// ---------------------------------------------------------------------
// Revoke
// ---------------------------------------------------------------------

// Revoke marks every row carrying the bearer value revoked, evicts the
// cache entries and blacklists the token. Revoking an unknown or already
// revoked token is a no-op, not an error.
func (s *tokenService) Revoke(ctx context.Context, token, reason string) error {
	if token == "" {
		return nil
	}
	rows, err := s.repo.GetTokensByValue(ctx, token)
	if err != nil {
		utils.Logger.WithError(err).Error("token lookup failed during revocation")
		return fmt.Errorf("revoke lookup: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	tokenKey := utils.HashToken(token)
	now := time.Now().UTC()
	for _, row := range rows {
		if !row.Revoked {
			if err := s.repo.RevokeToken(ctx, row.ID, reason, now); err != nil {
				return fmt.Errorf("revoke token: %w", err)
			}
		}
		s.cache.Delete(tokenCacheKey(row.Type, token))
	}
	if err := s.blacklist(ctx, tokenKey); err != nil {
		return err
	}

	// drop live connections held under the revoked credential
	if s.presence != nil {
		seen := map[string]struct{}{}
		for _, row := range rows {
			if row.Type == models.TokenTypeURL {
				continue
			}
			if _, done := seen[row.SubjectID]; done {
				continue
			}
			seen[row.SubjectID] = struct{}{}
			s.presence.RevokeSessions(row.SubjectID)
		}
	}
	return nil
}

// RevokeAllForSubject bulk-revokes a subject's tokens. The blacklist write
// happens per row, immediately after each store update, so a concurrent
// validation never observes a half-revoked subject for longer than one
// revoke step.
func (s *tokenService) RevokeAllForSubject(ctx context.Context, subjectID string, typ *models.TokenType, reason string) (int, error) {
	rows, err := s.repo.ListActiveBySubject(ctx, subjectID, typ)
	if err != nil {
		utils.Logger.WithError(err).Error("subject token listing failed during bulk revocation")
		return 0, fmt.Errorf("revoke-all lookup: %w", err)
	}

	now := time.Now().UTC()
	revoked := 0
	for _, row := range rows {
		if err := s.repo.RevokeToken(ctx, row.ID, reason, now); err != nil {
			return revoked, fmt.Errorf("revoke token: %w", err)
		}
		if err := s.blacklist(ctx, row.Token); err != nil {
			return revoked, err
		}
		revoked++
	}

	if s.presence != nil {
		s.presence.RevokeSessions(subjectID)
	}
	return revoked, nil
}

// ---------------------------------------------------------------------
// Rotate
// ---------------------------------------------------------------------

// Rotate issues a replacement token and revokes the old one. Unlike Revoke,
// a missing or foreign old token is an error.
func (s *tokenService) Rotate(ctx context.Context, oldToken, subjectID string, typ models.TokenType) (*models.Token, error) {
	old, err := s.repo.GetToken(ctx, oldToken, typ)
	if err != nil {
		return nil, fmt.Errorf("rotate lookup: %w", err)
	}
	if old == nil || old.SubjectID != subjectID {
		return nil, utils.ErrTokenNotFound
	}

	replacement, err := s.Store(ctx, subjectID, typ, utils.GenerateSecureToken(64), nil, old.Metadata)
	if err != nil {
		return nil, err
	}
	if err := s.Revoke(ctx, oldToken, "rotated"); err != nil {
		return nil, err
	}
	return replacement, nil
}

// ---------------------------------------------------------------------
// Blacklist helpers
// ---------------------------------------------------------------------

func (s *tokenService) isBlacklisted(ctx context.Context, tokenKey string) (bool, error) {
	if _, ok := s.cache.Get(blacklistCacheKey(tokenKey)); ok {
		return true, nil
	}
	listed, err := s.repo.IsTokenBlacklisted(ctx, tokenKey)
	if err != nil {
		utils.Logger.WithError(err).Error("blacklist membership check failed")
		return false, err
	}
	if listed {
		s.cache.Set(blacklistCacheKey(tokenKey), true, 0, s.cacheAbsolute)
	}
	return listed, nil
}

func (s *tokenService) blacklist(ctx context.Context, tokenKey string) error {
	if err := s.repo.BlacklistToken(ctx, tokenKey); err != nil {
		utils.Logger.WithError(err).Error("failed to blacklist token")
		return fmt.Errorf("blacklist token: %w", err)
	}
	s.cache.Set(blacklistCacheKey(tokenKey), true, 0, s.cacheAbsolute)
	return nil
}
