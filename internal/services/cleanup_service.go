package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgconn"

	"github.com/et1613/chitchatproject-sub001/internal/repositories"
	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

// ────────────────────────────────────────────────────────────
// Retry policy – one retry on transient network errors (EOF,
// closed-connection) with a small back-off.
// ────────────────────────────────────────────────────────────
const cleanupRetryDelay = 3 * time.Second

// Sweep sizing and retention defaults.
const (
	DefaultSweepBatchSize     = 500
	DefaultBlacklistRetention = 7 * 24 * time.Hour
	DefaultExpiryGrace        = 24 * time.Hour
	DefaultIdleThreshold      = 30 * time.Minute
)

// InactiveSessionCleaner is the slice of the connection registry the sweep
// needs.
type InactiveSessionCleaner interface {
	CleanupInactive(idleThreshold time.Duration) int
}

// CleanupService runs the periodic sweep: expired/revoked tokens are
// blacklisted and deleted in bounded batches, stale blacklist entries are
// pruned, and idle sessions are dropped. A failure in one step is logged
// and does not abort the others.
type CleanupService interface {
	Sweep(ctx context.Context) error
}

type cleanupService struct {
	repo     repositories.TokenRepository
	registry InactiveSessionCleaner

	batchSize          int
	blacklistRetention time.Duration
	expiryGrace        time.Duration
	idleThreshold      time.Duration
}

// CleanupOptions tunes the sweep; zero values fall back to defaults.
type CleanupOptions struct {
	BatchSize          int
	BlacklistRetention time.Duration
	ExpiryGrace        time.Duration
	IdleThreshold      time.Duration
}

func NewCleanupService(repo repositories.TokenRepository, registry InactiveSessionCleaner, opts CleanupOptions) CleanupService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultSweepBatchSize
	}
	if opts.BlacklistRetention <= 0 {
		opts.BlacklistRetention = DefaultBlacklistRetention
	}
	if opts.ExpiryGrace <= 0 {
		opts.ExpiryGrace = DefaultExpiryGrace
	}
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = DefaultIdleThreshold
	}
	return &cleanupService{
		repo:               repo,
		registry:           registry,
		batchSize:          opts.BatchSize,
		blacklistRetention: opts.BlacklistRetention,
		expiryGrace:        opts.ExpiryGrace,
		idleThreshold:      opts.IdleThreshold,
	}
}

// runWithRetry executes op(ctx) and, if it returns a transient network
// error (EOF, pgconn safe-to-retry, or the common closed-connection
// message), waits a moment then retries once.
func (s *cleanupService) runWithRetry(
	ctx context.Context,
	op func(context.Context) error,
) error {
	if err := op(ctx); err != nil {
		if errors.Is(err, io.EOF) || pgconn.SafeToRetry(err) ||
			strings.Contains(err.Error(), "connection was closed") {
			utils.Logger.WithError(err).Warn("cleanup sweep hit transient DB error; retrying once")
			time.Sleep(cleanupRetryDelay)
			return op(ctx)
		}
		return err
	}
	return nil
}

// Sweep runs all three passes. It returns the combined error for the
// caller's logs, but every pass always gets its chance to run.
func (s *cleanupService) Sweep(ctx context.Context) error {
	logger := utils.Logger
	var errs []error

	// 1) expired / revoked token rows
	if err := s.runWithRetry(ctx, s.sweepTokens); err != nil {
		logger.WithError(err).Error("Failed to sweep expired/revoked tokens")
		errs = append(errs, err)
	}

	// 2) blacklist retention
	if err := s.runWithRetry(ctx, s.pruneBlacklist); err != nil {
		logger.WithError(err).Error("Failed to prune blacklist")
		errs = append(errs, err)
	}

	// 3) idle live sessions
	if removed := s.registry.CleanupInactive(s.idleThreshold); removed > 0 {
		logger.Infof("Removed %d inactive sessions", removed)
	}

	if len(errs) == 0 {
		logger.Info("Cleanup sweep completed successfully.")
	}
	return errors.Join(errs...)
}

// sweepTokens blacklists then deletes dead rows in bounded batches so no
// single pass holds the store for long. Cancellation is honored between
// batches, never mid-batch.
func (s *cleanupService) sweepTokens(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.expiryGrace)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := s.repo.ListSweepable(ctx, cutoff, s.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for _, t := range batch {
			// t.Token already carries the at-rest hash, which is
			// exactly the blacklist key.
			if err := s.repo.BlacklistToken(ctx, t.Token); err != nil {
				return err
			}
			if err := s.repo.RemoveToken(ctx, t.ID); err != nil {
				return err
			}
		}
		if len(batch) < s.batchSize {
			return nil
		}
	}
}

func (s *cleanupService) pruneBlacklist(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.blacklistRetention)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		removed, err := s.repo.RemoveBlacklistedBefore(ctx, cutoff, s.batchSize)
		if err != nil {
			return err
		}
		if removed < int64(s.batchSize) {
			return nil
		}
	}
}
