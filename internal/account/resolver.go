package account

import (
	"context"
	"errors"
	"time"

	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/privacy"
	"go.uber.org/zap"
)

// TierStore is the durable source of tiers.
type TierStore interface {
	GetTier(ctx context.Context, userID string) (privacy.Tier, error)
}

// Cache is an optional read-through cache in front of a TierStore.
type Cache interface {
	Get(ctx context.Context, userID string) (privacy.Tier, bool)
	Set(ctx context.Context, userID string, tier privacy.Tier) error
}

const lookupTimeout = 2 * time.Second

// Resolver answers the premium question for a user. It never fails: any error resolves
// to the standard tier.
type Resolver struct {
	store       TierStore
	cache       Cache
	defaultTier privacy.Tier
	logger      *logger.Logger
}

// NewResolver creates a resolver. store and cache may be nil; without a store every user
// gets defaultTier.
func NewResolver(store TierStore, cache Cache, defaultTier privacy.Tier, log *logger.Logger) *Resolver {
	return &Resolver{
		store:       store,
		cache:       cache,
		defaultTier: defaultTier,
		logger:      log.WithComponent("tiers"),
	}
}

// Tier returns the tier of userID.
func (r *Resolver) Tier(ctx context.Context, userID string) privacy.Tier {
	if r.store == nil || userID == "" {
		return r.defaultTier
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	if r.cache != nil {
		if tier, ok := r.cache.Get(ctx, userID); ok {
			return tier
		}
	}

	tier, err := r.store.GetTier(ctx, userID)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		tier = r.defaultTier
	case err != nil:
		r.logger.Warn("Tier lookup failed, using standard tier", zap.Error(err))
		return privacy.TierStandard
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, userID, tier); err != nil {
			r.logger.Debug("Failed to cache tier", zap.Error(err))
		}
	}
	return tier
}
