package account

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/privacy"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.GetDefaults().Accounts
	cfg.Driver = "sqlite"
	cfg.DSN = filepath.Join(t.TempDir(), "accounts.db")
	cfg.MaxOpenConns = 1

	store, err := NewStore(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("unknown account", func(t *testing.T) {
		if _, err := store.GetTier(ctx, "nobody"); !errors.Is(err, ErrAccountNotFound) {
			t.Errorf("Expected ErrAccountNotFound, got %v", err)
		}
	})

	t.Run("set and update", func(t *testing.T) {
		if err := store.SetTier(ctx, "alice", privacy.TierPremium); err != nil {
			t.Fatalf("SetTier failed: %v", err)
		}
		tier, err := store.GetTier(ctx, "alice")
		if err != nil || tier != privacy.TierPremium {
			t.Errorf("Expected premium, got %v (%v)", tier, err)
		}

		if err := store.SetTier(ctx, "alice", privacy.TierStandard); err != nil {
			t.Fatalf("SetTier failed: %v", err)
		}
		if tier, _ := store.GetTier(ctx, "alice"); tier != privacy.TierStandard {
			t.Errorf("Expected standard after update, got %v", tier)
		}
	})

	t.Run("list", func(t *testing.T) {
		_ = store.SetTier(ctx, "bob", privacy.TierPremium)
		accounts, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(accounts) != 2 || accounts[0].UserID != "alice" || accounts[1].Tier != "premium" {
			t.Errorf("Unexpected accounts %+v", accounts)
		}
	})
}

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	cfg := config.GetDefaults().Accounts
	cfg.Driver = "oracle"
	if _, err := NewStore(cfg, logger.Nop()); err == nil {
		t.Error("Expected an error for an unsupported driver")
	}
}

type fakeStore struct {
	tiers map[string]privacy.Tier
	err   error
	calls int
}

func (f *fakeStore) GetTier(_ context.Context, userID string) (privacy.Tier, error) {
	f.calls++
	if f.err != nil {
		return privacy.TierStandard, f.err
	}
	tier, ok := f.tiers[userID]
	if !ok {
		return privacy.TierStandard, ErrAccountNotFound
	}
	return tier, nil
}

type mapCache map[string]privacy.Tier

func (m mapCache) Get(_ context.Context, userID string) (privacy.Tier, bool) {
	tier, ok := m[userID]
	return tier, ok
}

func (m mapCache) Set(_ context.Context, userID string, tier privacy.Tier) error {
	m[userID] = tier
	return nil
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("no store uses the default tier", func(t *testing.T) {
		r := NewResolver(nil, nil, privacy.TierPremium, logger.Nop())
		if got := r.Tier(ctx, "alice"); got != privacy.TierPremium {
			t.Errorf("Expected premium, got %v", got)
		}
	})

	t.Run("stored tier", func(t *testing.T) {
		store := &fakeStore{tiers: map[string]privacy.Tier{"alice": privacy.TierPremium}}
		r := NewResolver(store, nil, privacy.TierStandard, logger.Nop())
		if got := r.Tier(ctx, "alice"); got != privacy.TierPremium {
			t.Errorf("Expected premium, got %v", got)
		}
		if got := r.Tier(ctx, "bob"); got != privacy.TierStandard {
			t.Errorf("Expected the default tier for unknown users, got %v", got)
		}
	})

	t.Run("errors fail safe to standard", func(t *testing.T) {
		store := &fakeStore{err: errors.New("connection refused")}
		r := NewResolver(store, nil, privacy.TierPremium, logger.Nop())
		if got := r.Tier(ctx, "alice"); got != privacy.TierStandard {
			t.Errorf("Expected standard on error, got %v", got)
		}
	})

	t.Run("read through cache", func(t *testing.T) {
		store := &fakeStore{tiers: map[string]privacy.Tier{"alice": privacy.TierPremium}}
		cache := mapCache{}
		r := NewResolver(store, cache, privacy.TierStandard, logger.Nop())

		r.Tier(ctx, "alice")
		r.Tier(ctx, "alice")
		if store.calls != 1 {
			t.Errorf("Expected one store lookup, got %d", store.calls)
		}
		if cache["alice"] != privacy.TierPremium {
			t.Error("Expected the tier to be cached")
		}
	})
}

func TestTierCacheKey(t *testing.T) {
	c := &TierCache{cfg: config.CacheConfig{KeyPrefix: "pdf-redactor:tier:"}}
	key := c.key("alice@example.com")
	if !strings.HasPrefix(key, "pdf-redactor:tier:") {
		t.Errorf("Missing prefix in %q", key)
	}
	if strings.Contains(key, "alice") {
		t.Errorf("Key must not contain the user id: %q", key)
	}
	if key != c.key("alice@example.com") {
		t.Error("Keys must be stable")
	}
}

func TestNewTierCacheBadURL(t *testing.T) {
	cfg := config.GetDefaults().Cache
	cfg.RedisURL = "not a url"
	if _, err := NewTierCache(cfg, logger.Nop()); err == nil {
		t.Error("Expected an error for an invalid Redis URL")
	}
}
