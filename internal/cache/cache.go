package cache

import (
	"context"
	"time"

	"shopflow/backend/internal/domain"
)

// ConfigCache holds the hot read-mostly configuration rows: the store
// settings used on every sale and the active loyalty program. Misses fall
// through to the repository; writes invalidate.
type ConfigCache interface {
	GetStoreConfig(ctx context.Context) (*domain.StoreConfig, bool, error)
	SetStoreConfig(ctx context.Context, cfg *domain.StoreConfig, ttl time.Duration) error
	GetLoyaltyConfig(ctx context.Context) (*domain.LoyaltyConfig, bool, error)
	SetLoyaltyConfig(ctx context.Context, cfg *domain.LoyaltyConfig, ttl time.Duration) error
	InvalidateStoreConfig(ctx context.Context) error
	InvalidateLoyaltyConfig(ctx context.Context) error
}

type NoopConfigCache struct{}

func (NoopConfigCache) GetStoreConfig(_ context.Context) (*domain.StoreConfig, bool, error) {
	return nil, false, nil
}

func (NoopConfigCache) SetStoreConfig(_ context.Context, _ *domain.StoreConfig, _ time.Duration) error {
	return nil
}

func (NoopConfigCache) GetLoyaltyConfig(_ context.Context) (*domain.LoyaltyConfig, bool, error) {
	return nil, false, nil
}

func (NoopConfigCache) SetLoyaltyConfig(_ context.Context, _ *domain.LoyaltyConfig, _ time.Duration) error {
	return nil
}

func (NoopConfigCache) InvalidateStoreConfig(_ context.Context) error {
	return nil
}

func (NoopConfigCache) InvalidateLoyaltyConfig(_ context.Context) error {
	return nil
}
