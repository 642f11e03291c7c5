package cache

import (
	"context"
	"time"

	"warungpos/backend/internal/domain"
)

type ReceiptCache interface {
	Get(ctx context.Context, key string) (*domain.ReceiptView, bool, error)
	Set(ctx context.Context, key string, value *domain.ReceiptView, ttl time.Duration) error
}

type NoopReceiptCache struct{}

func (NoopReceiptCache) Get(_ context.Context, _ string) (*domain.ReceiptView, bool, error) {
	return nil, false, nil
}

func (NoopReceiptCache) Set(_ context.Context, _ string, _ *domain.ReceiptView, _ time.Duration) error {
	return nil
}
