package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FolioPulse/internal/domain/repository"
	"FolioPulse/pkg/cache"
)

// KVStorage implements repository.Storage over any cache backend. Keys are
// namespaced under a root key and never expire.
type KVStorage struct {
	backend   cache.Service
	root      string
	opTimeout time.Duration
}

// NewKVStorage wraps backend. A zero opTimeout disables per-call deadlines.
func NewKVStorage(backend cache.Service, root string, opTimeout time.Duration) *KVStorage {
	return &KVStorage{backend: backend, root: root, opTimeout: opTimeout}
}

var _ repository.Storage = (*KVStorage)(nil)

func (s *KVStorage) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.backend.Get(ctx, cache.GenerateKey(s.root, key), dest)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage get %s: %w", key, err)
	}
	return true, nil
}

func (s *KVStorage) Set(ctx context.Context, key string, value interface{}) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.backend.Set(ctx, cache.GenerateKey(s.root, key), value, 0); err != nil {
		return fmt.Errorf("storage set %s: %w", key, err)
	}
	return nil
}

func (s *KVStorage) Remove(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.backend.Delete(ctx, cache.GenerateKey(s.root, key)); err != nil {
		return fmt.Errorf("storage remove %s: %w", key, err)
	}
	return nil
}

func (s *KVStorage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}
