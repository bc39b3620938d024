package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"PredPull/internal/domain/models"
	"PredPull/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// RedisCheckpointStore persists phase checkpoints in Redis. Keys are
// phase-scoped and last-write-wins; there is no cross-process coordination.
type RedisCheckpointStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCheckpointStore creates a Redis-backed checkpoint store.
func NewRedisCheckpointStore(client *redis.Client, prefix string, ttl time.Duration) *RedisCheckpointStore {
	if prefix == "" {
		prefix = "predpull"
	}
	return &RedisCheckpointStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisCheckpointStore) key(phase string) string {
	return fmt.Sprintf("%s:checkpoint:%s", s.prefix, phase)
}

func (s *RedisCheckpointStore) Save(ctx context.Context, cp *models.Checkpoint) error {
	if cp == nil || cp.Phase == "" {
		return fmt.Errorf("checkpoint phase required")
	}
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(cp.Phase), data, s.ttl).Err()
}

func (s *RedisCheckpointStore) Load(ctx context.Context, phase string) (*models.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(phase)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrCheckpointNotFound
		}
		return nil, err
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}

func (s *RedisCheckpointStore) Clear(ctx context.Context, phase string) error {
	return s.client.Del(ctx, s.key(phase)).Err()
}

// MemoryCheckpointStore keeps checkpoints in memory. Used in tests and when
// no Redis is configured (resume then survives phase restarts within one
// process only).
type MemoryCheckpointStore struct {
	mu sync.Mutex
	m  map[string]models.Checkpoint
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{m: make(map[string]models.Checkpoint)}
}

func (s *MemoryCheckpointStore) Save(ctx context.Context, cp *models.Checkpoint) error {
	if cp == nil || cp.Phase == "" {
		return fmt.Errorf("checkpoint phase required")
	}
	cp.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.m[cp.Phase] = *cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryCheckpointStore) Load(ctx context.Context, phase string) (*models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.m[phase]
	if !ok {
		return nil, repository.ErrCheckpointNotFound
	}
	out := cp
	return &out, nil
}

func (s *MemoryCheckpointStore) Clear(ctx context.Context, phase string) error {
	s.mu.Lock()
	delete(s.m, phase)
	s.mu.Unlock()
	return nil
}
