package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hospitalms/patient-portal/internal/hospital"
	"github.com/redis/go-redis/v9"
)

// Record is the durable part of a session. The appointment store lives in
// process memory and is rebuilt from the record when needed.
type Record struct {
	ID        string           `json:"id"`
	Patient   hospital.Patient `json:"patient"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// Repository persists session records.
type Repository interface {
	Save(ctx context.Context, rec Record, ttl time.Duration) error
	Load(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
}

const redisKeyPrefix = "portal:session:"

// RedisRepository stores session records as JSON values with a TTL.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository wraps a go-redis client.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func redisKey(id string) string { return redisKeyPrefix + id }

func (r *RedisRepository) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal record: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(rec.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: save record: %w", err)
	}
	return nil
}

func (r *RedisRepository) Load(ctx context.Context, id string) (Record, error) {
	data, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("session: load record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("session: decode record: %w", err)
	}
	return rec, nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("session: delete record: %w", err)
	}
	return nil
}

// MemoryRepository keeps records in process. Used when Redis is not configured.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rec     Record
	expires time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryRepository) Save(_ context.Context, rec Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = memoryEntry{rec: rec, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryRepository) Load(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if !m.now().Before(entry.expires) {
		delete(m.records, id)
		return Record{}, ErrNotFound
	}
	return entry.rec, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}
