// internal/router/pubmap.go
package router

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"intake-bot/internal/common/config"
	"intake-bot/internal/common/database"
)

// Publication map defaults. Review-channel messages older than the TTL can no
// longer be replied to through the relay, which keeps the map bounded across
// long uptimes.
const (
	DefaultPubMapTTL        = 7 * 24 * time.Hour
	DefaultPubMapMaxEntries = 4096
)

// PubMap maps a review-channel message ID to the applicant it concerns. Both
// the decision router and the live relay consult it to route button presses
// and reviewer replies back to the right applicant.
type PubMap interface {
	Put(ctx context.Context, messageID int, applicantID int64) error
	Get(ctx context.Context, messageID int) (int64, bool, error)
	Delete(ctx context.Context, messageID int) error
}

// NewPubMap selects the backend from configuration. The redis backend
// survives restarts; the memory backend is the zero-dependency default.
func NewPubMap(cfg config.PubMapConfig, redisClient *database.RedisClient) (PubMap, error) {
	ttl := time.Duration(cfg.TTL) * time.Millisecond
	if ttl <= 0 {
		ttl = DefaultPubMapTTL
	}

	switch cfg.Backend {
	case "", "memory":
		maxEntries := cfg.MaxEntries
		if maxEntries <= 0 {
			maxEntries = DefaultPubMapMaxEntries
		}
		return NewMemoryPubMap(ttl, maxEntries), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("pubmap backend redis requires a redis connection")
		}
		return NewRedisPubMap(redisClient, ttl), nil
	default:
		return nil, fmt.Errorf("unknown pubmap backend: %s", cfg.Backend)
	}
}

// ==========================
// Memory backend
// ==========================

type memoryEntry struct {
	applicantID int64
	storedAt    time.Time
}

// MemoryPubMap keeps entries in process memory with lazy TTL expiry and an
// entry cap. When full it evicts the oldest entry.
type MemoryPubMap struct {
	mu         sync.RWMutex
	entries    map[int]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryPubMap(ttl time.Duration, maxEntries int) *MemoryPubMap {
	return &MemoryPubMap{
		entries:    make(map[int]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryPubMap) Put(ctx context.Context, messageID int, applicantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.purgeExpired(now)

	if _, exists := m.entries[messageID]; !exists && len(m.entries) >= m.maxEntries {
		m.evictOldest()
	}

	m.entries[messageID] = memoryEntry{applicantID: applicantID, storedAt: now}
	return nil
}

func (m *MemoryPubMap) Get(ctx context.Context, messageID int) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[messageID]
	if !ok || m.now().Sub(entry.storedAt) >= m.ttl {
		return 0, false, nil
	}
	return entry.applicantID, true, nil
}

func (m *MemoryPubMap) Delete(ctx context.Context, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, messageID)
	return nil
}

// Len reports the live entry count.
func (m *MemoryPubMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

func (m *MemoryPubMap) purgeExpired(now time.Time) {
	for id, entry := range m.entries {
		if now.Sub(entry.storedAt) >= m.ttl {
			delete(m.entries, id)
		}
	}
}

func (m *MemoryPubMap) evictOldest() {
	var oldestID int
	var oldestAt time.Time
	first := true

	for id, entry := range m.entries {
		if first || entry.storedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = entry.storedAt
			first = false
		}
	}
	if !first {
		delete(m.entries, oldestID)
	}
}

// ==========================
// Redis backend
// ==========================

// RedisPubMap stores entries under the client's key prefix with a server-side
// TTL, so routing state survives process restarts.
type RedisPubMap struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisPubMap(client *database.RedisClient, ttl time.Duration) *RedisPubMap {
	return &RedisPubMap{
		client: client,
		ttl:    ttl,
	}
}

func (m *RedisPubMap) Put(ctx context.Context, messageID int, applicantID int64) error {
	if err := m.client.Set(ctx, m.key(messageID), strconv.FormatInt(applicantID, 10), m.ttl); err != nil {
		return fmt.Errorf("failed to store publication entry: %w", err)
	}
	return nil
}

func (m *RedisPubMap) Get(ctx context.Context, messageID int) (int64, bool, error) {
	value, err := m.client.Get(ctx, m.key(messageID))
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read publication entry: %w", err)
	}

	applicantID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt publication entry for message %d: %w", messageID, err)
	}
	return applicantID, true, nil
}

func (m *RedisPubMap) Delete(ctx context.Context, messageID int) error {
	if err := m.client.Del(ctx, m.key(messageID)); err != nil {
		return fmt.Errorf("failed to delete publication entry: %w", err)
	}
	return nil
}

func (m *RedisPubMap) key(messageID int) string {
	return "pubmap:" + strconv.Itoa(messageID)
}
