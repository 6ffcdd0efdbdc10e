package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedStore records which orders have already been finalized. It backs
// the at-most-once finalization guarantee across all signal channels (deep
// link, webview redirect, status poll) and across the app and the redirect
// bridge.
type ProcessedStore interface {
	// MarkProcessed atomically claims an order for finalization. Returns
	// true when this caller won the claim, false when the order was already
	// claimed.
	MarkProcessed(ctx context.Context, orderID string) (bool, error)

	// Release gives the claim back after a failed finalization so one retry
	// can go through.
	Release(ctx context.Context, orderID string) error
}

type redisProcessedStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (s *redisProcessedStore) MarkProcessed(ctx context.Context, orderID string) (bool, error) {
	key := s.prefix + ":" + orderID
	return s.client.SetNX(ctx, key, "1", s.ttl).Result()
}

func (s *redisProcessedStore) Release(ctx context.Context, orderID string) error {
	return s.client.Del(ctx, s.prefix+":"+orderID).Err()
}

type memoryProcessedStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryProcessedStore(ttl time.Duration) *memoryProcessedStore {
	now := time.Now()
	return &memoryProcessedStore{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (s *memoryProcessedStore) MarkProcessed(_ context.Context, orderID string) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.seen[orderID]; ok && exp.After(now) {
		return false, nil
	}

	s.seen[orderID] = now.Add(s.ttl)
	if now.After(s.nextGC) {
		for id, exp := range s.seen {
			if exp.Before(now) {
				delete(s.seen, id)
			}
		}
		s.nextGC = now.Add(s.ttl)
	}

	return true, nil
}

func (s *memoryProcessedStore) Release(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, orderID)
	return nil
}

// NewProcessedStore builds a Redis-backed store and falls back to in-memory
// when Redis is unreachable or unconfigured.
func NewProcessedStore(addr, pass string, db int, ttl time.Duration) (ProcessedStore, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if addr == "" {
		return newMemoryProcessedStore(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryProcessedStore(ttl), err
	}

	return &redisProcessedStore{
		client: client,
		prefix: "pay:finalized",
		ttl:    ttl,
	}, nil
}
