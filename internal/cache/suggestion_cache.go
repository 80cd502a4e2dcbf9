package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/triage-service/internal/domain"
)

// SuggestionCache stores ephemeral classifier suggestions. Entries
// expire; losing one only costs a classifier recomputation.
type SuggestionCache interface {
	Get(ctx context.Context, ticketID string) (*domain.Suggestion, bool)
	Set(ctx context.Context, suggestion *domain.Suggestion) error
}

type redisSuggestionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSuggestionCache builds a Redis-backed cache.
func NewRedisSuggestionCache(client *redis.Client, ttl time.Duration) SuggestionCache {
	return &redisSuggestionCache{client: client, ttl: ttl}
}

func suggestionKey(ticketID string) string {
	return "suggestion:" + ticketID
}

func (c *redisSuggestionCache) Get(ctx context.Context, ticketID string) (*domain.Suggestion, bool) {
	raw, err := c.client.Get(ctx, suggestionKey(ticketID)).Bytes()
	if err != nil {
		return nil, false
	}
	var suggestion domain.Suggestion
	if err := json.Unmarshal(raw, &suggestion); err != nil {
		return nil, false
	}
	return &suggestion, true
}

func (c *redisSuggestionCache) Set(ctx context.Context, suggestion *domain.Suggestion) error {
	if suggestion == nil {
		return errors.New("nil suggestion")
	}
	raw, err := json.Marshal(suggestion)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, suggestionKey(suggestion.TicketID), raw, c.ttl).Err()
}

type memoryEntry struct {
	suggestion domain.Suggestion
	expiresAt  time.Time
}

type memorySuggestionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

// NewMemorySuggestionCache builds the in-process fallback cache used
// when Redis is not configured.
func NewMemorySuggestionCache(ttl time.Duration) SuggestionCache {
	return &memorySuggestionCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *memorySuggestionCache) Get(ctx context.Context, ticketID string) (*domain.Suggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[ticketID]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, ticketID)
		return nil, false
	}
	suggestion := entry.suggestion
	return &suggestion, true
}

func (c *memorySuggestionCache) Set(ctx context.Context, suggestion *domain.Suggestion) error {
	if suggestion == nil {
		return errors.New("nil suggestion")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[suggestion.TicketID] = memoryEntry{
		suggestion: *suggestion,
		expiresAt:  time.Now().Add(c.ttl),
	}
	return nil
}
