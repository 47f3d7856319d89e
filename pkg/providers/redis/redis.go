// Package redis stores conversation memory and user profiles in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	memoryKeyPrefix  = "flowpilot:memory:"
	profileKeyPrefix = "flowpilot:profile:"

	// Older entries are trimmed so a conversation list never grows unbounded.
	maxMemoryEntries = 100
)

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// MemoryStore keeps each conversation's memory as a Redis list of JSON entries, newest first.
type MemoryStore struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewMemoryStore creates a memory store on client.
func NewMemoryStore(client redis.UniversalClient, logger *slog.Logger) *MemoryStore {
	return &MemoryStore{client: client, logger: logger.With("module", "redis_memory")}
}

// Append pushes an entry to the front of the conversation's memory.
func (s *MemoryStore) Append(ctx context.Context, conversationID string, entry models.MemoryEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal memory entry: %w", err)
	}

	key := memoryKeyPrefix + conversationID

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, body)
		pipe.LTrim(ctx, key, 0, maxMemoryEntries-1)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append memory entry: %w", err)
	}

	return nil
}

// RecentMemories returns up to limit entries, newest first. Undecodable entries are skipped.
func (s *MemoryStore) RecentMemories(ctx context.Context, conversationID string, limit int) ([]models.MemoryEntry, error) {
	if limit <= 0 {
		limit = maxMemoryEntries
	}

	raw, err := s.client.LRange(ctx, memoryKeyPrefix+conversationID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory: %w", err)
	}

	entries := make([]models.MemoryEntry, 0, len(raw))

	for _, item := range raw {
		var entry models.MemoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.logger.WarnContext(ctx, "Skipping undecodable memory entry",
				"conversation_id", conversationID, "error", err)

			continue
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// ProfileStore keeps each user profile as a Redis hash.
type ProfileStore struct {
	client redis.UniversalClient
}

// NewProfileStore creates a profile store on client.
func NewProfileStore(client redis.UniversalClient) *ProfileStore {
	return &ProfileStore{client: client}
}

// SetProfile writes the given attributes into the user's hash.
func (s *ProfileStore) SetProfile(ctx context.Context, userID string, attributes map[string]string) error {
	if len(attributes) == 0 {
		return nil
	}

	err := s.client.HSet(ctx, profileKeyPrefix+userID, attributes).Err()
	if err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}

	return nil
}

// Profile returns the user's attributes; an unknown user has an empty profile.
func (s *ProfileStore) Profile(ctx context.Context, userID string) (map[string]any, error) {
	values, err := s.client.HGetAll(ctx, profileKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	profile := make(map[string]any, len(values))
	for key, value := range values {
		profile[key] = value
	}

	return profile, nil
}
