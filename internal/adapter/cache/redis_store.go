package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terrasense/agrigate/internal/provider"
	"github.com/terrasense/agrigate/internal/service"
)

const conversationKeyPrefix = "agribot:memory:"

// RedisConversationStore persists chat history in Redis with a TTL, so
// memory survives restarts and expires on its own.
type RedisConversationStore struct {
	client redis.UniversalClient
}

var _ service.ConversationStore = (*RedisConversationStore)(nil)

// NewRedisConversationStore constructs a Redis-backed store.
func NewRedisConversationStore(client redis.UniversalClient) *RedisConversationStore {
	return &RedisConversationStore{client: client}
}

// Load returns the stored conversation, or nil when the key is absent.
func (s *RedisConversationStore) Load(ctx context.Context, key string) ([]provider.ChatMessage, error) {
	bytes, err := s.client.Get(ctx, conversationKeyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	var messages []provider.ChatMessage
	if err := json.Unmarshal(bytes, &messages); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return messages, nil
}

// Save stores the conversation with the given TTL.
func (s *RedisConversationStore) Save(ctx context.Context, key string, messages []provider.ChatMessage, ttl time.Duration) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if err := s.client.Set(ctx, conversationKeyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist conversation: %w", err)
	}
	return nil
}
