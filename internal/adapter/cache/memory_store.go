package cache

import (
	"context"
	"sync"
	"time"

	"github.com/terrasense/agrigate/internal/provider"
	"github.com/terrasense/agrigate/internal/service"
)

// MemoryConversationStore is the in-process fallback used when Redis is not
// configured. Entries expire lazily on read.
type MemoryConversationStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	messages  []provider.ChatMessage
	expiresAt time.Time
}

var _ service.ConversationStore = (*MemoryConversationStore)(nil)

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryConversationStore) Load(ctx context.Context, key string) ([]provider.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}
	messages := make([]provider.ChatMessage, len(entry.messages))
	copy(messages, entry.messages)
	return messages, nil
}

func (s *MemoryConversationStore) Save(ctx context.Context, key string, messages []provider.ChatMessage, ttl time.Duration) error {
	stored := make([]provider.ChatMessage, len(messages))
	copy(stored, messages)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{messages: stored, expiresAt: time.Now().Add(ttl)}
	return nil
}
