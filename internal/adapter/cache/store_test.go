package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/terrasense/agrigate/internal/adapter/cache"
	"github.com/terrasense/agrigate/internal/provider"
)

func sampleConversation() []provider.ChatMessage {
	return []provider.ChatMessage{
		{Role: "system", Content: "Tu es AgriBot."},
		{Role: "user", Content: "Bonjour"},
		{Role: "assistant", Content: "Bonjour ! Comment puis-je vous aider ?"},
	}
}

func TestRedisConversationStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisConversationStore(client)

	messages := sampleConversation()
	require.NoError(t, store.Save(ctx, "session-1", messages, 30*time.Minute))

	loaded, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, messages, loaded)
}

func TestRedisConversationStoreMissingKey(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisConversationStore(client)

	loaded, err := store.Load(ctx, "no-such-session")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRedisConversationStoreExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisConversationStore(client)

	require.NoError(t, store.Save(ctx, "session-1", sampleConversation(), 30*time.Minute))

	mr.FastForward(31 * time.Minute)

	loaded, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestMemoryConversationStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryConversationStore()

	messages := sampleConversation()
	require.NoError(t, store.Save(ctx, "session-1", messages, 30*time.Minute))

	loaded, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, messages, loaded)

	// The returned slice is a copy; mutating it does not touch the store.
	loaded[0].Content = "overwritten"
	again, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, "Tu es AgriBot.", again[0].Content)
}

func TestMemoryConversationStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryConversationStore()

	require.NoError(t, store.Save(ctx, "session-1", sampleConversation(), -time.Second))

	loaded, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	require.Nil(t, loaded)
}
