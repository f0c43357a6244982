package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/terrasense/agrigate/internal/provider"
)

type fakeConversationStore struct {
	sessions map[string][]provider.ChatMessage
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{sessions: make(map[string][]provider.ChatMessage)}
}

func (s *fakeConversationStore) Load(ctx context.Context, key string) ([]provider.ChatMessage, error) {
	return s.sessions[key], nil
}

func (s *fakeConversationStore) Save(ctx context.Context, key string, messages []provider.ChatMessage, ttl time.Duration) error {
	s.sessions[key] = messages
	return nil
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	chat := NewChatService(provider.NewOpenRouter("", "", "", nil), newFakeConversationStore(), zap.NewNop())

	for _, question := range []string{"", "   ", "\n\t"} {
		_, err := chat.Ask(context.Background(), "session-1", question)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadRequest, apiErr.Status)
	}
}

func TestAskFallsBackWhenUnconfigured(t *testing.T) {
	chat := NewChatService(provider.NewOpenRouter("", "", "", nil), newFakeConversationStore(), zap.NewNop())

	reply, err := chat.Ask(context.Background(), "session-1", "Bonjour AgriBot !")
	require.NoError(t, err)
	require.Equal(t, "Bonjour ! Comment puis-je vous aider avec vos cultures aujourd'hui ?", reply)

	reply, err = chat.Ask(context.Background(), "session-1", "Des conseils sur l'IRRIGATION de mes champs ?")
	require.NoError(t, err)
	require.Contains(t, reply, "irrigation optimale")

	reply, err = chat.Ask(context.Background(), "session-1", "Quelle est la capitale de la France ?")
	require.NoError(t, err)
	require.Contains(t, reply, "Je ne suis pas sûr de comprendre")
}

func TestAskFallsBackWhenProviderFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	chat := NewChatService(provider.NewOpenRouter("test-key", srv.URL, "", nil), newFakeConversationStore(), zap.NewNop())

	reply, err := chat.Ask(context.Background(), "session-1", "Parlez-moi des engrais")
	require.NoError(t, err)
	require.Contains(t, reply, "engrais organiques")
}

func TestAskKeepsConversationMemory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "Réponse de test"}}]}`))
	}))
	t.Cleanup(srv.Close)

	store := newFakeConversationStore()
	chat := NewChatService(provider.NewOpenRouter("test-key", srv.URL, "", nil), store, zap.NewNop())

	reply, err := chat.Ask(context.Background(), "session-1", "Comment vont mes cultures ?")
	require.NoError(t, err)
	require.Equal(t, "Réponse de test", reply)

	saved := store.sessions["session-1"]
	require.Len(t, saved, 3)
	require.Equal(t, "system", saved[0].Role)
	require.True(t, strings.Contains(saved[0].Content, "AgriBot"))
	require.Equal(t, "user", saved[1].Role)
	require.Equal(t, "assistant", saved[2].Role)

	// Sessions are isolated.
	require.Empty(t, store.sessions["session-2"])
}

func TestTrimMemoryKeepsSystemAndRecentTurns(t *testing.T) {
	messages := []provider.ChatMessage{{Role: "system", Content: systemPrompt}}
	for i := 0; i < 15; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		messages = append(messages, provider.ChatMessage{Role: role, Content: strings.Repeat("x", i+1)})
	}

	trimmed := trimMemory(messages)
	require.Len(t, trimmed, maxMemoryTurns+1)
	require.Equal(t, "system", trimmed[0].Role)
	require.Equal(t, messages[len(messages)-1], trimmed[len(trimmed)-1])
	require.Equal(t, messages[len(messages)-maxMemoryTurns], trimmed[1])
}

func TestTrimMemoryNoopWhenShort(t *testing.T) {
	messages := []provider.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: "Bonjour"},
	}
	require.Equal(t, messages, trimMemory(messages))
}
