package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/terrasense/agrigate/internal/provider"
)

const (
	systemPrompt = "Tu es AgriBot, un assistant agricole francophone expert en IA, en climat et en agriculture durable. Réponds de manière naturelle, polie et utile."

	// Memory keeps the system prompt plus the last maxMemoryTurns messages.
	maxMemoryTurns = 10

	memoryTTL = 30 * time.Minute
)

// ConversationStore persists per-session chat history.
type ConversationStore interface {
	Load(ctx context.Context, key string) ([]provider.ChatMessage, error)
	Save(ctx context.Context, key string, messages []provider.ChatMessage, ttl time.Duration) error
}

// ChatService answers AgriBot questions through OpenRouter, degrading to a
// keyword-rule responder when the provider is missing or failing.
type ChatService struct {
	llm    *provider.OpenRouter
	store  ConversationStore
	logger *zap.Logger
	tracer trace.Tracer
}

// NewChatService wires dependencies.
func NewChatService(llm *provider.OpenRouter, store ConversationStore, logger *zap.Logger) *ChatService {
	return &ChatService{
		llm:    llm,
		store:  store,
		logger: logger,
		tracer: otel.Tracer("github.com/terrasense/agrigate/internal/service"),
	}
}

// Configured reports whether the LLM provider has a key, for /health.
func (s *ChatService) Configured() bool { return s.llm.Configured() }

// Ask answers one user question within the session's conversation.
func (s *ChatService) Ask(ctx context.Context, sessionID, question string) (string, error) {
	ctx, span := s.startChatSpan(ctx, "ChatService.Ask")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return "", newAPIError(CodeValidation, "Je n'ai pas compris votre question. Pouvez-vous reformuler?", http.StatusBadRequest)
	}

	if !s.llm.Configured() {
		return fallbackReply(question), nil
	}

	messages, err := s.store.Load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		s.chatLog().Warn("conversation load failed", zap.String("session", sessionID), zap.Error(err))
	}
	if len(messages) == 0 {
		messages = []provider.ChatMessage{{Role: "system", Content: systemPrompt}}
	}
	messages = append(messages, provider.ChatMessage{Role: "user", Content: question})

	reply, err := s.llm.ChatCompletion(ctx, messages)
	if err != nil {
		span.RecordError(err)
		s.chatLog().Warn("openrouter failed, using local responder", zap.Error(err))
		return fallbackReply(question), nil
	}

	messages = append(messages, provider.ChatMessage{Role: "assistant", Content: reply})
	messages = trimMemory(messages)
	if err := s.store.Save(ctx, sessionID, messages, memoryTTL); err != nil {
		span.RecordError(err)
		s.chatLog().Warn("conversation save failed", zap.String("session", sessionID), zap.Error(err))
	}
	return reply, nil
}

// trimMemory keeps the system message plus the most recent turns.
func trimMemory(messages []provider.ChatMessage) []provider.ChatMessage {
	if len(messages) <= maxMemoryTurns+1 {
		return messages
	}
	trimmed := make([]provider.ChatMessage, 0, maxMemoryTurns+1)
	trimmed = append(trimmed, messages[0])
	trimmed = append(trimmed, messages[len(messages)-maxMemoryTurns:]...)
	return trimmed
}

// Ordered so the same question always hits the same rule.
var keywordReplies = []struct {
	keyword string
	reply   string
}{
	{"bonjour", "Bonjour ! Comment puis-je vous aider avec vos cultures aujourd'hui ?"},
	{"irrigation", "Pour une irrigation optimale, tenez compte de l'humidité du sol, des prévisions météo et des besoins spécifiques de vos cultures. Il est généralement préférable d'arroser moins souvent mais plus abondamment."},
	{"engrais", "Les engrais organiques comme le compost sont excellents pour améliorer la structure du sol. Pour les engrais chimiques, assurez-vous de respecter les dosages recommandés et d'analyser régulièrement votre sol."},
	{"rotation", "La rotation des cultures est essentielle pour maintenir la santé du sol et réduire les problèmes de ravageurs. Alternez les familles de plantes et incluez des légumineuses qui fixent l'azote."},
	{"bio", "L'agriculture biologique favorise la biodiversité et la santé des sols. Elle évite les pesticides et engrais de synthèse, privilégiant des méthodes naturelles de lutte contre les ravageurs et d'amélioration de la fertilité."},
}

func fallbackReply(question string) string {
	lowered := strings.ToLower(question)
	for _, rule := range keywordReplies {
		if strings.Contains(lowered, rule.keyword) {
			return rule.reply
		}
	}
	return "Je ne suis pas sûr de comprendre votre question. Pourriez-vous me demander quelque chose sur l'irrigation, les engrais, la rotation des cultures ou l'agriculture biologique ?"
}

func (s *ChatService) startChatSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *ChatService) chatLog() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
