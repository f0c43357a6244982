package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultOpenRouterBaseURL is the production API root.
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	// DefaultChatModel is cheap and fast enough for dashboard assistance.
	DefaultChatModel = "anthropic/claude-3-haiku"
)

// ChatMessage is a single turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenRouter calls the OpenRouter chat-completions API.
type OpenRouter struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOpenRouter(apiKey, baseURL, model string, client *http.Client) *OpenRouter {
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenRouter{apiKey: apiKey, baseURL: baseURL, model: model, httpClient: defaultClient(client)}
}

// Configured reports whether an API key is present.
func (c *OpenRouter) Configured() bool { return c.apiKey != "" }

// ChatCompletion sends the conversation and returns the assistant reply.
func (c *OpenRouter) ChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model":    c.model,
		"messages": messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", &Error{Provider: "openrouter", Status: resp.StatusCode, Message: "upstream error"}
	}

	var decoded struct {
		Choices []struct {
			Message ChatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
