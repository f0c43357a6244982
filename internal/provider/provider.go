// Package provider holds the outbound HTTP clients for the third-party data
// sources the gateway aggregates: OpenWeather, AgroMonitoring and OpenRouter.
package provider

import (
	"fmt"
	"net/http"
	"time"
)

const maxResponseBytes = 1 << 20

// Error reports an upstream failure together with the HTTP status the
// upstream returned, so callers can surface it instead of a generic 500.
type Error struct {
	Provider string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (status=%d)", e.Provider, e.Message, e.Status)
}

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: 10 * time.Second}
	}
	return client
}
