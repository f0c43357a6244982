package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultAgroMonitoringBaseURL is the production API root. AgroMonitoring
// accepts the same API key as OpenWeather.
const DefaultAgroMonitoringBaseURL = "https://api.agromonitoring.com/agro/1.0"

// AgroMonitoring calls the AgroMonitoring soil API.
type AgroMonitoring struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewAgroMonitoring(apiKey, baseURL string, client *http.Client) *AgroMonitoring {
	if baseURL == "" {
		baseURL = DefaultAgroMonitoringBaseURL
	}
	return &AgroMonitoring{apiKey: apiKey, baseURL: baseURL, httpClient: defaultClient(client)}
}

// Configured reports whether an API key is present.
func (c *AgroMonitoring) Configured() bool { return c.apiKey != "" }

// SoilObservation carries the soil metrics the climate endpoint serves.
type SoilObservation struct {
	Moisture      float64 `json:"moisture"`
	NDVI          float64 `json:"ndvi"`
	Precipitation float64 `json:"precipitation"`
}

// SoilData fetches soil conditions for a coordinate.
func (c *AgroMonitoring) SoilData(ctx context.Context, lat, lon float64) (*SoilObservation, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/soil?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build agromonitoring request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agromonitoring request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read agromonitoring response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &Error{Provider: "agromonitoring", Status: resp.StatusCode, Message: "upstream error"}
	}

	var obs SoilObservation
	if err := json.Unmarshal(body, &obs); err != nil {
		return nil, fmt.Errorf("decode agromonitoring response: %w", err)
	}
	return &obs, nil
}
