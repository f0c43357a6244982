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

// DefaultOpenWeatherBaseURL is the production API root.
const DefaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeather calls the OpenWeather current-weather and air-pollution APIs.
type OpenWeather struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenWeather constructs a client. An empty baseURL selects the production
// endpoint; a nil http client gets a 10s timeout default.
func NewOpenWeather(apiKey, baseURL string, client *http.Client) *OpenWeather {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherBaseURL
	}
	return &OpenWeather{apiKey: apiKey, baseURL: baseURL, httpClient: defaultClient(client)}
}

// Configured reports whether an API key is present.
func (c *OpenWeather) Configured() bool { return c.apiKey != "" }

// WeatherObservation is the subset of the OpenWeather response the gateway
// consumes.
type WeatherObservation struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain struct {
		OneHour    float64 `json:"1h"`
		ThreeHours float64 `json:"3h"`
	} `json:"rain"`
	Visibility int    `json:"visibility"`
	Name       string `json:"name"`
	Dt         int64  `json:"dt"`
	Timezone   int    `json:"timezone"`
}

// AirPollution mirrors the OpenWeather air_pollution payload.
type AirPollution struct {
	List []AirPollutionEntry `json:"list"`
}

// AirPollutionEntry is a single air-quality measurement.
type AirPollutionEntry struct {
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components map[string]float64 `json:"components"`
	Dt         int64              `json:"dt"`
}

// CurrentWeather fetches metric-unit current conditions for a coordinate.
func (c *OpenWeather) CurrentWeather(ctx context.Context, lat, lon float64) (*WeatherObservation, error) {
	var obs WeatherObservation
	if err := c.get(ctx, "/weather", coordQuery(lat, lon, true), &obs); err != nil {
		return nil, err
	}
	return &obs, nil
}

// AirQuality fetches the current air-pollution measurement for a coordinate.
func (c *OpenWeather) AirQuality(ctx context.Context, lat, lon float64) (*AirPollution, error) {
	var air AirPollution
	if err := c.get(ctx, "/air_pollution", coordQuery(lat, lon, false), &air); err != nil {
		return nil, err
	}
	return &air, nil
}

func coordQuery(lat, lon float64, metric bool) url.Values {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	if metric {
		q.Set("units", "metric")
	}
	return q
}

func (c *OpenWeather) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build openweather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openweather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read openweather response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &Error{Provider: "openweather", Status: resp.StatusCode, Message: "upstream error"}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode openweather response: %w", err)
	}
	return nil
}
