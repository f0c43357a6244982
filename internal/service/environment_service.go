package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/terrasense/agrigate/internal/provider"
)

// WeatherReport is the formatted current-weather payload.
type WeatherReport struct {
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feels_like"`
	Humidity      float64 `json:"humidity"`
	Pressure      float64 `json:"pressure"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection float64 `json:"windDirection"`
	City          string  `json:"city"`
	Visibility    int     `json:"visibility"`
	Clouds        float64 `json:"clouds"`
	Timestamp     int64   `json:"timestamp"`
	Timezone      int     `json:"timezone"`
}

// AirQualityReport enriches the raw AQI with category and advice.
type AirQualityReport struct {
	AQI            int                `json:"aqi"`
	Category       string             `json:"category"`
	Components     map[string]float64 `json:"components"`
	Timestamp      int64              `json:"timestamp"`
	Description    string             `json:"description,omitempty"`
	Recommendation string             `json:"recommendation,omitempty"`
}

// ClimateReport carries field-level soil conditions.
type ClimateReport struct {
	SoilMoisture  float64 `json:"soilMoisture"`
	NDVI          float64 `json:"ndvi"`
	Precipitation float64 `json:"precipitation"`
}

// SoilReport is the heuristic soil-analysis payload.
type SoilReport struct {
	PHLevel         float64  `json:"ph_level"`
	Nitrogen        float64  `json:"nitrogen"`
	Phosphorus      float64  `json:"phosphorus"`
	Potassium       float64  `json:"potassium"`
	OrganicMatter   float64  `json:"organic_matter"`
	Recommendations []string `json:"recommendations"`
}

// CropForecast is a per-crop yield estimate.
type CropForecast struct {
	Yield      float64  `json:"yield"`
	Confidence float64  `json:"confidence"`
	Factors    []string `json:"factors"`
}

// IrrigationRequest parameterizes the irrigation optimizer.
type IrrigationRequest struct {
	FieldSize float64 `json:"field_size"`
	CropType  string  `json:"crop_type"`
	SoilType  string  `json:"soil_type"`
}

// IrrigationPlan is the optimizer output.
type IrrigationPlan struct {
	DailyWaterNeeds float64  `json:"daily_water_needs"`
	VolumePerDay    float64  `json:"volume_per_day"`
	Recommendations []string `json:"recommendations"`
	EfficiencyScore int      `json:"efficiency_score"`
}

// EnvironmentService formats and aggregates third-party environmental data.
// Provider failures degrade to locally computed fallbacks or a typed error,
// never to an unhandled fault.
type EnvironmentService struct {
	weather *provider.OpenWeather
	agro    *provider.AgroMonitoring
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewEnvironmentService wires dependencies.
func NewEnvironmentService(weather *provider.OpenWeather, agro *provider.AgroMonitoring, logger *zap.Logger) *EnvironmentService {
	return &EnvironmentService{
		weather: weather,
		agro:    agro,
		logger:  logger,
		tracer:  otel.Tracer("github.com/terrasense/agrigate/internal/service"),
		now:     time.Now,
	}
}

// Weather proxies current conditions for a coordinate.
func (s *EnvironmentService) Weather(ctx context.Context, lat, lon float64) (WeatherReport, error) {
	ctx, span := s.startEnvSpan(ctx, "EnvironmentService.Weather")
	defer span.End()

	obs, err := s.currentWeather(ctx, lat, lon)
	if err != nil {
		span.RecordError(err)
		return WeatherReport{}, err
	}

	report := WeatherReport{
		Temperature:   obs.Main.Temp,
		FeelsLike:     obs.Main.FeelsLike,
		Humidity:      obs.Main.Humidity,
		Pressure:      obs.Main.Pressure,
		WindSpeed:     obs.Wind.Speed,
		WindDirection: obs.Wind.Deg,
		City:          obs.Name,
		Visibility:    obs.Visibility,
		Clouds:        obs.Clouds.All,
		Timestamp:     obs.Dt,
		Timezone:      obs.Timezone,
	}
	if len(obs.Weather) > 0 {
		report.Description = obs.Weather[0].Description
		report.Icon = obs.Weather[0].Icon
	}
	return report, nil
}

// AirQuality proxies the air-pollution measurement and classifies the AQI.
func (s *EnvironmentService) AirQuality(ctx context.Context, lat, lon float64) (AirQualityReport, error) {
	ctx, span := s.startEnvSpan(ctx, "EnvironmentService.AirQuality")
	defer span.End()

	if !s.weather.Configured() {
		return AirQualityReport{}, weatherUnconfigured()
	}

	air, err := s.weather.AirQuality(ctx, lat, lon)
	if err != nil {
		span.RecordError(err)
		return AirQualityReport{}, mapProviderError(err)
	}
	if len(air.List) == 0 {
		return AirQualityReport{}, newAPIError(CodeNotFound, "Données de qualité d'air non disponibles", http.StatusNotFound)
	}

	entry := air.List[0]
	report := AirQualityReport{
		AQI:        entry.Main.AQI,
		Category:   aqiCategory(entry.Main.AQI),
		Components: pollutantComponents(entry.Components),
		Timestamp:  entry.Dt,
	}
	report.Description, report.Recommendation = aqiAdvice(entry.Main.AQI)
	return report, nil
}

// Climate resolves soil conditions for a field polygon. AgroMonitoring is
// preferred; on failure a deterministic weather-derived estimate is served.
func (s *EnvironmentService) Climate(ctx context.Context, polygon [][]float64) (ClimateReport, error) {
	ctx, span := s.startEnvSpan(ctx, "EnvironmentService.Climate")
	defer span.End()

	if len(polygon) == 0 {
		return ClimateReport{}, newAPIError(CodeValidation, "Coordonnées du polygone requises", http.StatusBadRequest)
	}
	for _, point := range polygon {
		if len(point) < 2 {
			return ClimateReport{}, newAPIError(CodeValidation, "Coordonnées du polygone requises", http.StatusBadRequest)
		}
	}

	// Points are [lon, lat] pairs; the centroid stands in for the field.
	var sumLat, sumLon float64
	for _, point := range polygon {
		sumLon += point[0]
		sumLat += point[1]
	}
	lat := sumLat / float64(len(polygon))
	lon := sumLon / float64(len(polygon))

	if s.agro.Configured() {
		soil, err := s.agro.SoilData(ctx, lat, lon)
		if err == nil {
			return ClimateReport{
				SoilMoisture:  soil.Moisture,
				NDVI:          soil.NDVI,
				Precipitation: soil.Precipitation,
			}, nil
		}
		span.RecordError(err)
		s.log().Warn("agromonitoring failed, falling back to weather estimate", zap.Error(err))
	}

	return s.climateFromWeather(ctx, lat, lon)
}

// climateFromWeather estimates soil conditions from current weather when the
// agricultural API is unavailable.
func (s *EnvironmentService) climateFromWeather(ctx context.Context, lat, lon float64) (ClimateReport, error) {
	obs, err := s.currentWeather(ctx, lat, lon)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == CodeUnavailable {
			return ClimateReport{}, apiErr
		}
		return ClimateReport{}, newAPIError(CodeUnavailable, "Erreur génération données climat", http.StatusServiceUnavailable)
	}

	humidity := obs.Main.Humidity
	pressure := obs.Main.Pressure
	clouds := obs.Clouds.All

	// Atmospheric humidity corrected by pressure approximates soil moisture.
	soilMoisture := clamp(humidity-10+(pressure-1013)/10, 20, 70)

	// NDVI estimate from cloud cover and growing season.
	seasonFactor := 0.5
	if month := int(s.now().Month()); month >= 4 && month <= 9 {
		seasonFactor = 0.8
	}
	ndvi := (1 - clouds/200) * seasonFactor

	precipitation := obs.Rain.ThreeHours
	if precipitation <= 0 {
		precipitation = obs.Rain.OneHour * 3
	}

	return ClimateReport{
		SoilMoisture:  round1(soilMoisture),
		NDVI:          round2(ndvi),
		Precipitation: round1(precipitation),
	}, nil
}

// SoilAnalysis derives a nutrient profile from weather and air-quality data.
func (s *EnvironmentService) SoilAnalysis(ctx context.Context, lat, lon float64) (SoilReport, error) {
	ctx, span := s.startEnvSpan(ctx, "EnvironmentService.SoilAnalysis")
	defer span.End()

	obs, err := s.currentWeather(ctx, lat, lon)
	if err != nil {
		span.RecordError(err)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == CodeUnavailable {
			return SoilReport{}, apiErr
		}
		return SoilReport{}, newAPIError(CodeUnavailable, "Erreur analyse de sol", http.StatusServiceUnavailable)
	}

	temp := obs.Main.Temp
	humidity := obs.Main.Humidity
	wind := obs.Wind.Speed
	rainMM := obs.Rain.OneHour

	// Pollution factors are best-effort; the analysis proceeds without them.
	var so2 float64
	if air, airErr := s.weather.AirQuality(ctx, lat, lon); airErr == nil && len(air.List) > 0 {
		so2 = air.List[0].Components["so2"]
	}

	// pH shifts down with rain and SO2 acidification.
	phRainFactor := 0.0
	if rainMM > 0 {
		phRainFactor = -0.02 * rainMM
	}
	phLevel := round1(clamp(6.8+phRainFactor-0.01*(so2/10), 5.5, 7.5))

	// Nitrogen tracks humidity and microbial activity from temperature.
	nitrogen := round2(clamp(0.25+0.1*(humidity/100)+0.05*((temp-10)/20), 0.1, 0.6))

	// Phosphorus availability peaks around pH 6.5.
	phosphorus := round1(clamp(25+5*(1-math.Abs(phLevel-6.5)/2), 10, 50))

	// Potassium gains from humidity, loses to wind erosion.
	potassium := round1(clamp(150+20*(humidity/100)-5*(wind/5), 100, 300))

	organicSeason := -0.5
	if month := int(s.now().Month()); month >= 3 && month <= 10 {
		organicSeason = 0.5
	}
	organicMatter := round1(clamp(3.0+organicSeason, 1.5, 6.0))

	var recommendations []string
	switch {
	case phLevel < 6.0:
		recommendations = append(recommendations, "Le sol est acide, envisager un chaulage pour augmenter le pH")
	case phLevel > 7.2:
		recommendations = append(recommendations, "Le sol est alcalin, privilégier des cultures adaptées ou des amendements acidifiants")
	}
	switch {
	case nitrogen < 0.2:
		recommendations = append(recommendations, "Niveau d'azote faible, envisager un apport d'engrais azotés ou de légumineuses")
	case nitrogen > 0.4:
		recommendations = append(recommendations, "Bon niveau d'azote, limiter les apports supplémentaires")
	}
	switch {
	case humidity > 70:
		recommendations = append(recommendations, "Humidité élevée, surveiller les risques de maladies fongiques")
	case humidity < 40:
		recommendations = append(recommendations, "Conditions sèches, optimiser l'irrigation")
	}
	if len(recommendations) > 3 {
		recommendations = recommendations[:3]
	}
	if len(recommendations) < 2 {
		recommendations = append(recommendations, "Surveiller les conditions météo et ajuster les pratiques culturales en conséquence")
	}

	return SoilReport{
		PHLevel:         phLevel,
		Nitrogen:        nitrogen,
		Phosphorus:      phosphorus,
		Potassium:       potassium,
		OrganicMatter:   organicMatter,
		Recommendations: recommendations,
	}, nil
}

// CropPrediction simulates per-crop yield forecasts.
func (s *EnvironmentService) CropPrediction(ctx context.Context) map[string]CropForecast {
	_, span := s.startEnvSpan(ctx, "EnvironmentService.CropPrediction")
	defer span.End()

	return map[string]CropForecast{
		"wheat": {
			Yield:      uniform(4.5, 7.2),
			Confidence: uniform(0.65, 0.95),
			Factors:    []string{"temperature", "rainfall", "soil quality"},
		},
		"corn": {
			Yield:      uniform(6.5, 12.0),
			Confidence: uniform(0.7, 0.92),
			Factors:    []string{"temperature", "rainfall", "nitrogen"},
		},
		"soybean": {
			Yield:      uniform(2.5, 4.8),
			Confidence: uniform(0.6, 0.9),
			Factors:    []string{"temperature", "soil pH", "phosphorus"},
		},
	}
}

var baseWaterNeeds = map[string]float64{
	"wheat":   5.0,
	"corn":    7.5,
	"soybean": 6.0,
	"tomato":  8.0,
	"potato":  6.5,
}

var soilDrainageFactor = map[string]float64{
	"sand": 1.3,
	"loam": 1.0,
	"clay": 0.8,
}

// OptimizeIrrigation computes daily water needs for a field.
func (s *EnvironmentService) OptimizeIrrigation(ctx context.Context, req IrrigationRequest) IrrigationPlan {
	_, span := s.startEnvSpan(ctx, "EnvironmentService.OptimizeIrrigation")
	defer span.End()

	fieldSize := req.FieldSize
	if fieldSize <= 0 {
		fieldSize = 1
	}
	cropType := req.CropType
	if cropType == "" {
		cropType = "wheat"
	}
	soilType := req.SoilType
	if soilType == "" {
		soilType = "loam"
	}

	needs, ok := baseWaterNeeds[cropType]
	if !ok {
		needs = 6.0
	}
	factor, ok := soilDrainageFactor[soilType]
	if !ok {
		factor = 1.0
	}

	adjusted := needs * factor
	volumePerDay := adjusted * fieldSize * 10 // m³/day

	recommendations := []string{
		fmt.Sprintf("Besoin quotidien: %.1f mm/jour", adjusted),
		fmt.Sprintf("Volume total: %.1f m³/jour pour %g hectares", volumePerDay, fieldSize),
		"Irriguer tôt le matin pour minimiser l'évaporation",
	}
	switch soilType {
	case "sand":
		recommendations = append(recommendations, "Irrigations plus fréquentes mais moins abondantes recommandées")
	case "clay":
		recommendations = append(recommendations, "Irrigations moins fréquentes mais plus abondantes recommandées")
	}

	return IrrigationPlan{
		DailyWaterNeeds: round2(adjusted),
		VolumePerDay:    round2(volumePerDay),
		Recommendations: recommendations,
		EfficiencyScore: 65 + rand.Intn(31),
	}
}

// ProvidersConfigured reports which upstream APIs have keys, for /health.
func (s *EnvironmentService) ProvidersConfigured() (weather, climate bool) {
	return s.weather.Configured(), s.weather.Configured()
}

func (s *EnvironmentService) currentWeather(ctx context.Context, lat, lon float64) (*provider.WeatherObservation, error) {
	if !s.weather.Configured() {
		return nil, weatherUnconfigured()
	}
	obs, err := s.weather.CurrentWeather(ctx, lat, lon)
	if err != nil {
		return nil, mapProviderError(err)
	}
	return obs, nil
}

func weatherUnconfigured() *APIError {
	return newAPIError(CodeUnavailable, "Service météo non configuré", http.StatusServiceUnavailable)
}

func mapProviderError(err error) error {
	var provErr *provider.Error
	if errors.As(err, &provErr) {
		return newAPIError(CodeUpstream, fmt.Sprintf("Erreur %s: %d", provErr.Provider, provErr.Status), provErr.Status)
	}
	return newAPIError(CodeUnavailable, "Service météo indisponible", http.StatusServiceUnavailable)
}

func aqiCategory(aqi int) string {
	switch aqi {
	case 1:
		return "Good"
	case 2:
		return "Fair"
	case 3:
		return "Moderate"
	case 4:
		return "Poor"
	case 5:
		return "Very Poor"
	default:
		return "Unknown"
	}
}

func aqiAdvice(aqi int) (description, recommendation string) {
	switch aqi {
	case 1:
		return "Qualité de l'air bonne", "Excellentes conditions pour les activités extérieures."
	case 2:
		return "Qualité de l'air correcte", "Conditions favorables pour la plupart des activités extérieures."
	case 3:
		return "Qualité de l'air moyenne", "Limitez l'effort prolongé pour les personnes sensibles."
	case 4:
		return "Qualité de l'air mauvaise", "Évitez les activités prolongées en extérieur."
	case 5:
		return "Qualité de l'air très mauvaise", "Évitez les activités extérieures, particulièrement nocif pour la santé."
	default:
		return "", ""
	}
}

var pollutantKeys = []string{"co", "no", "no2", "o3", "so2", "pm2_5", "pm10", "nh3"}

func pollutantComponents(raw map[string]float64) map[string]float64 {
	components := make(map[string]float64, len(pollutantKeys))
	for _, key := range pollutantKeys {
		components[key] = raw[key]
	}
	return components
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func uniform(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}

func (s *EnvironmentService) startEnvSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *EnvironmentService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
