package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/terrasense/agrigate/internal/service"
)

const apiVersion = "1.0.0"

// EnvHandler exposes the environmental data endpoints.
type EnvHandler struct {
	Env  *service.EnvironmentService
	Chat *service.ChatService
}

// NewEnvHandler wires dependencies.
func NewEnvHandler(env *service.EnvironmentService, chat *service.ChatService) *EnvHandler {
	return &EnvHandler{Env: env, Chat: chat}
}

// Weather handles GET /api/weather?lat=..&lon=..
func (h *EnvHandler) Weather(c *gin.Context) {
	lat, lon, ok := coordParams(c)
	if !ok {
		return
	}
	report, err := h.Env.Weather(c.Request.Context(), lat, lon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// AirQuality handles GET /api/airquality?lat=..&lon=..
func (h *EnvHandler) AirQuality(c *gin.Context) {
	lat, lon, ok := coordParams(c)
	if !ok {
		return
	}
	report, err := h.Env.AirQuality(c.Request.Context(), lat, lon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Climate handles POST /api/climate with a field polygon body.
func (h *EnvHandler) Climate(c *gin.Context) {
	var req struct {
		Polygon [][]float64 `json:"polygon"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Polygon) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.CodeValidation, "message": "Coordonnées du polygone requises"})
		return
	}
	report, err := h.Env.Climate(c.Request.Context(), req.Polygon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SoilAnalysis handles GET /api/soil-analysis?lat=..&lon=..
func (h *EnvHandler) SoilAnalysis(c *gin.Context) {
	lat, lon, ok := coordParams(c)
	if !ok {
		return
	}
	report, err := h.Env.SoilAnalysis(c.Request.Context(), lat, lon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CropPrediction handles GET /api/crop-prediction.
func (h *EnvHandler) CropPrediction(c *gin.Context) {
	c.JSON(http.StatusOK, h.Env.CropPrediction(c.Request.Context()))
}

// OptimizeIrrigation handles POST /api/optimize-irrigation.
func (h *EnvHandler) OptimizeIrrigation(c *gin.Context) {
	var req service.IrrigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.CodeValidation, "message": "Données d'entrée requises"})
		return
	}
	c.JSON(http.StatusOK, h.Env.OptimizeIrrigation(c.Request.Context(), req))
}

// AgriBot handles POST /api/agribot.
func (h *EnvHandler) AgriBot(c *gin.Context) {
	var req struct {
		Question  string `json:"question"`
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"response": "Je n'ai pas compris votre question. Pouvez-vous reformuler?"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.ClientIP()
	}

	reply, err := h.Chat.Ask(c.Request.Context(), sessionID, req.Question)
	if err != nil {
		// Empty questions get a 400 whose body still carries a response
		// field, so chat clients can render the hint directly.
		c.JSON(http.StatusBadRequest, gin.H{"response": "Je n'ai pas compris votre question. Pouvez-vous reformuler?"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

// Health handles GET /api/health.
func (h *EnvHandler) Health(c *gin.Context) {
	weather, climate := h.Env.ProvidersConfigured()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   apiVersion,
		"apis": gin.H{
			"weather": weather,
			"climate": climate,
			"chatbot": h.Chat.Configured(),
		},
	})
}

func coordParams(c *gin.Context) (lat, lon float64, ok bool) {
	latRaw := c.Query("lat")
	lonRaw := c.Query("lon")
	if latRaw == "" || lonRaw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.CodeValidation, "message": "Latitude et longitude requises"})
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(latRaw, 64)
	lon, errLon := strconv.ParseFloat(lonRaw, 64)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.CodeValidation, "message": "Latitude et longitude requises"})
		return 0, 0, false
	}
	return lat, lon, true
}
