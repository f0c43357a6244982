package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/terrasense/agrigate/internal/config"
	"github.com/terrasense/agrigate/internal/http/handler"
	httpmiddleware "github.com/terrasense/agrigate/internal/http/middleware"
	"github.com/terrasense/agrigate/internal/middleware"
)

// NewRouter wires gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, envHandler *handler.EnvHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", authMiddleware.RequireUser, authHandler.Me)
			auth.POST("/logout", authHandler.Logout)
		}

		api.GET("/weather", envHandler.Weather)
		api.GET("/airquality", envHandler.AirQuality)
		api.POST("/climate", envHandler.Climate)
		api.GET("/soil-analysis", envHandler.SoilAnalysis)
		api.GET("/crop-prediction", envHandler.CropPrediction)
		api.POST("/optimize-irrigation", envHandler.OptimizeIrrigation)
		api.POST("/agribot", envHandler.AgriBot)
		api.GET("/health", envHandler.Health)
	}

	return r
}
