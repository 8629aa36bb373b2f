package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/handlers"
	"github.com/imagehost/backend/internal/middleware"
	"github.com/imagehost/backend/internal/services"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Config     *config.Config
	Owners     *services.OwnerService
	APILimiter services.RateLimiter
	Media      *handlers.MediaHandler
	Health     *handlers.HealthHandler
}

// New builds the gin engine with all routes registered.
func New(d Deps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORS(d.Config))

	engine.GET("/health", d.Health.Health)

	// Public asset links; a token only matters for private assets.
	engine.GET("/i/:shortCode", middleware.OptionalAuth(d.Config, d.Owners), d.Media.Serve)

	api := engine.Group("/api")
	if d.APILimiter != nil {
		api.Use(middleware.RateLimiter(d.APILimiter))
	}
	// The ShareX upload token may only upload and delete.
	api.Use(middleware.Auth(d.Config, d.Owners,
		middleware.Route(http.MethodPost, "/api/upload"),
		middleware.Route(http.MethodDelete, "/api/images/:id"),
	))
	{
		api.POST("/upload", d.Media.Upload)
		api.GET("/images", d.Media.List)
		api.DELETE("/images/:id", d.Media.Delete)
		api.GET("/images/:id/qr", d.Media.QRCode)
		api.GET("/images/:id/sheet", d.Media.ShareSheet)
		api.GET("/sharex", d.Media.ShareX)
	}

	return engine
}
