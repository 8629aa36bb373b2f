package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/imagehost/backend/internal/config"
)

// CORS creates a CORS middleware from the configured origin, method and header lists
func CORS(cfg *config.Config) gin.HandlerFunc {
	origins := make([]string, 0, len(cfg.AllowedOrigins))
	allowAll := false
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
			continue
		}
		if o != "" {
			origins = append(origins, o)
		}
	}

	corsCfg := cors.Config{
		AllowMethods:  cfg.AllowedMethods,
		AllowHeaders:  cfg.AllowedHeaders,
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        24 * time.Hour,
	}
	switch {
	case allowAll || (len(origins) == 0 && !cfg.IsProduction()):
		corsCfg.AllowAllOrigins = true
	case !cfg.IsProduction():
		// Local frontends run on arbitrary ports during development.
		corsCfg.AllowOriginFunc = func(origin string) bool {
			if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
				return true
			}
			for _, o := range origins {
				if o == origin {
					return true
				}
			}
			return false
		}
		corsCfg.AllowCredentials = true
	default:
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	if len(corsCfg.AllowOrigins) == 0 && corsCfg.AllowOriginFunc == nil && !corsCfg.AllowAllOrigins {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	return cors.New(corsCfg)
}
