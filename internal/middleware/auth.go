package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/logger"
	"github.com/imagehost/backend/internal/models"
	"github.com/imagehost/backend/internal/services"
	"github.com/imagehost/backend/pkg/jwt"
)

// Context keys set by Auth and OptionalAuth.
const (
	ContextUserID = "userID"
	ContextEmail  = "email"
	ContextRole   = "role"
)

// Route identifies a registered route as method plus gin full path,
// e.g. "POST /api/upload".
func Route(method, fullPath string) string {
	return method + " " + fullPath
}

// Auth requires a valid Bearer token and makes sure the owner record exists.
// Access tokens work everywhere; upload tokens only on uploadTokenRoutes.
func Auth(cfg *config.Config, owners *services.OwnerService, uploadTokenRoutes ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(uploadTokenRoutes))
	for _, r := range uploadTokenRoutes {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		allowUpload := allowed[Route(c.Request.Method, c.FullPath())]
		if !authenticate(c, cfg, owners, allowUpload) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": services.MsgUnauthorized,
				"code":  services.KindUnauthorized,
			})
			return
		}
		c.Next()
	}
}

// OptionalAuth sets the caller identity when a valid access token is present
// and otherwise continues anonymously.
func OptionalAuth(cfg *config.Config, owners *services.OwnerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			authenticate(c, cfg, owners, false)
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, cfg *config.Config, owners *services.OwnerService, allowUpload bool) bool {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		return false
	}

	claims, err := jwt.ValidateToken(token, cfg.JWTSecret)
	if err != nil {
		return false
	}
	switch claims.TokenType {
	case jwt.AccessToken:
	case jwt.UploadToken:
		if !allowUpload {
			return false
		}
	default:
		return false
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return false
	}

	owner, err := owners.EnsureOwner(c.Request.Context(), userID, claims.Email, models.Role(claims.Role))
	if err != nil {
		logger.WithField("user_id", userID).WithError(err).Error("Failed to load owner")
		return false
	}

	c.Set(ContextUserID, owner.ID)
	c.Set(ContextEmail, owner.Email)
	c.Set(ContextRole, string(owner.Role))
	return true
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// UserID returns the authenticated caller, or uuid.Nil.
func UserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
