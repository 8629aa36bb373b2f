package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/logger"
	"github.com/imagehost/backend/internal/models"
	"github.com/imagehost/backend/internal/services"
	"github.com/imagehost/backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := logger.Init(&logger.Config{Level: "error", Format: "text", Output: "console"}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:5000", "198.51.100.4"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.4"}, "", "203.0.113.7"},
		{"peer address", nil, "192.0.2.10:4321", "192.0.2.10"},
		{"peer without port", nil, "192.0.2.11", "192.0.2.11"},
		{"empty forwarded falls through", map[string]string{"X-Forwarded-For": " , "}, "192.0.2.12:1", "192.0.2.12"},
		{"nothing known", nil, "", LoopbackClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(c))
		})
	}
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	tok, ok = bearerToken("bearer  xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Bearer", "Bearer   ", "Basic dXNlcjpwYXNz", "abc"} {
		_, ok := bearerToken(h)
		assert.False(t, ok, h)
	}
}

// failingLimiter simulates an unreachable counter backend.
type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("down") }
func (failingLimiter) Hit(context.Context, string) (int64, error)  { return 0, errors.New("down") }
func (failingLimiter) Limit() int                                  { return 1 }

func TestRateLimiterFailsOpen(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(failingLimiter{}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(services.NewMemoryRateLimiter(1, time.Minute, 10)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	get := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusNoContent, get("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, get("203.0.113.1"))
	assert.Equal(t, http.StatusNoContent, get("203.0.113.2"))
}

func authRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	cfg := &config.Config{Env: "test", DBDriver: "sqlite", SQLitePath: ":memory:", JWTSecret: "mw-secret"}
	db, err := models.InitDB(cfg)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	owners := services.NewOwnerService(db)

	whoami := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c).String(), "role": c.GetString(ContextRole)})
	}
	r := gin.New()
	r.GET("/private", Auth(cfg, owners), whoami)
	r.GET("/public", OptionalAuth(cfg, owners), whoami)

	scoped := r.Group("", Auth(cfg, owners,
		Route(http.MethodPost, "/upload"),
		Route(http.MethodDelete, "/items/:id"),
	))
	scoped.POST("/upload", whoami)
	scoped.DELETE("/items/:id", whoami)
	scoped.GET("/items/:id", whoami)
	return r, cfg
}

func TestAuth(t *testing.T) {
	r, cfg := authRouter(t)
	id := uuid.New()
	tok, err := jwt.GenerateToken(jwt.Identity{UserID: id.String(), Email: "a@example.com", Role: "admin"},
		jwt.AccessToken, cfg.JWTSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
	assert.Contains(t, w.Body.String(), `"role":"admin"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized","code":"unauthorized"}`, w.Body.String())

	wrongSecret, err := jwt.GenerateToken(jwt.Identity{UserID: id.String()}, jwt.AccessToken, "other", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+wrongSecret)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	badSubject, err := jwt.GenerateToken(jwt.Identity{UserID: "not-a-uuid"}, jwt.AccessToken, cfg.JWTSecret, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+badSubject)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuth(t *testing.T) {
	r, cfg := authRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), uuid.Nil.String())

	// An invalid token degrades to anonymous instead of failing.
	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), uuid.Nil.String())

	id := uuid.New()
	access, err := jwt.GenerateToken(jwt.Identity{UserID: id.String()}, jwt.AccessToken, cfg.JWTSecret, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), id.String())

	// Upload tokens never identify a viewer.
	upload, err := jwt.GenerateToken(jwt.Identity{UserID: id.String()}, jwt.UploadToken, cfg.JWTSecret, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer "+upload)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), uuid.Nil.String())
}

func TestAuthUploadTokenScope(t *testing.T) {
	r, cfg := authRouter(t)
	id := uuid.New()
	upload, err := jwt.GenerateToken(jwt.Identity{UserID: id.String()}, jwt.UploadToken, cfg.JWTSecret, time.Hour)
	require.NoError(t, err)

	call := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+upload)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, call(http.MethodPost, "/upload"))
	assert.Equal(t, http.StatusOK, call(http.MethodDelete, "/items/abc"))
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/private"))
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/items/abc"))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	cfg := &config.Config{
		Env:            "production",
		AllowedOrigins: []string{"https://app.example.com/"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
