package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/table-orders/utils"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()
	r := gin.New()
	admin := r.Group("/admin", AuthMiddleware(), RequireRoles("admin", "staff"))
	admin.GET("/whoami", func(c *gin.Context) {
		id := ActingUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": *id})
	})
	r.GET("/ws/:role", WebSocketAuthMiddleware(), RoleCheck(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAndRoles(t *testing.T) {
	r := setupRouter()

	staff, err := utils.GenerateToken(7, "staff", time.Hour)
	require.NoError(t, err)
	chef, err := utils.GenerateToken(8, "chef", time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateToken(9, "admin", -time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "/admin/whoami", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "/admin/whoami", "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "/admin/whoami", expired).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "GET", "/admin/whoami", chef).Code)

	w := do(r, "GET", "/admin/whoami", staff)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())

	assert.Equal(t, http.StatusNoContent, do(r, "GET", "/ws/chef?token="+chef, "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, "GET", "/ws/admin?token="+chef, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "/ws/chef", "").Code)
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(0.001, 2).RateLimit())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, "GET", "/ping", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "GET", "/ping", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "GET", "/ping", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddlewares("https://app.example.com"))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, "OPTIONS", "/ping", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	h := do(r, "GET", "/ping", "").Header()
	assert.Equal(t, "no-store", h.Get("Cache-Control"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", h.Get("Content-Security-Policy"))
	assert.Equal(t, "same-origin", h.Get("Cross-Origin-Resource-Policy"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	assert.NotEmpty(t, h.Get("Permissions-Policy"))
}
