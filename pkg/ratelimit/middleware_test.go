package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(config RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(config))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return router
}

func TestRateLimitMiddleware_AllowsWithinBurst(t *testing.T) {
	router := newLimitedRouter(RateLimitConfig{
		RPS:             1,
		Burst:           3,
		CleanupInterval: time.Minute,
		MaxAge:          time.Minute,
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i)
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimitMiddleware_BlocksOverBurst(t *testing.T) {
	router := newLimitedRouter(RateLimitConfig{
		RPS:             0.1,
		Burst:           1,
		CleanupInterval: time.Minute,
		MaxAge:          time.Minute,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"status":429,"description":"rate limit exceeded"}`, w.Body.String())
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 10.0, config.RPS)
	assert.Equal(t, 20, config.Burst)
	assert.Equal(t, 5*time.Minute, config.CleanupInterval)
	assert.Equal(t, 10*time.Minute, config.MaxAge)
}
