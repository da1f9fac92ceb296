package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	"github.com/yourusername/lucky-wheel/internal/config"
)

func TestExtractUUIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/p/:id", ExtractUUIDParam("id", "participantID"), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet("participantID").(string))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p/6F9619FF-8B86-D011-B42D-00C04FC964FF", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00c04fc964ff", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p/42", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckinRateLimitConfig(t *testing.T) {
	def := CheckinRateLimitConfig(config.CheckinConfig{})
	assert.Equal(t, 10, def.MaxRequests)
	assert.Equal(t, time.Minute, def.Window)

	custom := CheckinRateLimitConfig(config.CheckinConfig{RateLimit: 3, RateWindowSec: 30})
	assert.Equal(t, 3, custom.MaxRequests)
	assert.Equal(t, 30*time.Second, custom.Window)
	assert.Equal(t, "rl:checkin", custom.KeyPrefix)
}

func TestRateLimiter_FailsOpenWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	r := gin.New()
	r.POST("/checkin", NewRateLimiter(client).Limit(RateLimitConfig{MaxRequests: 1, Window: time.Minute, KeyPrefix: "rl:test"}), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkin", nil))
		assert.Equal(t, http.StatusCreated, w.Code)
	}
}
