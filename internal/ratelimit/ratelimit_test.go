package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/gstbill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilIntegrationLimiterAllowsEverything(t *testing.T) {
	limiter, err := NewIntegrationLimiter(config.Config{}, nil)
	require.NoError(t, err)
	require.Nil(t, limiter)

	res, err := limiter.AllowUser(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	token, ok, err := limiter.TryLockSync(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, limiter.ReleaseSync(context.Background(), "42", token))
}

func TestUnconfiguredPrimitivesFailClosed(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrLimiterNotConfigured)

	var locker *Locker
	_, ok, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrLimiterNotConfigured)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(2, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}

func TestIPLimiterBlocksAfterLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, err := NewIPLimiter(2, "1m", nil)
	require.NoError(t, err)

	router := gin.New()
	router.Use(handler)
	router.GET("/profile", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestIPLimiterRejectsBadPeriod(t *testing.T) {
	_, err := NewIPLimiter(2, "soon", nil)
	assert.Error(t, err)
	_, err = NewIPLimiter(0, "1m", nil)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}
