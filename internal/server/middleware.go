package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/smallbiznis/gstbill/internal/auth"
	obscontext "github.com/smallbiznis/gstbill/internal/observability/context"
	"github.com/smallbiznis/gstbill/internal/observability/logger"
	"github.com/smallbiznis/gstbill/internal/usercontext"
	"go.uber.org/zap"
)

const (
	contextUserIDKey = "user_id"

	rateLimitReasonUserRate = "user-rate"
)

// secret fields are compared byte for byte and must reach the service untouched
var unsanitizedFields = map[string]struct{}{
	"password":     {},
	"confirmation": {},
	"code":         {},
}

// AuthRequired accepts `Authorization: Bearer <jwt>` and puts the subject
// into the request context for the services.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, err := s.tokens.Verify(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := usercontext.WithUserID(c.Request.Context(), userID)
		ctx = obscontext.WithUserID(ctx, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserIDKey, userID.String())
		c.Next()
	}
}

// SanitizeInput strips markup from string values of JSON bodies.
func SanitizeInput() gin.HandlerFunc {
	policy := bluemonday.StrictPolicy()

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}
		if !strings.HasPrefix(c.ContentType(), "application/json") || c.Request.Body == nil {
			c.Next()
			return
		}

		buf, err := io.ReadAll(c.Request.Body)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(buf))
			c.Next()
			return
		}

		decoder := json.NewDecoder(bytes.NewReader(buf))
		decoder.UseNumber()
		var body any
		if err := decoder.Decode(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}

		cleaned, changed := sanitizeValue(policy, "", body)
		if changed {
			if buf, err = json.Marshal(cleaned); err != nil {
				AbortWithError(c, invalidRequestError())
				return
			}
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(buf))
		c.Request.ContentLength = int64(len(buf))
		c.Next()
	}
}

func sanitizeValue(policy *bluemonday.Policy, key string, value any) (any, bool) {
	switch typed := value.(type) {
	case string:
		if _, skip := unsanitizedFields[key]; skip || !strings.ContainsRune(typed, '<') {
			return typed, false
		}
		return policy.Sanitize(typed), true
	case map[string]any:
		changed := false
		for k, v := range typed {
			cleaned, ok := sanitizeValue(policy, k, v)
			if ok {
				typed[k] = cleaned
				changed = true
			}
		}
		return typed, changed
	case []any:
		changed := false
		for i, v := range typed {
			cleaned, ok := sanitizeValue(policy, key, v)
			if ok {
				typed[i] = cleaned
				changed = true
			}
		}
		return typed, changed
	default:
		return value, false
	}
}

// IntegrationRateLimit applies the per-user token bucket to integration calls.
func (s *Server) IntegrationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.integrationLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		userID, ok := usercontext.UserIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.integrationLimiter.AllowUser(ctx, userID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("integration rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("integration rate limit exceeded",
				zap.String("reason", rateLimitReasonUserRate),
				zap.String("endpoint", endpoint),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonUserRate)

			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-Rate-Limited-Reason", rateLimitReasonUserRate)
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Next()
	}
}

// SensitiveRateLimit wraps the optional per-IP limiter for profile routes.
func (s *Server) SensitiveRateLimit() gin.HandlerFunc {
	if s.sensitiveLimiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.HandlerFunc(s.sensitiveLimiter)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
