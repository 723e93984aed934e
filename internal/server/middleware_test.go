package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

func TestSanitizeInputStripsMarkup(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/v1/profile",
		bytes.NewBufferString(`{"full_name":"<b>Asha</b><script>alert(1)</script>","business_name":"Asha & Sons"}`),
		"application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got := ts.profile.lastUpdate
	if got.FullName == nil || *got.FullName != "Asha" {
		t.Fatalf("expected markup stripped, got %v", got.FullName)
	}
	if got.BusinessName == nil || *got.BusinessName != "Asha & Sons" {
		t.Fatalf("plain text should pass through untouched, got %v", got.BusinessName)
	}
}

func TestSanitizeValueSkipsSecrets(t *testing.T) {
	policy := bluemonday.StrictPolicy()
	body := map[string]any{
		"password": "<p4ss>",
		"notes":    []any{"<i>a</i>", "b"},
	}

	cleaned, changed := sanitizeValue(policy, "", body)
	if !changed {
		t.Fatalf("expected notes to change")
	}
	out := cleaned.(map[string]any)
	if out["password"] != "<p4ss>" {
		t.Fatalf("password must not be sanitized, got %v", out["password"])
	}
	notes := out["notes"].([]any)
	if notes[0] != "a" || notes[1] != "b" {
		t.Fatalf("unexpected notes %v", notes)
	}
}

func TestSanitizeInputRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.Use(SanitizeInput())
	r.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(`{"a":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRateLimitEndpointFallsBackToPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/integrations/status", nil)

	if got := normalizeRateLimitEndpoint(c); got != "/api/v1/integrations/status" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}
