package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestGinMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetricsWith(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/v1/invoices/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/api/v1/invoices/1", "/api/v1/invoices/2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var counter *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "gstbill_http_requests_total" {
			counter = mf
		}
	}
	if counter == nil {
		t.Fatalf("request counter not gathered")
	}
	if len(counter.GetMetric()) != 1 {
		t.Fatalf("expected one route series, got %d", len(counter.GetMetric()))
	}
	if got := counter.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewHTTPMetricsWith(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := NewHTTPMetricsWith(reg); err != nil {
		t.Fatalf("second register should reuse collectors: %v", err)
	}
}
