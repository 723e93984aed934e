package tracing

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/v1/profile"),
		attribute.String("recipient_gstin", "27AAPFU0939F1ZV"),
		attribute.String("access_token", "abc"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
}

func TestSafeErrorRedacts(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	if got := SafeError(errors.New("invalid GSTIN 27AAPFU0939F1ZV")).Error(); got != "redacted error" {
		t.Fatalf("expected redaction, got %q", got)
	}
	if got := SafeError(errors.New("upstream timeout")).Error(); got != "upstream timeout" {
		t.Fatalf("unexpected message %q", got)
	}
}
