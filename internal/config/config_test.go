package config

import (
	"testing"
	"time"
)

func TestLoadReadsProviderSettings(t *testing.T) {
	t.Setenv("GSTN_BASE_URL", "https://sandbox.gsp.example/")
	t.Setenv("GSTN_CLIENT_ID", " client ")
	t.Setenv("QUICKBOOKS_SANDBOX", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	if cfg.Integrations.GSTN.BaseURL != "https://sandbox.gsp.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Integrations.GSTN.BaseURL)
	}
	if cfg.Integrations.GSTN.ClientID != "client" {
		t.Fatalf("expected trimmed client id, got %q", cfg.Integrations.GSTN.ClientID)
	}
	if cfg.Integrations.QuickBooks.Sandbox {
		t.Fatalf("expected quickbooks sandbox disabled")
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 cors origins, got %v", cfg.CORSOrigins)
	}
}

func TestValidateBillingConfig(t *testing.T) {
	cfg := DefaultBillingConfig()
	if err := validateBillingConfig(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.TimeZone = "Mars/Olympus"
	if err := validateBillingConfig(cfg); err == nil {
		t.Fatalf("expected invalid time zone to fail")
	}

	cfg = DefaultBillingConfig()
	cfg.OverdueSweepPeriod = 0
	if err := validateBillingConfig(cfg); err == nil {
		t.Fatalf("expected zero sweep period to fail")
	}
}

func TestBillingConfigLocation(t *testing.T) {
	cfg := DefaultBillingConfig()
	loc := cfg.Location()
	if loc.String() != "Asia/Kolkata" {
		t.Fatalf("expected Asia/Kolkata, got %s", loc)
	}

	ts := time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC)
	if got := ts.In(loc).Month(); got != time.February {
		t.Fatalf("expected IST rollover into February, got %s", got)
	}
}
