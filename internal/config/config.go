package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	AuthJWTSecret string
	EncryptionKey string
	CORSOrigins   []string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
	Storage   StorageConfig

	Integrations IntegrationsConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled          bool
	IntegrationRate  float64
	IntegrationBurst int
	SyncLockTTL      int
	ProfileRequests  int64
	ProfilePeriod    string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	LocalDir        string
}

// IntegrationsConfig carries per-provider endpoints and credentials.
type IntegrationsConfig struct {
	GSTN       ProviderConfig
	QuickBooks ProviderConfig
	Zoho       ProviderConfig
	Razorpay   ProviderConfig
	Stripe     ProviderConfig
	Cashfree   ProviderConfig
}

type ProviderConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Sandbox      bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "gstbill"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		EncryptionKey: strings.TrimSpace(getenv("ENCRYPTION_KEY", "")),
		CORSOrigins:   parseList(getenv("CORS_ORIGINS", "http://localhost:3000")),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "gstbill"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:          getenvBool("RATE_LIMIT_ENABLED", false),
			IntegrationRate:  getenvFloat("RATE_LIMIT_INTEGRATION_RATE", 2),
			IntegrationBurst: getenvInt("RATE_LIMIT_INTEGRATION_BURST", 10),
			SyncLockTTL:      getenvInt("RATE_LIMIT_SYNC_LOCK_TTL_SECONDS", 300),
			ProfileRequests:  int64(getenvInt("RATE_LIMIT_PROFILE_REQUESTS", 10)),
			ProfilePeriod:    getenv("RATE_LIMIT_PROFILE_PERIOD", "1m"),
		},
		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 1025),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "billing@gstbill.local"),
		},
		Storage: StorageConfig{
			Bucket:          strings.TrimSpace(getenv("STORAGE_S3_BUCKET", "")),
			Region:          getenv("STORAGE_S3_REGION", "ap-south-1"),
			Endpoint:        strings.TrimSpace(getenv("STORAGE_S3_ENDPOINT", "")),
			AccessKeyID:     strings.TrimSpace(getenv("STORAGE_S3_ACCESS_KEY_ID", "")),
			SecretAccessKey: strings.TrimSpace(getenv("STORAGE_S3_SECRET_ACCESS_KEY", "")),
			PublicBaseURL:   strings.TrimRight(getenv("STORAGE_PUBLIC_BASE_URL", "/uploads"), "/"),
			LocalDir:        getenv("STORAGE_LOCAL_DIR", "uploads"),
		},
		Integrations: IntegrationsConfig{
			GSTN:       loadProvider("GSTN", "https://api.gst.gov.in/gsp"),
			QuickBooks: loadProvider("QUICKBOOKS", "https://quickbooks.api.intuit.com"),
			Zoho:       loadProvider("ZOHO", "https://www.zohoapis.in/books/v3"),
			Razorpay:   loadProvider("RAZORPAY", ""),
			Stripe:     loadProvider("STRIPE", ""),
			Cashfree:   loadProvider("CASHFREE", "https://api.cashfree.com"),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func loadProvider(prefix, defaultBaseURL string) ProviderConfig {
	return ProviderConfig{
		BaseURL:      strings.TrimRight(getenv(prefix+"_BASE_URL", defaultBaseURL), "/"),
		ClientID:     strings.TrimSpace(getenv(prefix+"_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(getenv(prefix+"_CLIENT_SECRET", "")),
		RedirectURL:  strings.TrimSpace(getenv(prefix+"_REDIRECT_URL", "")),
		Sandbox:      getenvBool(prefix+"_SANDBOX", true),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
