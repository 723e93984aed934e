package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/gstbill/internal/audit"
	"github.com/smallbiznis/gstbill/internal/auth"
	"github.com/smallbiznis/gstbill/internal/config"
	"github.com/smallbiznis/gstbill/internal/integration"
	integrationdomain "github.com/smallbiznis/gstbill/internal/integration/domain"
	"github.com/smallbiznis/gstbill/internal/invoice"
	invoicedomain "github.com/smallbiznis/gstbill/internal/invoice/domain"
	"github.com/smallbiznis/gstbill/internal/observability"
	obsmiddleware "github.com/smallbiznis/gstbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/gstbill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/gstbill/internal/observability/tracing"
	"github.com/smallbiznis/gstbill/internal/profile"
	profiledomain "github.com/smallbiznis/gstbill/internal/profile/domain"
	"github.com/smallbiznis/gstbill/internal/providers"
	"github.com/smallbiznis/gstbill/internal/ratelimit"
	"github.com/smallbiznis/gstbill/internal/security"
	"github.com/smallbiznis/gstbill/internal/storage"
	"github.com/smallbiznis/gstbill/internal/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	audit.Module,
	auth.Module,
	providers.Module,
	storage.Module,
	ratelimit.Module,
	security.Module,
	invoice.Module,
	integration.Module,
	profile.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	if err := validation.RegisterGinBinding(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine             *gin.Engine
	tokens             *auth.TokenManager
	invoiceSvc         invoicedomain.Service
	integrationSvc     integrationdomain.Service
	profileSvc         profiledomain.Service
	integrationLimiter *ratelimit.IntegrationLimiter
	sensitiveLimiter   ratelimit.SensitiveRouteLimiter
	obsMetrics         *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin                *gin.Engine
	Tokens             *auth.TokenManager
	InvoiceSvc         invoicedomain.Service
	IntegrationSvc     integrationdomain.Service
	ProfileSvc         profiledomain.Service
	IntegrationLimiter *ratelimit.IntegrationLimiter   `optional:"true"`
	SensitiveLimiter   ratelimit.SensitiveRouteLimiter `optional:"true"`
	ObsMetrics         *obsmetrics.Metrics             `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:             p.Gin,
		tokens:             p.Tokens,
		invoiceSvc:         p.InvoiceSvc,
		integrationSvc:     p.IntegrationSvc,
		profileSvc:         p.ProfileSvc,
		integrationLimiter: p.IntegrationLimiter,
		sensitiveLimiter:   p.SensitiveLimiter,
		obsMetrics:         p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(s.AuthRequired())
	api.Use(SanitizeInput())

	invoices := api.Group("/invoices")
	{
		invoices.POST("", s.CreateInvoice)
		invoices.GET("", s.ListInvoices)
		invoices.GET("/revenue", s.InvoiceRevenue)
		invoices.GET("/:id", s.GetInvoiceByID)
		invoices.GET("/:id/pdf", s.DownloadInvoicePDF)
		invoices.POST("/:id/send", s.SendInvoice)
		invoices.POST("/:id/pay", s.MarkInvoicePaid)
		invoices.POST("/:id/remind", s.RemindInvoice)
		invoices.POST("/:id/cancel", s.CancelInvoice)
		invoices.POST("/:id/refund", s.RefundInvoice)
	}

	integrations := api.Group("/integrations")
	integrations.Use(s.IntegrationRateLimit())
	{
		integrations.POST("/gst/validate-gstin", s.ValidateGSTIN)
		integrations.POST("/gst/file-return", s.FileGSTReturn)
		integrations.POST("/gst/eway-bill", s.GenerateEWayBill)
		integrations.GET("/gst/return-status", s.GSTReturnStatus)

		integrations.POST("/accounting/connect", s.ConnectAccounting)
		integrations.POST("/accounting/sync", s.SyncAccounting)

		integrations.POST("/payments/process", s.ProcessPayment)
		integrations.POST("/payments/recurring", s.CreateRecurringPayment)
		integrations.POST("/payments/refund", s.RefundPayment)

		integrations.POST("/upi/initiate", s.InitiateUPI)
		integrations.POST("/upi/verify", s.VerifyUPI)
		integrations.POST("/bank/verify-account", s.VerifyBankAccount)

		integrations.GET("/status", s.IntegrationStatus)
	}

	sensitive := s.SensitiveRateLimit()
	profileRoutes := api.Group("/profile")
	{
		profileRoutes.GET("", s.GetProfile)
		profileRoutes.PUT("", s.UpdateProfile)
		profileRoutes.POST("/avatar", sensitive, s.UploadAvatar)
		profileRoutes.PUT("/email", sensitive, s.UpdateEmail)
		profileRoutes.PUT("/mobile", sensitive, s.UpdateMobile)
		profileRoutes.PUT("/preferences", s.UpdatePreferences)
		profileRoutes.DELETE("", sensitive, s.DeleteAccount)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
