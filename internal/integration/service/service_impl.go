package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	auditdomain "github.com/smallbiznis/gstbill/internal/audit/domain"
	"github.com/smallbiznis/gstbill/internal/clock"
	"github.com/smallbiznis/gstbill/internal/integration/adapters"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"github.com/smallbiznis/gstbill/internal/observability/metrics"
	"github.com/smallbiznis/gstbill/internal/observability/tracing"
	"github.com/smallbiznis/gstbill/internal/security"
	"github.com/smallbiznis/gstbill/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const syncBatchLimit = 500

// Providers used when a request leaves the provider empty.
var defaultProviders = map[domain.Category]string{
	domain.CategoryTax: "gstn",
	domain.CategoryUPI: "cashfree",
}

// Operations that move money or file with the government are audited.
var auditedCapabilities = map[string]bool{
	"file_return":       true,
	"eway_bill":         true,
	"process_payment":   true,
	"recurring_payment": true,
	"refund":            true,
	"upi_initiate":      true,
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Registry   *adapters.Registry
	Repo       domain.ConnectionRepository
	Invoices   domain.InvoiceSource
	Encryption security.EncryptionService
	AuditSvc   auditdomain.Service
	Clock      clock.Clock
	Locker     domain.SyncLocker `optional:"true"`
	Metrics    *metrics.Metrics  `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	registry   *adapters.Registry
	repo       domain.ConnectionRepository
	invoices   domain.InvoiceSource
	encryption security.EncryptionService
	auditSvc   auditdomain.Service
	clock      clock.Clock
	locker     domain.SyncLocker
	metrics    *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("integration.service"),
		genID: p.GenID,

		registry:   p.Registry,
		repo:       p.Repo,
		invoices:   p.Invoices,
		encryption: p.Encryption,
		auditSvc:   p.AuditSvc,
		clock:      p.Clock,
		locker:     p.Locker,
		metrics:    p.Metrics,
	}
}

func (s *Service) ValidateGSTIN(ctx context.Context, req domain.ValidateGSTINRequest) (domain.Result, error) {
	return s.run(ctx, domain.CategoryTax, req.Provider, "validate_gstin", func(a domain.Adapter) (map[string]any, bool, error) {
		v, ok := a.(domain.GSTINValidator)
		if !ok {
			return nil, false, nil
		}
		data, err := v.ValidateGSTIN(ctx, req.GSTIN)
		return data, true, err
	})
}

func (s *Service) FileReturn(ctx context.Context, req domain.FileReturnRequest) (domain.Result, error) {
	return s.run(ctx, domain.CategoryTax, req.Provider, "file_return", func(a domain.Adapter) (map[string]any, bool, error) {
		v, ok := a.(domain.ReturnFiler)
		if !ok {
			return nil, false, nil
		}
		data, err := v.FileReturn(ctx, req)
		return data, true, err
	})
}

func (s *Service) GenerateEWayBill(ctx context.Context, req domain.EWayBillRequest) (domain.Result, error) {
	return s.run(ctx, domain.CategoryTax, req.Provider, "eway_bill", func(a domain.Adapter) (map[string]any, bool, error) {
		v, ok := a.(domain.EWayBillGenerator)
		if !ok {
			return nil, false, nil
		}
		data, err := v.GenerateEWayBill(ctx, req)
		return data, true, err
	})
}

func (s *Service) ReturnStatus(ctx context.Context, req domain.ReturnStatusRequest) (domain.Result, error) {
	return s.run(ctx, domain.CategoryTax, req.Provider, "return_status", func(a domain.Adapter) (map[string]any, bool, error) {
		v, ok := a.(domain.ReturnStatusChecker)
		if !ok {
			return nil, false, nil
		}
		data, err := v.ReturnStatus(ctx, req)
		return data, true, err
	})
}

func (s *Service) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (domain.Result, error) {
	return s.run(ctx, domain.CategoryPayment, req.Provider, "process_payment", func(a domain.Adapter) (map[string]any, bool, error) {
		v, ok := a.(domain.PaymentProcessor)
		if !ok {
			return nil, false, nil
		}
		data, err := v.ProcessPayment(ctx, req)
		return data, true, err
	})
}

func (s *Service) CreateRecurringPayment(ctx context.Context, req domain.RecurringRequest) (domain.Result, error) {
	return s.run(ctx, domain.CategoryPayment, req.Provider, "recurring_payment", func(a domain.Adapter) (map[string]any, bool, error) {
		v, ok := a.(domain.RecurringPaymentCreator)
		if !ok {
			return nil, false, nil
		}
		data, err := v.CreateRecurring(ctx, req)
		return data, true, err
	})
}

func (s *Service) RefundPayment(ctx context.Context, req domain.RefundRequest) (domain.Result, error) {
	return s.run(ctx, domain.CategoryPayment, req.Provider, "refund", func(a domain.Adapter) (map[string]any, bool, error) {
		v, ok := a.(domain.Refunder)
		if !ok {
			return nil, false, nil
		}
		data, err := v.Refund(ctx, req)
		return data, true, err
	})
}

func (s *Service) InitiateUPI(ctx context.Context, req domain.UPIRequest) (domain.Result, error) {
	return s.run(ctx, domain.CategoryUPI, req.Provider, "upi_initiate", func(a domain.Adapter) (map[string]any, bool, error) {
		v, ok := a.(domain.UPIInitiator)
		if !ok {
			return nil, false, nil
		}
		data, err := v.InitiateUPI(ctx, req)
		return data, true, err
	})
}

func (s *Service) VerifyUPI(ctx context.Context, req domain.UPIVerifyRequest) (domain.Result, error) {
	return s.run(ctx, domain.CategoryUPI, req.Provider, "upi_verify", func(a domain.Adapter) (map[string]any, bool, error) {
		v, ok := a.(domain.UPIVerifier)
		if !ok {
			return nil, false, nil
		}
		data, err := v.VerifyUPI(ctx, req)
		return data, true, err
	})
}

func (s *Service) VerifyBankAccount(ctx context.Context, req domain.BankAccountRequest) (domain.Result, error) {
	return s.run(ctx, domain.CategoryUPI, req.Provider, "bank_verify", func(a domain.Adapter) (map[string]any, bool, error) {
		v, ok := a.(domain.BankAccountVerifier)
		if !ok {
			return nil, false, nil
		}
		data, err := v.VerifyBankAccount(ctx, req)
		return data, true, err
	})
}

// ConnectAccounting exchanges the provider grant and stores the resulting
// credentials encrypted, replacing any earlier accounting connection.
func (s *Service) ConnectAccounting(ctx context.Context, req domain.ConnectRequest) (domain.Result, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return domain.Result{}, err
	}

	category := domain.CategoryAccounting
	adapter, failure := s.lookup(ctx, category, req.Provider)
	if failure != nil {
		return *failure, nil
	}
	connector, ok := adapter.(domain.Connector)
	if !ok {
		return s.notSupported(ctx, category, adapter.Key(), "connect"), nil
	}

	creds, err := connector.Connect(ctx, req)
	if err != nil {
		return s.providerFailure(ctx, category, adapter.Key(), "connect", err), nil
	}
	sealed, err := s.sealCredentials(creds)
	if err != nil {
		return domain.Result{}, err
	}

	now := s.clock.Now().UTC()
	conn := &domain.Connection{
		ID:                   s.genID.Generate(),
		UserID:               userID,
		Category:             category,
		Provider:             adapter.Key(),
		EncryptedCredentials: sealed,
		Status:               domain.ConnectionStatusConnected,
		ConnectedAt:          now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Upsert(ctx, s.db, conn); err != nil {
		return domain.Result{}, err
	}

	s.emitAudit(ctx, userID, "integration.accounting.connected", adapter.Key(), map[string]any{
		"category": string(category),
	})
	s.log.Info("accounting connected", zap.String("user_id", userID.String()), zap.String("provider", adapter.Key()))

	return s.success(ctx, category, adapter.Key(), map[string]any{
		"status":       string(domain.ConnectionStatusConnected),
		"connected_at": now,
	}), nil
}

// SyncAccounting pushes invoices changed since the last successful sync to the
// connected accounting package.
func (s *Service) SyncAccounting(ctx context.Context, req domain.SyncRequest) (domain.Result, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	category := domain.CategoryAccounting

	conn, err := s.repo.FindByUserCategory(ctx, s.db, userID, category)
	if err != nil {
		return domain.Result{}, err
	}
	if conn == nil {
		return s.failure(ctx, category, req.Provider, domain.CodeNotConnected, "no accounting system is connected"), nil
	}
	if req.Provider != "" && !sameKey(req.Provider, conn.Provider) {
		return s.failure(ctx, category, req.Provider, domain.CodeNotConnected,
			fmt.Sprintf("connected accounting provider is %s", conn.Provider)), nil
	}

	adapter, failure := s.lookup(ctx, category, conn.Provider)
	if failure != nil {
		return *failure, nil
	}
	syncer, ok := adapter.(domain.Syncer)
	if !ok {
		return s.notSupported(ctx, category, adapter.Key(), "sync"), nil
	}

	if s.locker != nil {
		token, acquired, err := s.locker.TryLockSync(ctx, userID.String())
		if err != nil {
			return domain.Result{}, err
		}
		if !acquired {
			return s.failure(ctx, category, adapter.Key(), domain.CodeSyncInProgress, "a sync is already running"), nil
		}
		defer func() {
			if err := s.locker.ReleaseSync(context.WithoutCancel(ctx), userID.String(), token); err != nil {
				s.log.Warn("failed to release sync lock", zap.Error(err))
			}
		}()
	}

	creds, err := s.openCredentials(conn.EncryptedCredentials)
	if err != nil {
		return domain.Result{}, err
	}

	startedAt := s.clock.Now().UTC()
	invoices, err := s.invoices.InvoicesUpdatedSince(ctx, userID, conn.SyncCursor(), syncBatchLimit)
	if err != nil {
		return domain.Result{}, err
	}

	result, syncErr := syncer.Sync(ctx, creds, invoices)
	conn.UpdatedAt = s.clock.Now().UTC()
	if syncErr != nil {
		message := tracing.SafeError(syncErr).Error()
		conn.Status = domain.ConnectionStatusError
		conn.LastError = &message
		if err := s.repo.UpdateSyncState(ctx, s.db, conn); err != nil {
			s.log.Warn("failed to record sync error", zap.Error(err))
		}
		return s.providerFailure(ctx, category, adapter.Key(), "sync", syncErr), nil
	}

	if result.Credentials != nil {
		sealed, err := s.sealCredentials(*result.Credentials)
		if err != nil {
			return domain.Result{}, err
		}
		conn.EncryptedCredentials = sealed
	}
	conn.Status = domain.ConnectionStatusConnected
	conn.LastError = nil
	conn.LastSyncedAt = &startedAt
	if next := advanceSyncCursor(invoices, result.FailedIDs); next != nil {
		conn.SyncCursorAt = &next.UpdatedAt
		conn.SyncCursorID = &next.ID
	}
	if err := s.repo.UpdateSyncState(ctx, s.db, conn); err != nil {
		return domain.Result{}, err
	}

	s.emitAudit(ctx, userID, "integration.accounting.synced", adapter.Key(), map[string]any{
		"pushed": result.Pushed,
		"failed": result.Failed,
	})

	return s.success(ctx, category, adapter.Key(), map[string]any{
		"pushed":    result.Pushed,
		"failed":    result.Failed,
		"has_more":  len(invoices) >= syncBatchLimit,
		"synced_at": startedAt,
	}), nil
}

// advanceSyncCursor returns the last invoice pushed before the first failure,
// or nil when nothing was pushed. Invoices after a failure are retried on the
// next run together with the failed one.
func advanceSyncCursor(invoices []domain.SyncInvoice, failedIDs []string) *domain.SyncCursor {
	failed := lo.SliceToMap(failedIDs, func(id string) (string, struct{}) { return id, struct{}{} })

	var next *domain.SyncCursor
	for _, inv := range invoices {
		if _, ok := failed[inv.ID]; ok {
			break
		}
		id, err := snowflake.ParseString(inv.ID)
		if err != nil {
			break
		}
		next = &domain.SyncCursor{UpdatedAt: inv.UpdatedAt.UTC(), ID: id}
	}
	return next
}

func (s *Service) Status(ctx context.Context) (domain.StatusResponse, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return domain.StatusResponse{}, err
	}

	resp := domain.StatusResponse{
		Categories: lo.Map(domain.Categories, func(category domain.Category, _ int) domain.CategoryStatus {
			return domain.CategoryStatus{
				Category: category,
				Providers: lo.Map(s.registry.Keys(category), func(key string, _ int) domain.ProviderStatus {
					adapter, _ := s.registry.Lookup(category, key)
					return domain.ProviderStatus{
						Provider:     key,
						Capabilities: lo.Compact(domain.Capabilities(adapter)),
					}
				}),
			}
		}),
	}

	conn, err := s.repo.FindByUserCategory(ctx, s.db, userID, domain.CategoryAccounting)
	if err != nil {
		return domain.StatusResponse{}, err
	}
	resp.Accounting = conn
	return resp, nil
}

func (s *Service) run(
	ctx context.Context,
	category domain.Category,
	provider string,
	capability string,
	call func(domain.Adapter) (map[string]any, bool, error),
) (domain.Result, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return domain.Result{}, err
	}

	adapter, failure := s.lookup(ctx, category, provider)
	if failure != nil {
		return *failure, nil
	}

	data, supported, err := call(adapter)
	if !supported {
		return s.notSupported(ctx, category, adapter.Key(), capability), nil
	}
	if err != nil {
		return s.providerFailure(ctx, category, adapter.Key(), capability, err), nil
	}

	if auditedCapabilities[capability] {
		s.emitAudit(ctx, userID, "integration."+capability, adapter.Key(), map[string]any{
			"category": string(category),
		})
	}
	return s.success(ctx, category, adapter.Key(), data), nil
}

func (s *Service) lookup(ctx context.Context, category domain.Category, provider string) (domain.Adapter, *domain.Result) {
	key := provider
	if key == "" {
		key = defaultProviders[category]
	}
	adapter, ok := s.registry.Lookup(category, key)
	if !ok {
		result := s.failure(ctx, category, key, domain.CodeUnsupportedProvider,
			fmt.Sprintf("provider %q is not available for %s", key, category))
		return nil, &result
	}
	return adapter, nil
}

func (s *Service) notSupported(ctx context.Context, category domain.Category, provider, capability string) domain.Result {
	return s.failure(ctx, category, provider, domain.CodeNotSupported,
		fmt.Sprintf("%s does not support %s", provider, capability))
}

func (s *Service) providerFailure(ctx context.Context, category domain.Category, provider, capability string, err error) domain.Result {
	code := domain.CodeProviderError
	if errors.Is(err, domain.ErrInvalidAmount) || errors.Is(err, domain.ErrMissingCredential) {
		code = domain.CodeInvalidRequest
	}
	s.log.Warn("integration call failed",
		zap.String("category", string(category)),
		zap.String("provider", provider),
		zap.String("capability", capability),
		zap.Error(tracing.SafeError(err)),
	)
	return s.failure(ctx, category, provider, code, tracing.SafeError(err).Error())
}

func (s *Service) failure(ctx context.Context, category domain.Category, provider, code, message string) domain.Result {
	s.metrics.RecordIntegrationCall(ctx, string(category), provider, code)
	return domain.Failure(category, provider, code, message)
}

func (s *Service) success(ctx context.Context, category domain.Category, provider string, data map[string]any) domain.Result {
	s.metrics.RecordIntegrationCall(ctx, string(category), provider, "success")
	return domain.OK(category, provider, data)
}

func (s *Service) sealCredentials(creds domain.Credentials) (string, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	return s.encryption.Encrypt(string(raw))
}

func (s *Service) openCredentials(sealed string) (domain.Credentials, error) {
	var creds domain.Credentials
	if sealed == "" {
		return creds, nil
	}
	raw, err := s.encryption.Decrypt(sealed)
	if err != nil {
		return creds, err
	}
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return creds, err
	}
	return creds, nil
}

func (s *Service) emitAudit(ctx context.Context, userID snowflake.ID, action, provider string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["provider"] = provider
	if err := s.auditSvc.AuditLog(ctx, &userID, action, "integration", &provider, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) userIDFromContext(ctx context.Context) (snowflake.ID, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return 0, domain.ErrInvalidUser
	}
	return userID, nil
}

func sameKey(a, b string) bool {
	return adapters.NormalizeKey(a) == adapters.NormalizeKey(b)
}
