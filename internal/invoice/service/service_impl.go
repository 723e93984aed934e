package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/gstbill/internal/audit/domain"
	"github.com/smallbiznis/gstbill/internal/clock"
	"github.com/smallbiznis/gstbill/internal/config"
	invoicedomain "github.com/smallbiznis/gstbill/internal/invoice/domain"
	"github.com/smallbiznis/gstbill/internal/observability/metrics"
	"github.com/smallbiznis/gstbill/internal/providers/email"
	"github.com/smallbiznis/gstbill/internal/providers/pdf"
	"github.com/smallbiznis/gstbill/internal/usercontext"
	"github.com/smallbiznis/gstbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 250
	overdueBatchSize = 200
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     invoicedomain.Repository
	AuditSvc auditdomain.Service
	Clock    clock.Clock
	Billing  *config.BillingConfigHolder
	Email    email.Provider
	PDF      pdf.Provider
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	repo     invoicedomain.Repository
	auditSvc auditdomain.Service
	clock    clock.Clock
	billing  *config.BillingConfigHolder
	email    email.Provider
	pdf      pdf.Provider
	metrics  *metrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,

		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		clock:    p.Clock,
		billing:  p.Billing,
		email:    p.Email,
		pdf:      p.PDF,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !req.Type.Valid() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoiceType
	}

	billing := s.billing.Get()
	now := s.clock.Now().UTC()

	issueDate := now
	if req.IssueDate != nil {
		issueDate = req.IssueDate.UTC()
	}
	dueDate := issueDate.AddDate(0, 0, billing.DefaultDueDays)
	if req.DueDate != nil {
		dueDate = req.DueDate.UTC()
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = billing.Currency
	}

	invoice := invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		UserID:         userID,
		SubscriptionID: normalizePointer(req.SubscriptionID),
		Type:           req.Type,
		Status:         invoicedomain.InvoiceStatusDraft,
		IssueDate:      issueDate,
		DueDate:        dueDate,
		DiscountTotal:  req.DiscountTotal,
		Currency:       currency,
		SupplierGSTIN:  strings.ToUpper(strings.TrimSpace(req.SupplierGSTIN)),
		RecipientGSTIN: strings.ToUpper(strings.TrimSpace(req.RecipientGSTIN)),
		RecipientEmail: strings.TrimSpace(req.RecipientEmail),
		PlaceOfSupply:  strings.TrimSpace(req.PlaceOfSupply),
		PaymentDetails: datatypes.JSONMap{},
		BillingAddress: datatypes.NewJSONType(req.BillingAddress),
		Notes:          strings.TrimSpace(req.Notes),
		Attachments:    datatypes.NewJSONSlice(req.Attachments),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if invoice.Attachments == nil {
		invoice.Attachments = datatypes.NewJSONSlice([]invoicedomain.Attachment{})
	}
	for _, item := range req.Items {
		invoice.Items = append(invoice.Items, invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			Description: strings.TrimSpace(item.Description),
			HSNCode:     strings.TrimSpace(item.HSNCode),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TaxRate:     item.TaxRate,
			CreatedAt:   now,
		})
	}

	invoice.Recalculate()
	if err := invoice.Validate(); err != nil {
		return invoicedomain.Invoice{}, err
	}

	if err := s.insertWithNumber(ctx, &invoice); err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.metrics.RecordInvoiceCreated(ctx, string(invoice.Type))
	s.emitAudit(ctx, "invoice.created", &invoice, nil)
	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("total", invoice.Total.StringFixed(2)),
	)
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := invoicedomain.ListFilter{
		UserID:     userID,
		Status:     req.Status,
		Type:       req.Type,
		IssuedFrom: req.IssuedFrom,
		IssuedTo:   req.IssuedTo,
		Limit:      pageSize,
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidInvoiceID
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidInvoiceID
		}
		filter.Cursor = &id
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	pageInfo, err := pagination.BuildCursorPageInfo(items, pageSize, func(item *invoicedomain.Invoice) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String()}
	})
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	return invoicedomain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) Send(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.RecipientEmail == "" {
		return invoicedomain.Invoice{}, invoicedomain.ErrMissingRecipient
	}

	from := invoice.Status
	now := s.clock.Now()
	if err := invoice.Send(now); err != nil {
		return invoicedomain.Invoice{}, err
	}

	// The mail goes out only after the row is written; a failed delivery
	// rolls the write back so the invoice stays a draft.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateLifecycle(ctx, tx, invoice, from); err != nil {
			return err
		}
		return s.email.SendTemplate(ctx, []string{invoice.RecipientEmail}, "invoice_sent", s.emailData(invoice, now))
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	s.afterTransition(ctx, "invoice.sent", invoice, from)
	return *invoice, nil
}

func (s *Service) MarkAsPaid(ctx context.Context, id string, req invoicedomain.MarkAsPaidRequest) (invoicedomain.Invoice, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	from := invoice.Status
	if err := invoice.MarkAsPaid(req.PaymentDetails, s.clock.Now()); err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := s.repo.UpdateLifecycle(ctx, s.db, invoice, from); err != nil {
		return invoicedomain.Invoice{}, err
	}
	s.afterTransition(ctx, "invoice.paid", invoice, from)
	return *invoice, nil
}

// SendReminder records a reminder and e-mails it when the invoice has a recipient.
// Only sent and overdue invoices can be reminded, up to billing.maxReminders times.
func (s *Service) SendReminder(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.Status != invoicedomain.InvoiceStatusSent && invoice.Status != invoicedomain.InvoiceStatusOverdue {
		return invoicedomain.Invoice{}, invoicedomain.ErrReminderNotAllowed
	}
	if limit := s.billing.Get().MaxReminders; limit > 0 && invoice.ReminderCount >= limit {
		return invoicedomain.Invoice{}, invoicedomain.ErrMaxRemindersReached
	}

	from := invoice.Status
	now := s.clock.Now()
	invoice.RecordReminder(now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateLifecycle(ctx, tx, invoice, from); err != nil {
			return err
		}
		if invoice.RecipientEmail == "" {
			return nil
		}
		data := s.emailData(invoice, now)
		data["reminder_count"] = invoice.ReminderCount
		return s.email.SendTemplate(ctx, []string{invoice.RecipientEmail}, "invoice_reminder", data)
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	s.emitAudit(ctx, "invoice.reminder_sent", invoice, map[string]any{
		"reminder_count": invoice.ReminderCount,
	})
	return *invoice, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	return s.applyTransition(ctx, id, "invoice.cancelled", (*invoicedomain.Invoice).Cancel)
}

func (s *Service) Refund(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	return s.applyTransition(ctx, id, "invoice.refunded", (*invoicedomain.Invoice).Refund)
}

func (s *Service) applyTransition(ctx context.Context, id, action string, fn func(*invoicedomain.Invoice, time.Time) error) (invoicedomain.Invoice, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	from := invoice.Status
	if err := fn(invoice, s.clock.Now()); err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := s.repo.UpdateLifecycle(ctx, s.db, invoice, from); err != nil {
		return invoicedomain.Invoice{}, err
	}
	s.afterTransition(ctx, action, invoice, from)
	return *invoice, nil
}

// Revenue sums paid invoices whose paid date falls in [Start, End].
func (s *Service) Revenue(ctx context.Context, req invoicedomain.RevenueRequest) (invoicedomain.RevenueSummary, error) {
	if req.Start.After(req.End) {
		return invoicedomain.RevenueSummary{}, invoicedomain.ErrInvalidDateRange
	}

	row, err := s.repo.RevenueBetween(ctx, s.db, invoicedomain.RevenueFilter{
		UserID: req.UserID,
		Start:  req.Start.UTC(),
		End:    req.End.UTC(),
	})
	if err != nil {
		return invoicedomain.RevenueSummary{}, err
	}

	return invoicedomain.RevenueSummary{
		Total: row.Total.Round(2),
		Count: row.Count,
		Start: req.Start.UTC(),
		End:   req.End.UTC(),
	}, nil
}

func (s *Service) RenderPDF(ctx context.Context, id string, w io.Writer) error {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	doc, err := s.pdf.GenerateInvoice(ctx, s.pdfData(invoice))
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	_, err = io.Copy(w, doc)
	return err
}

// SweepOverdue moves every sent invoice past its due date to overdue.
func (s *Service) SweepOverdue(ctx context.Context) (invoicedomain.SweepResult, error) {
	var result invoicedomain.SweepResult
	now := s.clock.Now()

	for {
		candidates, err := s.repo.ListOverdueCandidates(ctx, s.db, now, overdueBatchSize)
		if err != nil {
			return result, err
		}
		for _, invoice := range candidates {
			if err := invoice.MarkOverdue(now); err != nil {
				continue
			}
			err := s.repo.UpdateLifecycle(ctx, s.db, invoice, invoicedomain.InvoiceStatusSent)
			if errors.Is(err, invoicedomain.ErrInvoiceChanged) {
				// paid or cancelled after the batch was read
				continue
			}
			if err != nil {
				return result, err
			}
			result.Affected++
			s.afterTransition(ctx, "invoice.overdue", invoice, invoicedomain.InvoiceStatusSent)
		}
		if len(candidates) < overdueBatchSize {
			break
		}
	}

	return result, nil
}

func (s *Service) load(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID == 0 {
		return nil, invoicedomain.ErrInvalidInvoiceID
	}

	invoice, err := s.repo.FindByID(ctx, s.db, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) afterTransition(ctx context.Context, action string, invoice *invoicedomain.Invoice, from invoicedomain.InvoiceStatus) {
	s.metrics.RecordInvoiceTransition(ctx, string(from), string(invoice.Status))
	s.emitAudit(ctx, action, invoice, map[string]any{
		"previous_status": string(from),
	})
}

func (s *Service) emitAudit(ctx context.Context, action string, invoice *invoicedomain.Invoice, extra map[string]any) {
	if s.auditSvc == nil || invoice == nil {
		return
	}
	metadata := map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"type":           string(invoice.Type),
		"status":         string(invoice.Status),
		"total":          invoice.Total.StringFixed(2),
		"currency":       invoice.Currency,
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	targetID := invoice.ID.String()
	userID := invoice.UserID
	_ = s.auditSvc.AuditLog(ctx, &userID, action, "invoice", &targetID, metadata)
}

func (s *Service) emailData(invoice *invoicedomain.Invoice, now time.Time) map[string]any {
	loc := s.billing.Get().Location()
	data := map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"total":          invoice.Total.StringFixed(2),
		"currency":       invoice.Currency,
		"due_date":       invoice.DueDate.In(loc).Format("02 Jan 2006"),
	}
	if days := invoice.DaysOverdue(now); days > 0 {
		data["days_overdue"] = days
	}
	return data
}

func (s *Service) pdfData(invoice *invoicedomain.Invoice) pdf.InvoiceData {
	loc := s.billing.Get().Location()
	address := invoice.BillingAddress.Data()

	data := pdf.InvoiceData{
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        strings.ToUpper(string(invoice.Status)),
		IssueDate:     invoice.IssueDate.In(loc).Format("02 Jan 2006"),
		DueDate:       invoice.DueDate.In(loc).Format("02 Jan 2006"),
		SupplierGSTIN: invoice.SupplierGSTIN,
		BillToGSTIN:   invoice.RecipientGSTIN,
		BillToAddress: formatAddress(address),
		BillToEmail:   invoice.RecipientEmail,
		PlaceOfSupply: invoice.PlaceOfSupply,
		Subtotal:      invoice.Subtotal.StringFixed(2),
		Total:         invoice.Total.StringFixed(2),
		Currency:      invoice.Currency,
		Notes:         invoice.Notes,
	}
	if invoice.PaidDate != nil {
		data.PaidDate = invoice.PaidDate.In(loc).Format("02 Jan 2006")
	}
	if invoice.IGSTTotal.IsPositive() {
		data.IGST = invoice.IGSTTotal.StringFixed(2)
	} else {
		data.CGST = invoice.CGSTTotal.StringFixed(2)
		data.SGST = invoice.SGSTTotal.StringFixed(2)
	}
	if invoice.DiscountTotal.IsPositive() {
		data.Discount = invoice.DiscountTotal.StringFixed(2)
	}
	if invoice.Type == invoicedomain.InvoiceTypeRefund {
		data.Title = "Credit Note"
	}
	for _, item := range invoice.Items {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: item.Description,
			HSNCode:     item.HSNCode,
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice.StringFixed(2),
			TaxRate:     item.TaxRate.String(),
			Amount:      item.Amount.StringFixed(2),
		})
	}
	return data
}

func (s *Service) userIDFromContext(ctx context.Context) (snowflake.ID, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return 0, invoicedomain.ErrInvalidUser
	}
	return userID, nil
}

func formatAddress(a invoicedomain.Address) string {
	parts := []string{a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			out = append(out, strings.TrimSpace(part))
		}
	}
	return strings.Join(out, ", ")
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
