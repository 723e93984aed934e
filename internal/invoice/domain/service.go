package domain

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/gstbill/pkg/db/pagination"
)

type CreateInvoiceItem struct {
	Description string          `json:"description" binding:"required,max=500"`
	HSNCode     string          `json:"hsn_code" binding:"omitempty,max=8"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

type CreateInvoiceRequest struct {
	Type           InvoiceType         `json:"type" binding:"required"`
	SubscriptionID *string             `json:"subscription_id"`
	IssueDate      *time.Time          `json:"issue_date"`
	DueDate        *time.Time          `json:"due_date"`
	Items          []CreateInvoiceItem `json:"items" binding:"required,min=1,dive"`
	DiscountTotal  decimal.Decimal     `json:"discount_total"`
	Currency       string              `json:"currency" binding:"omitempty,len=3"`
	SupplierGSTIN  string              `json:"supplier_gstin" binding:"omitempty,gstin"`
	RecipientGSTIN string              `json:"recipient_gstin" binding:"omitempty,gstin"`
	RecipientEmail string              `json:"recipient_email" binding:"omitempty,email"`
	PlaceOfSupply  string              `json:"place_of_supply" binding:"omitempty,max=64"`
	BillingAddress Address             `json:"billing_address"`
	Notes          string              `json:"notes" binding:"omitempty,max=2000"`
	Attachments    []Attachment        `json:"attachments"`
}

type ListInvoiceRequest struct {
	pagination.Pagination
	Status     *InvoiceStatus `form:"status"`
	Type       *InvoiceType   `form:"type"`
	IssuedFrom *time.Time     `form:"issued_from" time_format:"2006-01-02"`
	IssuedTo   *time.Time     `form:"issued_to" time_format:"2006-01-02"`
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type MarkAsPaidRequest struct {
	PaymentDetails map[string]any `json:"payment_details"`
}

type RevenueRequest struct {
	UserID *snowflake.ID
	Start  time.Time
	End    time.Time
}

type RevenueSummary struct {
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
	Start time.Time       `json:"start"`
	End   time.Time       `json:"end"`
}

// SweepResult reports how many sent invoices were moved to overdue.
type SweepResult struct {
	Affected int64
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	Send(ctx context.Context, id string) (Invoice, error)
	MarkAsPaid(ctx context.Context, id string, req MarkAsPaidRequest) (Invoice, error)
	SendReminder(ctx context.Context, id string) (Invoice, error)
	Cancel(ctx context.Context, id string) (Invoice, error)
	Refund(ctx context.Context, id string) (Invoice, error)
	Revenue(ctx context.Context, req RevenueRequest) (RevenueSummary, error)
	RenderPDF(ctx context.Context, id string, w io.Writer) error
	SweepOverdue(ctx context.Context) (SweepResult, error)
}
