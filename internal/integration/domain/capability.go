// Package domain describes the external systems reachable through the integration
// facade and the capabilities each adapter may implement.
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryTax        Category = "tax"
	CategoryAccounting Category = "accounting"
	CategoryPayment    Category = "payment"
	CategoryUPI        Category = "upi"
)

var Categories = []Category{CategoryTax, CategoryAccounting, CategoryPayment, CategoryUPI}

// Adapter is the minimum every provider implements. Operations are discovered
// through the capability interfaces below.
type Adapter interface {
	Key() string
	Category() Category
}

type GSTINValidator interface {
	ValidateGSTIN(ctx context.Context, gstin string) (map[string]any, error)
}

type ReturnFiler interface {
	FileReturn(ctx context.Context, req FileReturnRequest) (map[string]any, error)
}

type EWayBillGenerator interface {
	GenerateEWayBill(ctx context.Context, req EWayBillRequest) (map[string]any, error)
}

type ReturnStatusChecker interface {
	ReturnStatus(ctx context.Context, req ReturnStatusRequest) (map[string]any, error)
}

type Connector interface {
	Connect(ctx context.Context, req ConnectRequest) (Credentials, error)
}

type Syncer interface {
	Sync(ctx context.Context, creds Credentials, invoices []SyncInvoice) (SyncResult, error)
}

type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) (map[string]any, error)
}

type RecurringPaymentCreator interface {
	CreateRecurring(ctx context.Context, req RecurringRequest) (map[string]any, error)
}

type Refunder interface {
	Refund(ctx context.Context, req RefundRequest) (map[string]any, error)
}

type UPIInitiator interface {
	InitiateUPI(ctx context.Context, req UPIRequest) (map[string]any, error)
}

type UPIVerifier interface {
	VerifyUPI(ctx context.Context, req UPIVerifyRequest) (map[string]any, error)
}

type BankAccountVerifier interface {
	VerifyBankAccount(ctx context.Context, req BankAccountRequest) (map[string]any, error)
}

// Capabilities lists the capability names implemented by a.
func Capabilities(a Adapter) []string {
	var out []string
	if _, ok := a.(GSTINValidator); ok {
		out = append(out, "validate_gstin")
	}
	if _, ok := a.(ReturnFiler); ok {
		out = append(out, "file_return")
	}
	if _, ok := a.(EWayBillGenerator); ok {
		out = append(out, "eway_bill")
	}
	if _, ok := a.(ReturnStatusChecker); ok {
		out = append(out, "return_status")
	}
	if _, ok := a.(Connector); ok {
		out = append(out, "connect")
	}
	if _, ok := a.(Syncer); ok {
		out = append(out, "sync")
	}
	if _, ok := a.(PaymentProcessor); ok {
		out = append(out, "process_payment")
	}
	if _, ok := a.(RecurringPaymentCreator); ok {
		out = append(out, "recurring_payment")
	}
	if _, ok := a.(Refunder); ok {
		out = append(out, "refund")
	}
	if _, ok := a.(UPIInitiator); ok {
		out = append(out, "upi_initiate")
	}
	if _, ok := a.(UPIVerifier); ok {
		out = append(out, "upi_verify")
	}
	if _, ok := a.(BankAccountVerifier); ok {
		out = append(out, "bank_verify")
	}
	return out
}

type FileReturnRequest struct {
	Provider   string         `json:"provider"`
	GSTIN      string         `json:"gstin" binding:"required,gstin"`
	ReturnType string         `json:"return_type" binding:"required,oneof=GSTR1 GSTR3B GSTR9"`
	Period     string         `json:"period" binding:"required,len=6,numeric"`
	Payload    map[string]any `json:"payload"`
}

type EWayBillRequest struct {
	Provider       string           `json:"provider"`
	SupplierGSTIN  string           `json:"supplier_gstin" binding:"required,gstin"`
	RecipientGSTIN string           `json:"recipient_gstin" binding:"omitempty,gstin"`
	DocumentNumber string           `json:"document_number" binding:"required"`
	DocumentDate   string           `json:"document_date" binding:"required"`
	Value          decimal.Decimal  `json:"value"`
	FromPincode    string           `json:"from_pincode" binding:"required,len=6,numeric"`
	ToPincode      string           `json:"to_pincode" binding:"required,len=6,numeric"`
	DistanceKM     int              `json:"distance_km" binding:"gte=0,lte=4000"`
	VehicleNumber  string           `json:"vehicle_number"`
	TransportMode  string           `json:"transport_mode" binding:"omitempty,oneof=road rail air ship"`
	Items          []map[string]any `json:"items"`
}

type ReturnStatusRequest struct {
	Provider    string `form:"provider"`
	GSTIN       string `form:"gstin" binding:"required,gstin"`
	ReturnType  string `form:"return_type" binding:"required"`
	Period      string `form:"period" binding:"required,len=6,numeric"`
	ReferenceID string `form:"reference_id"`
}

type ConnectRequest struct {
	Provider     string            `json:"provider" binding:"required"`
	Code         string            `json:"code"`
	RedirectURI  string            `json:"redirect_uri" binding:"omitempty,url"`
	RealmID      string            `json:"realm_id"`
	Organization string            `json:"organization_id"`
	Extra        map[string]string `json:"extra"`
}

// Credentials is the secret material returned by Connect. It is stored encrypted.
type Credentials struct {
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	TokenType    string            `json:"token_type,omitempty"`
	Expiry       time.Time         `json:"expiry,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

type SyncInvoice struct {
	ID             string          `json:"id"`
	InvoiceNumber  string          `json:"invoice_number"`
	IssueDate      time.Time       `json:"issue_date"`
	DueDate        time.Time       `json:"due_date"`
	Status         string          `json:"status"`
	RecipientEmail string          `json:"recipient_email"`
	Currency       string          `json:"currency"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	Total          decimal.Decimal `json:"total"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SyncResult counts pushes. FailedIDs lists the SyncInvoice.ID of every
// invoice the provider rejected.
type SyncResult struct {
	Pushed      int
	Failed      int
	FailedIDs   []string
	Credentials *Credentials
}

type PaymentRequest struct {
	Provider    string            `json:"provider" binding:"required"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency" binding:"omitempty,len=3"`
	InvoiceID   string            `json:"invoice_id"`
	Email       string            `json:"email" binding:"omitempty,email"`
	Description string            `json:"description" binding:"omitempty,max=500"`
	Metadata    map[string]string `json:"metadata"`
}

type RecurringRequest struct {
	Provider   string            `json:"provider" binding:"required"`
	PlanID     string            `json:"plan_id" binding:"required"`
	CustomerID string            `json:"customer_id"`
	TotalCount int               `json:"total_count" binding:"gte=0"`
	Email      string            `json:"email" binding:"omitempty,email"`
	Metadata   map[string]string `json:"metadata"`
}

type RefundRequest struct {
	Provider  string           `json:"provider" binding:"required"`
	PaymentID string           `json:"payment_id" binding:"required"`
	Amount    *decimal.Decimal `json:"amount"`
	Reason    string           `json:"reason" binding:"omitempty,max=255"`
}

type UPIRequest struct {
	Provider string          `json:"provider"`
	VPA      string          `json:"vpa" binding:"required,upi_vpa"`
	Amount   decimal.Decimal `json:"amount"`
	OrderID  string          `json:"order_id" binding:"required,max=64"`
	Note     string          `json:"note" binding:"omitempty,max=100"`
	Email    string          `json:"email" binding:"omitempty,email"`
	Mobile   string          `json:"mobile" binding:"omitempty,in_mobile"`
}

type UPIVerifyRequest struct {
	Provider string `json:"provider"`
	OrderID  string `json:"order_id"`
	VPA      string `json:"vpa" binding:"omitempty,upi_vpa"`
}

type BankAccountRequest struct {
	Provider      string `json:"provider"`
	AccountNumber string `json:"account_number" binding:"required,numeric,min=9,max=18"`
	IFSC          string `json:"ifsc" binding:"required,ifsc"`
	Name          string `json:"name" binding:"omitempty,max=100"`
	Mobile        string `json:"mobile" binding:"omitempty,in_mobile"`
}
