// Package domain contains the invoice record, its numbering policy and lifecycle rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceType classifies why an invoice was raised.
type InvoiceType string

const (
	InvoiceTypeSubscription InvoiceType = "subscription"
	InvoiceTypeOneTime      InvoiceType = "one_time"
	InvoiceTypeRefund       InvoiceType = "refund"
	InvoiceTypeAdjustment   InvoiceType = "adjustment"
)

func (t InvoiceType) Valid() bool {
	switch t {
	case InvoiceTypeSubscription, InvoiceTypeOneTime, InvoiceTypeRefund, InvoiceTypeAdjustment:
		return true
	}
	return false
}

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusRefunded  InvoiceStatus = "refunded"
)

// Address is a billing address snapshot stored with the invoice.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	StateCode  string `json:"state_code,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Attachment references a file stored outside the database.
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// Invoice is the persisted billing document. Monetary fields are rupees with paise precision.
type Invoice struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvoiceNumber  string        `gorm:"type:text;not null;uniqueIndex:ux_invoices_invoice_number" json:"invoice_number"`
	UserID         snowflake.ID  `gorm:"not null;index:idx_invoices_user_status,priority:1" json:"user_id"`
	SubscriptionID *string       `gorm:"type:text" json:"subscription_id,omitempty"`
	Type           InvoiceType   `gorm:"type:text;not null;default:'one_time'" json:"type"`
	Status         InvoiceStatus `gorm:"type:text;not null;default:'draft';index:idx_invoices_user_status,priority:2;index:idx_invoices_due_status,priority:2" json:"status"`

	IssueDate time.Time  `gorm:"not null" json:"issue_date"`
	DueDate   time.Time  `gorm:"not null;index:idx_invoices_due_status,priority:1" json:"due_date"`
	PaidDate  *time.Time `json:"paid_date,omitempty"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items"`

	Subtotal      decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"subtotal"`
	TaxTotal      decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"tax_total"`
	DiscountTotal decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"discount_total"`
	Total         decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"total"`
	CGSTTotal     decimal.Decimal `gorm:"column:cgst_total;type:numeric(18,2);not null;default:0" json:"cgst_total"`
	SGSTTotal     decimal.Decimal `gorm:"column:sgst_total;type:numeric(18,2);not null;default:0" json:"sgst_total"`
	IGSTTotal     decimal.Decimal `gorm:"column:igst_total;type:numeric(18,2);not null;default:0" json:"igst_total"`
	Currency      string          `gorm:"type:text;not null;default:'INR'" json:"currency"`

	SupplierGSTIN  string `gorm:"column:supplier_gstin;type:text" json:"supplier_gstin,omitempty"`
	RecipientGSTIN string `gorm:"column:recipient_gstin;type:text" json:"recipient_gstin,omitempty"`
	RecipientEmail string `gorm:"type:text" json:"recipient_email,omitempty"`
	PlaceOfSupply  string `gorm:"type:text" json:"place_of_supply,omitempty"`

	PaymentMethod  string                              `gorm:"type:text" json:"payment_method,omitempty"`
	PaymentDetails datatypes.JSONMap                   `gorm:"type:jsonb;not null;default:'{}'" json:"payment_details"`
	BillingAddress datatypes.JSONType[Address]         `gorm:"type:jsonb;not null;default:'{}'" json:"billing_address"`
	Notes          string                              `gorm:"type:text" json:"notes,omitempty"`
	Attachments    datatypes.JSONSlice[Attachment]     `gorm:"type:jsonb;not null;default:'[]'" json:"attachments"`

	EmailSentCount   int        `gorm:"not null;default:0" json:"email_sent_count"`
	LastEmailSent    *time.Time `json:"last_email_sent,omitempty"`
	ReminderCount    int        `gorm:"not null;default:0" json:"reminder_count"`
	LastReminderSent *time.Time `json:"last_reminder_sent,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Position    int             `gorm:"not null" json:"position"`
	Description string          `gorm:"type:text;not null" json:"description"`
	HSNCode     string          `gorm:"column:hsn_code;type:text" json:"hsn_code,omitempty"`
	Quantity    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	TaxRate     decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"tax_rate"`
	TaxAmount   decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"tax_amount"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
