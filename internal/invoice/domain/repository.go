package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID     snowflake.ID
	Status     *InvoiceStatus
	Type       *InvoiceType
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	Cursor     *snowflake.ID
	Limit      int
}

type RevenueFilter struct {
	UserID *snowflake.ID
	Start  time.Time
	End    time.Time
}

type RevenueRow struct {
	Total decimal.Decimal
	Count int64
}

// Repository persists invoices. No method rewrites invoice_number once inserted.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Invoice, error)
	LatestNumbers(ctx context.Context, db *gorm.DB, prefix string, limit, offset int) ([]string, error)
	UpdateLifecycle(ctx context.Context, db *gorm.DB, invoice *Invoice, from InvoiceStatus) error
	RevenueBetween(ctx context.Context, db *gorm.DB, filter RevenueFilter) (RevenueRow, error)
	ListOverdueCandidates(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*Invoice, error)
}
