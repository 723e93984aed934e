package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gstbill/internal/invoice/domain"
	"github.com/smallbiznis/gstbill/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	if invoice == nil {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := invoice.Items
		if err := tx.Omit("Items").Create(invoice).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Where("id = ? AND user_id = ?", id, userID).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Invoice, error) {
	opts := []option.QueryOption{
		option.ApplyOperator(option.Condition{Field: "user_id", Value: filter.UserID}),
	}
	if filter.Status != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Value: *filter.Status}))
	}
	if filter.Type != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "type", Value: *filter.Type}))
	}
	if filter.IssuedFrom != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "issue_date", Operator: option.GTE, Value: filter.IssuedFrom.UTC()}))
	}
	if filter.IssuedTo != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "issue_date", Operator: option.LTE, Value: filter.IssuedTo.UTC()}))
	}
	if filter.Cursor != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "id", Operator: option.LT, Value: *filter.Cursor}))
	}
	if filter.Limit > 0 {
		opts = append(opts, option.WithLimit(filter.Limit+1))
	}

	var invoices []*domain.Invoice
	stmt := option.Apply(db.WithContext(ctx).Model(&domain.Invoice{}), opts...).Order("id desc")
	if err := stmt.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// LatestNumbers returns invoice numbers carrying prefix, highest sequence first.
// Ordering by length keeps zero-padded sequences numeric past 9999.
func (r *repo) LatestNumbers(ctx context.Context, db *gorm.DB, prefix string, limit, offset int) ([]string, error) {
	var numbers []string
	err := db.WithContext(ctx).Raw(
		`SELECT invoice_number
		 FROM invoices
		 WHERE invoice_number LIKE ?
		 ORDER BY LENGTH(invoice_number) DESC, invoice_number DESC
		 LIMIT ? OFFSET ?`,
		prefix+"%",
		limit,
		offset,
	).Scan(&numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

// UpdateLifecycle writes the lifecycle columns only while the stored status
// still equals from. A row that moved on since it was loaded yields
// ErrInvoiceChanged and is left untouched.
func (r *repo) UpdateLifecycle(ctx context.Context, db *gorm.DB, invoice *domain.Invoice, from domain.InvoiceStatus) error {
	result := db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("id = ? AND user_id = ? AND status = ?", invoice.ID, invoice.UserID, from).
		Updates(map[string]any{
			"status":             invoice.Status,
			"paid_date":          invoice.PaidDate,
			"payment_method":     invoice.PaymentMethod,
			"payment_details":    invoice.PaymentDetails,
			"email_sent_count":   invoice.EmailSentCount,
			"last_email_sent":    invoice.LastEmailSent,
			"reminder_count":     invoice.ReminderCount,
			"last_reminder_sent": invoice.LastReminderSent,
			"updated_at":         invoice.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrInvoiceChanged
	}
	return nil
}

func (r *repo) RevenueBetween(ctx context.Context, db *gorm.DB, filter domain.RevenueFilter) (domain.RevenueRow, error) {
	var row domain.RevenueRow
	stmt := db.WithContext(ctx).Model(&domain.Invoice{}).
		Select("COALESCE(SUM(total), 0) AS total, COUNT(*) AS count").
		Where("status = ?", domain.InvoiceStatusPaid).
		Where("paid_date BETWEEN ? AND ?", filter.Start.UTC(), filter.End.UTC())
	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if err := stmt.Scan(&row).Error; err != nil {
		return domain.RevenueRow{}, err
	}
	return row, nil
}

func (r *repo) ListOverdueCandidates(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).
		Where("status = ? AND due_date < ?", domain.InvoiceStatusSent, now.UTC()).
		Order("due_date asc, id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}
