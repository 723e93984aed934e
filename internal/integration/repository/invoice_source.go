package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
	invoicedomain "github.com/smallbiznis/gstbill/internal/invoice/domain"
	"gorm.io/gorm"
)

type invoiceSource struct {
	db *gorm.DB
}

// NewInvoiceSource reads issued invoices straight from the invoices table.
// Drafts and cancelled invoices never leave the system.
func NewInvoiceSource(db *gorm.DB) domain.InvoiceSource {
	return &invoiceSource{db: db}
}

func (s *invoiceSource) InvoicesUpdatedSince(ctx context.Context, userID snowflake.ID, after *domain.SyncCursor, limit int) ([]domain.SyncInvoice, error) {
	stmt := s.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("user_id = ?", userID).
		Where("status NOT IN ?", []invoicedomain.InvoiceStatus{
			invoicedomain.InvoiceStatusDraft,
			invoicedomain.InvoiceStatusCancelled,
		})
	if after != nil {
		at := after.UpdatedAt.UTC()
		stmt = stmt.Where("(updated_at > ? OR (updated_at = ? AND id > ?))", at, at, after.ID)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}

	var rows []invoicedomain.Invoice
	if err := stmt.Order("updated_at asc").Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.SyncInvoice, 0, len(rows))
	for _, inv := range rows {
		out = append(out, domain.SyncInvoice{
			ID:             inv.ID.String(),
			InvoiceNumber:  inv.InvoiceNumber,
			IssueDate:      inv.IssueDate,
			DueDate:        inv.DueDate,
			Status:         string(inv.Status),
			RecipientEmail: inv.RecipientEmail,
			Currency:       inv.Currency,
			Subtotal:       inv.Subtotal,
			TaxTotal:       inv.TaxTotal,
			Total:          inv.Total,
			UpdatedAt:      inv.UpdatedAt,
		})
	}
	return out, nil
}
