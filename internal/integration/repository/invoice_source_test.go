package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
	invoicedomain "github.com/smallbiznis/gstbill/internal/invoice/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupInvoiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&invoicedomain.Invoice{}, &invoicedomain.InvoiceItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestInvoicesUpdatedSince(t *testing.T) {
	db := setupInvoiceDB(t)
	base := time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)

	seed := []struct {
		id      int64
		user    int64
		status  invoicedomain.InvoiceStatus
		updated time.Time
	}{
		{1, 42, invoicedomain.InvoiceStatusSent, base},
		{2, 42, invoicedomain.InvoiceStatusPaid, base.Add(2 * time.Hour)},
		{3, 42, invoicedomain.InvoiceStatusDraft, base.Add(3 * time.Hour)},
		{4, 42, invoicedomain.InvoiceStatusCancelled, base.Add(3 * time.Hour)},
		{5, 99, invoicedomain.InvoiceStatusSent, base.Add(3 * time.Hour)},
	}
	for _, s := range seed {
		inv := invoicedomain.Invoice{
			ID:            snowflake.ID(s.id),
			InvoiceNumber: fmt.Sprintf("GST-202404-%04d", s.id),
			UserID:        snowflake.ID(s.user),
			Type:          invoicedomain.InvoiceTypeOneTime,
			Status:        s.status,
			IssueDate:     base,
			DueDate:       base.AddDate(0, 0, 15),
			Total:         decimal.NewFromInt(100),
			Currency:      "INR",
			CreatedAt:     s.updated,
			UpdatedAt:     s.updated,
		}
		if err := db.Omit("Items").Create(&inv).Error; err != nil {
			t.Fatalf("seed invoice %d: %v", s.id, err)
		}
	}

	source := NewInvoiceSource(db)

	all, err := source.InvoicesUpdatedSince(context.Background(), snowflake.ID(42), nil, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != "1" || all[1].ID != "2" {
		t.Fatalf("unexpected invoices: %+v", all)
	}

	after := &domain.SyncCursor{UpdatedAt: base, ID: 1}
	recent, err := source.InvoicesUpdatedSince(context.Background(), snowflake.ID(42), after, 10)
	if err != nil {
		t.Fatalf("list after cursor: %v", err)
	}
	if len(recent) != 1 || recent[0].InvoiceNumber != "GST-202404-0002" {
		t.Fatalf("unexpected invoices after %+v: %+v", after, recent)
	}
	if !recent[0].UpdatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("updated_at not carried: %s", recent[0].UpdatedAt)
	}
}

func TestInvoicesUpdatedSinceResumesWithinTie(t *testing.T) {
	db := setupInvoiceDB(t)
	at := time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)

	for id := int64(1); id <= 3; id++ {
		inv := invoicedomain.Invoice{
			ID:            snowflake.ID(id),
			InvoiceNumber: fmt.Sprintf("GST-202404-%04d", id),
			UserID:        42,
			Type:          invoicedomain.InvoiceTypeOneTime,
			Status:        invoicedomain.InvoiceStatusSent,
			IssueDate:     at,
			DueDate:       at.AddDate(0, 0, 15),
			Currency:      "INR",
			CreatedAt:     at,
			UpdatedAt:     at,
		}
		if err := db.Omit("Items").Create(&inv).Error; err != nil {
			t.Fatalf("seed invoice %d: %v", id, err)
		}
	}

	source := NewInvoiceSource(db)
	page, err := source.InvoicesUpdatedSince(context.Background(), 42, nil, 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 2 || page[1].ID != "2" {
		t.Fatalf("unexpected first page: %+v", page)
	}

	rest, err := source.InvoicesUpdatedSince(context.Background(), 42, &domain.SyncCursor{UpdatedAt: page[1].UpdatedAt, ID: 2}, 2)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != "3" {
		t.Fatalf("invoice sharing updated_at was skipped: %+v", rest)
	}
}
