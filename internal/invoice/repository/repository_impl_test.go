package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/gstbill/internal/invoice/domain"
	"github.com/smallbiznis/gstbill/pkg/db"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(&domain.Invoice{}, &domain.InvoiceItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newInvoice(id snowflake.ID, number string, now time.Time) *domain.Invoice {
	return &domain.Invoice{
		ID:            id,
		InvoiceNumber: number,
		UserID:        7,
		Type:          domain.InvoiceTypeOneTime,
		Status:        domain.InvoiceStatusDraft,
		IssueDate:     now,
		DueDate:       now.Add(24 * time.Hour),
		Currency:      "INR",
		Items: []domain.InvoiceItem{
			{ID: id*10 + 1, InvoiceID: id, Position: 1, Description: "Plan", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10), Amount: decimal.NewFromInt(10), CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestLatestNumbersOrdersWideSequencesNumerically(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	for i, number := range []string{"GST-202401-9999", "GST-202401-10000", "GST-202401-0002", "GST-202402-0050"} {
		if err := r.Insert(ctx, conn, newInvoice(snowflake.ID(i+1), number, now)); err != nil {
			t.Fatalf("insert %s: %v", number, err)
		}
	}

	numbers, err := r.LatestNumbers(ctx, conn, "GST-202401-", 10, 0)
	if err != nil {
		t.Fatalf("latest numbers: %v", err)
	}
	want := []string{"GST-202401-10000", "GST-202401-9999", "GST-202401-0002"}
	if len(numbers) != len(want) {
		t.Fatalf("expected %v, got %v", want, numbers)
	}
	for i := range want {
		if numbers[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, numbers)
		}
	}
}

func TestInsertRejectsDuplicateNumber(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := r.Insert(ctx, conn, newInvoice(1, "GST-202401-0001", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := r.Insert(ctx, conn, newInvoice(2, "GST-202401-0001", now))
	if !db.IsDuplicateKeyErr(err) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}

	var items int64
	if err := conn.Model(&domain.InvoiceItem{}).Count(&items).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if items != 1 {
		t.Fatalf("expected failed insert to roll back items, got %d", items)
	}
}

func TestUpdateLifecycleKeepsNumber(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	inv := newInvoice(1, "GST-202401-0001", now)
	if err := r.Insert(ctx, conn, inv); err != nil {
		t.Fatalf("insert: %v", err)
	}

	inv.InvoiceNumber = "GST-202401-9999"
	inv.Status = domain.InvoiceStatusSent
	if err := r.UpdateLifecycle(ctx, conn, inv, domain.InvoiceStatusDraft); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, err := r.FindByID(ctx, conn, 7, 1)
	if err != nil || stored == nil {
		t.Fatalf("find: %v", err)
	}
	if stored.InvoiceNumber != "GST-202401-0001" {
		t.Fatalf("invoice number rewritten to %s", stored.InvoiceNumber)
	}
	if stored.Status != domain.InvoiceStatusSent {
		t.Fatalf("expected sent, got %s", stored.Status)
	}
	if len(stored.Items) != 1 {
		t.Fatalf("expected items preloaded")
	}

	missing, err := r.FindByID(ctx, conn, 8, 1)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for other user, got %v %v", missing, err)
	}
}

func TestUpdateLifecycleRejectsStaleStatus(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	inv := newInvoice(1, "GST-202401-0001", now)
	inv.Status = domain.InvoiceStatusSent
	if err := r.Insert(ctx, conn, inv); err != nil {
		t.Fatalf("insert: %v", err)
	}

	paid := *inv
	paid.Status = domain.InvoiceStatusPaid
	paidAt := now.Add(time.Hour)
	paid.PaidDate = &paidAt
	if err := r.UpdateLifecycle(ctx, conn, &paid, domain.InvoiceStatusSent); err != nil {
		t.Fatalf("pay: %v", err)
	}

	stale := *inv
	stale.Status = domain.InvoiceStatusOverdue
	stale.PaidDate = nil
	err := r.UpdateLifecycle(ctx, conn, &stale, domain.InvoiceStatusSent)
	if !errors.Is(err, domain.ErrInvoiceChanged) {
		t.Fatalf("expected ErrInvoiceChanged, got %v", err)
	}

	stored, err := r.FindByID(ctx, conn, 7, 1)
	if err != nil || stored == nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Status != domain.InvoiceStatusPaid || stored.PaidDate == nil {
		t.Fatalf("stale write clobbered payment: status=%s paid_date=%v", stored.Status, stored.PaidDate)
	}

	other := *inv
	other.UserID = 8
	if err := r.UpdateLifecycle(ctx, conn, &other, domain.InvoiceStatusPaid); !errors.Is(err, domain.ErrInvoiceChanged) {
		t.Fatalf("expected ErrInvoiceChanged for foreign user, got %v", err)
	}
}

func TestListAppliesFiltersAndCursor(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()
	jan := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)

	fixtures := []struct {
		id     snowflake.ID
		issued time.Time
		status domain.InvoiceStatus
	}{
		{1, jan, domain.InvoiceStatusSent},
		{2, jan, domain.InvoiceStatusDraft},
		{3, feb, domain.InvoiceStatusSent},
		{4, feb, domain.InvoiceStatusSent},
	}
	for _, f := range fixtures {
		inv := newInvoice(f.id, fmt.Sprintf("GST-%s-%04d", f.issued.Format("200601"), f.id), f.issued)
		inv.Status = f.status
		if err := r.Insert(ctx, conn, inv); err != nil {
			t.Fatalf("insert %d: %v", f.id, err)
		}
	}
	other := newInvoice(5, "GST-202402-0005", feb)
	other.UserID = 8
	other.Status = domain.InvoiceStatusSent
	if err := r.Insert(ctx, conn, other); err != nil {
		t.Fatalf("insert other user: %v", err)
	}

	sent := domain.InvoiceStatusSent
	from := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	got, err := r.List(ctx, conn, domain.ListFilter{UserID: 7, Status: &sent, IssuedFrom: &from})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != 4 || got[1].ID != 3 {
		t.Fatalf("expected invoices 4,3 got %v", ids(got))
	}

	cursor := snowflake.ID(4)
	got, err = r.List(ctx, conn, domain.ListFilter{UserID: 7, Status: &sent, Cursor: &cursor, Limit: 1})
	if err != nil {
		t.Fatalf("list with cursor: %v", err)
	}
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 1 {
		t.Fatalf("expected limit+1 rows 3,1 got %v", ids(got))
	}
}

func ids(invoices []*domain.Invoice) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, inv.ID)
	}
	return out
}
