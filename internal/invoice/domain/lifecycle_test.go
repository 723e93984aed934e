package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOverdue(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-72 * time.Hour)

	sent := Invoice{Status: InvoiceStatusSent, DueDate: past}
	assert.True(t, sent.IsOverdue(now))

	for _, status := range []InvoiceStatus{
		InvoiceStatusDraft, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled, InvoiceStatusRefunded,
	} {
		inv := Invoice{Status: status, DueDate: past}
		assert.Falsef(t, inv.IsOverdue(now), "status %s", status)
	}

	notDue := Invoice{Status: InvoiceStatusSent, DueDate: now.Add(time.Hour)}
	assert.False(t, notDue.IsOverdue(now))
}

func TestDaysOverdue(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	inv := Invoice{Status: InvoiceStatusSent, DueDate: now.Add(-72 * time.Hour)}
	assert.Equal(t, 3, inv.DaysOverdue(now))

	partial := Invoice{Status: InvoiceStatusSent, DueDate: now.Add(-25 * time.Hour)}
	assert.Equal(t, 2, partial.DaysOverdue(now))

	paid := Invoice{Status: InvoiceStatusPaid, DueDate: now.Add(-72 * time.Hour)}
	assert.Equal(t, 0, paid.DaysOverdue(now))
}

func TestMarkAsPaidTwiceKeepsLatestDetails(t *testing.T) {
	t1 := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	inv := Invoice{Status: InvoiceStatusSent}
	require.NoError(t, inv.MarkAsPaid(map[string]any{"transactionId": "t1", "method": "upi"}, t1))
	require.NoError(t, inv.MarkAsPaid(map[string]any{"transactionId": "t2"}, t2))

	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.Equal(t, "t2", inv.PaymentDetails["transactionId"])
	assert.Equal(t, "upi", inv.PaymentDetails["method"])
	require.NotNil(t, inv.PaidDate)
	assert.True(t, inv.PaidDate.Equal(t2))
}

func TestMarkAsPaidRejectsClosedInvoices(t *testing.T) {
	now := time.Now()
	for _, status := range []InvoiceStatus{InvoiceStatusCancelled, InvoiceStatusRefunded} {
		inv := Invoice{Status: status}
		assert.ErrorIs(t, inv.MarkAsPaid(nil, now), ErrInvalidTransition)
	}
}

func TestRecordReminderLeavesStatus(t *testing.T) {
	now := time.Now()
	inv := Invoice{Status: InvoiceStatusSent}
	inv.RecordReminder(now)
	inv.RecordReminder(now)

	assert.Equal(t, 2, inv.ReminderCount)
	assert.Equal(t, InvoiceStatusSent, inv.Status)
	require.NotNil(t, inv.LastReminderSent)
}

func TestTransitions(t *testing.T) {
	now := time.Now()

	inv := Invoice{Status: InvoiceStatusDraft}
	require.NoError(t, inv.Send(now))
	assert.Equal(t, 1, inv.EmailSentCount)
	assert.ErrorIs(t, inv.Refund(now), ErrInvalidTransition)

	require.NoError(t, inv.MarkAsPaid(nil, now))
	require.NoError(t, inv.Refund(now))
	assert.ErrorIs(t, inv.Cancel(now), ErrInvalidTransition)

	overdue := Invoice{Status: InvoiceStatusSent, DueDate: now.Add(-time.Hour)}
	require.NoError(t, overdue.MarkOverdue(now))
	assert.Equal(t, InvoiceStatusOverdue, overdue.Status)
	assert.ErrorIs(t, overdue.MarkOverdue(now), ErrInvalidTransition)
}

func TestRecalculateSplitsTax(t *testing.T) {
	inv := Invoice{
		Type:          InvoiceTypeOneTime,
		SupplierGSTIN: "27AAPFU0939F1ZV",
		PlaceOfSupply: "27",
		DiscountTotal: decimal.NewFromInt(10),
		Items: []InvoiceItem{
			{Description: "Plan", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100), TaxRate: decimal.NewFromInt(18)},
			{Description: "Setup", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("50.50"), TaxRate: decimal.Zero},
		},
	}
	inv.Recalculate()

	assert.True(t, inv.Subtotal.Equal(decimal.RequireFromString("250.50")))
	assert.True(t, inv.TaxTotal.Equal(decimal.NewFromInt(36)))
	assert.True(t, inv.Total.Equal(decimal.RequireFromString("276.50")))
	assert.True(t, inv.CGSTTotal.Equal(decimal.NewFromInt(18)))
	assert.True(t, inv.SGSTTotal.Equal(decimal.NewFromInt(18)))
	assert.True(t, inv.IGSTTotal.IsZero())
	assert.Equal(t, 2, inv.Items[1].Position)
	require.NoError(t, inv.Validate())

	inv.PlaceOfSupply = "29"
	inv.Recalculate()
	assert.True(t, inv.IGSTTotal.Equal(decimal.NewFromInt(36)))
	assert.True(t, inv.CGSTTotal.IsZero())
}

func TestValidateRejectsExcessDiscount(t *testing.T) {
	inv := Invoice{
		Type:          InvoiceTypeOneTime,
		DiscountTotal: decimal.NewFromInt(500),
		Items: []InvoiceItem{
			{Description: "Plan", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
		},
	}
	inv.Recalculate()
	assert.ErrorIs(t, inv.Validate(), ErrDiscountExceedsTotal)

	inv.DiscountTotal = decimal.NewFromInt(-1)
	inv.Recalculate()
	assert.ErrorIs(t, inv.Validate(), ErrNegativeAmount)
}
