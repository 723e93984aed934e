package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var allowedTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusCancelled, InvoiceStatusPaid},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:    {InvoiceStatusRefunded},
}

// CanTransition reports whether from -> to is a legal status change.
// Re-marking a paid invoice is handled by MarkAsPaid and is not listed here.
func CanTransition(from, to InvoiceStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsOverdue is true only for a sent invoice whose due date has passed.
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status == InvoiceStatusSent && i.DueDate.Before(now)
}

// DaysOverdue counts started days past the due date, or 0 when not overdue.
func (i *Invoice) DaysOverdue(now time.Time) int {
	if !i.IsOverdue(now) {
		return 0
	}
	return int(math.Ceil(now.Sub(i.DueDate).Hours() / 24))
}

// MarkAsPaid moves the invoice to paid, stamps PaidDate and merges details into
// PaymentDetails. Calling it on a paid invoice re-stamps PaidDate.
func (i *Invoice) MarkAsPaid(details map[string]any, now time.Time) error {
	if i.Status != InvoiceStatusPaid && !CanTransition(i.Status, InvoiceStatusPaid) {
		return ErrInvalidTransition
	}
	if i.PaymentDetails == nil {
		i.PaymentDetails = datatypes.JSONMap{}
	}
	for key, value := range details {
		if strings.TrimSpace(key) == "" {
			continue
		}
		i.PaymentDetails[key] = value
	}
	if method, ok := details["method"].(string); ok && strings.TrimSpace(method) != "" {
		i.PaymentMethod = strings.TrimSpace(method)
	}
	paid := now.UTC()
	i.Status = InvoiceStatusPaid
	i.PaidDate = &paid
	i.UpdatedAt = paid
	return nil
}

// RecordReminder increments the reminder counter. The status is left unchanged.
func (i *Invoice) RecordReminder(now time.Time) {
	sent := now.UTC()
	i.ReminderCount++
	i.LastReminderSent = &sent
	i.UpdatedAt = sent
}

// Send moves a draft to sent and records the delivery.
func (i *Invoice) Send(now time.Time) error {
	if err := i.transition(InvoiceStatusSent, now); err != nil {
		return err
	}
	sent := now.UTC()
	i.EmailSentCount++
	i.LastEmailSent = &sent
	return nil
}

func (i *Invoice) Cancel(now time.Time) error {
	return i.transition(InvoiceStatusCancelled, now)
}

func (i *Invoice) Refund(now time.Time) error {
	return i.transition(InvoiceStatusRefunded, now)
}

// MarkOverdue persists the derived overdue predicate as an explicit status.
func (i *Invoice) MarkOverdue(now time.Time) error {
	if !i.IsOverdue(now) {
		return ErrInvalidTransition
	}
	return i.transition(InvoiceStatusOverdue, now)
}

func (i *Invoice) transition(to InvoiceStatus, now time.Time) error {
	if !CanTransition(i.Status, to) {
		return ErrInvalidTransition
	}
	i.Status = to
	i.UpdatedAt = now.UTC()
	return nil
}

var hundred = decimal.NewFromInt(100)

// Recalculate derives item amounts and invoice totals from the items. DiscountTotal is
// kept as given. Tax is split into CGST/SGST when the place of supply matches the
// supplier's state code, IGST otherwise.
func (i *Invoice) Recalculate() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for idx := range i.Items {
		item := &i.Items[idx]
		item.Position = idx + 1
		item.Amount = item.Quantity.Mul(item.UnitPrice).Round(2)
		item.TaxAmount = item.Amount.Mul(item.TaxRate).Div(hundred).Round(2)
		subtotal = subtotal.Add(item.Amount)
		tax = tax.Add(item.TaxAmount)
	}

	i.Subtotal = subtotal
	i.TaxTotal = tax
	i.DiscountTotal = i.DiscountTotal.Round(2)
	i.Total = subtotal.Add(tax).Sub(i.DiscountTotal)

	i.CGSTTotal = decimal.Zero
	i.SGSTTotal = decimal.Zero
	i.IGSTTotal = decimal.Zero
	if i.IsIntraState() {
		half := tax.Div(decimal.NewFromInt(2)).Round(2)
		i.CGSTTotal = half
		i.SGSTTotal = tax.Sub(half)
	} else {
		i.IGSTTotal = tax
	}
}

// IsIntraState compares the place of supply with the first two digits of the supplier GSTIN.
func (i *Invoice) IsIntraState() bool {
	supplier := strings.TrimSpace(i.SupplierGSTIN)
	place := strings.TrimSpace(i.PlaceOfSupply)
	if len(supplier) < 2 || place == "" {
		return true
	}
	if len(place) > 2 {
		place = place[:2]
	}
	return supplier[:2] == place
}

// Validate checks the monetary invariants of an invoice about to be written.
func (i *Invoice) Validate() error {
	if !i.Type.Valid() {
		return ErrInvalidInvoiceType
	}
	if len(i.Items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range i.Items {
		if !item.Quantity.IsPositive() {
			return ErrInvalidQuantity
		}
		if item.UnitPrice.IsNegative() || item.TaxRate.IsNegative() {
			return ErrNegativeAmount
		}
	}
	if i.DiscountTotal.GreaterThan(i.Subtotal.Add(i.TaxTotal)) {
		return ErrDiscountExceedsTotal
	}
	for _, amount := range []decimal.Decimal{i.Subtotal, i.TaxTotal, i.DiscountTotal, i.Total} {
		if amount.IsNegative() {
			return ErrNegativeAmount
		}
	}
	if i.DueDate.Before(i.IssueDate) {
		return ErrInvalidDueDate
	}
	return nil
}
