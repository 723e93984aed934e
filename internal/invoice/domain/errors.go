package domain

import "errors"

var (
	ErrInvalidUser            = errors.New("invalid_user")
	ErrInvalidInvoiceID       = errors.New("invalid_invoice_id")
	ErrInvoiceNotFound        = errors.New("invoice_not_found")
	ErrInvalidInvoiceType     = errors.New("invalid_invoice_type")
	ErrInvalidTransition      = errors.New("invalid_status_transition")
	ErrInvoiceChanged         = errors.New("invoice_changed_concurrently")
	ErrNegativeAmount         = errors.New("negative_amount")
	ErrDiscountExceedsTotal   = errors.New("discount_exceeds_total")
	ErrEmptyItems             = errors.New("invoice_items_required")
	ErrInvalidQuantity        = errors.New("invalid_quantity")
	ErrInvalidDueDate         = errors.New("due_date_before_issue_date")
	ErrInvalidDateRange       = errors.New("invalid_date_range")
	ErrMalformedInvoiceNumber = errors.New("malformed_invoice_number")
	ErrNumberAlreadyAssigned  = errors.New("invoice_number_already_assigned")
	ErrNumberConflict         = errors.New("invoice_number_conflict")
	ErrMaxRemindersReached    = errors.New("max_reminders_reached")
	ErrReminderNotAllowed     = errors.New("reminder_not_allowed")
	ErrMissingRecipient       = errors.New("missing_recipient_email")
)
