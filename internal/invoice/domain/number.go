package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const invoiceNumberScheme = "GST"

// InvoiceNumberPrefix returns the per-period prefix, e.g. "GST-202401-".
// The caller must convert issueDate into the billing time zone first.
func InvoiceNumberPrefix(issueDate time.Time) string {
	return fmt.Sprintf("%s-%04d%02d-", invoiceNumberScheme, issueDate.Year(), int(issueDate.Month()))
}

// FormatInvoiceNumber renders a number for the period of issueDate. Sequences wider
// than four digits are not truncated.
func FormatInvoiceNumber(issueDate time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", InvoiceNumberPrefix(issueDate), seq)
}

// ParseInvoiceSequence extracts the counter from number. The number must start with prefix
// and end in a positive decimal counter.
func ParseInvoiceSequence(number, prefix string) (int, error) {
	if !strings.HasPrefix(number, prefix) {
		return 0, ErrMalformedInvoiceNumber
	}
	suffix := strings.TrimPrefix(number, prefix)
	if suffix == "" {
		return 0, ErrMalformedInvoiceNumber
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, ErrMalformedInvoiceNumber
		}
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil || seq <= 0 {
		return 0, ErrMalformedInvoiceNumber
	}
	return seq, nil
}
