package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	invoicedomain "github.com/smallbiznis/gstbill/internal/invoice/domain"
	"github.com/smallbiznis/gstbill/pkg/db"
	"go.uber.org/zap"
)

const (
	numberLookupPageSize = 50
	maxNumberAttempts    = 5
)

// nextInvoiceNumber returns the next free number for the issue period. Candidates
// with a malformed counter are skipped.
func (s *Service) nextInvoiceNumber(ctx context.Context, issueDate time.Time) (string, error) {
	local := issueDate.In(s.billing.Get().Location())
	prefix := invoicedomain.InvoiceNumberPrefix(local)

	for offset := 0; ; offset += numberLookupPageSize {
		numbers, err := s.repo.LatestNumbers(ctx, s.db, prefix, numberLookupPageSize, offset)
		if err != nil {
			return "", err
		}
		for _, number := range numbers {
			seq, err := invoicedomain.ParseInvoiceSequence(number, prefix)
			if err != nil {
				s.log.Warn("skipping malformed invoice number",
					zap.String("invoice_number", number),
					zap.String("prefix", prefix),
				)
				continue
			}
			return invoicedomain.FormatInvoiceNumber(local, seq+1), nil
		}
		if len(numbers) < numberLookupPageSize {
			break
		}
	}

	return invoicedomain.FormatInvoiceNumber(local, 1), nil
}

// insertWithNumber assigns a number to a new invoice and inserts it. A unique
// violation means another writer took the number, so the number is recomputed.
func (s *Service) insertWithNumber(ctx context.Context, invoice *invoicedomain.Invoice) error {
	if invoice.InvoiceNumber != "" {
		return invoicedomain.ErrNumberAlreadyAssigned
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	attempt := 0
	op := func() error {
		attempt++
		number, err := s.nextInvoiceNumber(ctx, invoice.IssueDate)
		if err != nil {
			return backoff.Permanent(err)
		}
		invoice.InvoiceNumber = number

		err = s.repo.Insert(ctx, s.db, invoice)
		if err == nil {
			return nil
		}
		if db.IsDuplicateKeyErr(err) {
			s.log.Warn("invoice number taken, retrying",
				zap.String("invoice_number", number),
				zap.Int("attempt", attempt),
			)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxNumberAttempts-1), ctx))
	if err != nil {
		invoice.InvoiceNumber = ""
		if db.IsDuplicateKeyErr(err) {
			return errors.Join(invoicedomain.ErrNumberConflict, err)
		}
		return err
	}
	return nil
}
