package accounting

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"go.uber.org/zap"
)

const (
	KeyQuickBooks = "quickbooks"

	quickBooksAuthURL      = "https://appcenter.intuit.com/connect/oauth2"
	quickBooksTokenURL     = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	quickBooksScope        = "com.intuit.quickbooks.accounting"
	quickBooksMinorVersion = "65"
	defaultQuickBooksRef   = "1"
)

type QuickBooks struct {
	app oauthApp
	log *zap.Logger
}

func NewQuickBooks(cfg OAuthConfig, log *zap.Logger) *QuickBooks {
	if cfg.AuthURL == "" {
		cfg.AuthURL = quickBooksAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = quickBooksTokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{quickBooksScope}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QuickBooks{app: newOAuthApp(cfg), log: log.Named("quickbooks")}
}

func (q *QuickBooks) Key() string { return KeyQuickBooks }

func (q *QuickBooks) Category() domain.Category { return domain.CategoryAccounting }

func (q *QuickBooks) Connect(ctx context.Context, req domain.ConnectRequest) (domain.Credentials, error) {
	realmID := strings.TrimSpace(req.RealmID)
	if realmID == "" {
		return domain.Credentials{}, domain.ErrMissingCredential
	}
	tok, err := q.app.exchange(ctx, req)
	if err != nil {
		return domain.Credentials{}, err
	}
	extra := map[string]string{"realm_id": realmID}
	for k, v := range req.Extra {
		if _, reserved := extra[k]; !reserved {
			extra[k] = v
		}
	}
	return credentialsFromToken(tok, extra), nil
}

// Sync pushes each invoice as a QuickBooks Invoice. A failed push is counted
// and logged; it does not stop the batch.
func (q *QuickBooks) Sync(ctx context.Context, creds domain.Credentials, invoices []domain.SyncInvoice) (domain.SyncResult, error) {
	realmID := creds.Extra["realm_id"]
	if realmID == "" {
		return domain.SyncResult{}, domain.ErrMissingCredential
	}
	client, source, err := q.app.client(ctx, creds)
	if err != nil {
		return domain.SyncResult{}, err
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/invoice?minorversion=%s",
		q.app.apiBase, url.PathEscape(realmID), quickBooksMinorVersion)
	customerRef := valueOr(creds.Extra["customer_ref"], defaultQuickBooksRef)
	itemRef := valueOr(creds.Extra["item_ref"], defaultQuickBooksRef)

	var result domain.SyncResult
	for _, inv := range invoices {
		payload := map[string]any{
			"DocNumber":   inv.InvoiceNumber,
			"TxnDate":     inv.IssueDate.Format("2006-01-02"),
			"DueDate":     inv.DueDate.Format("2006-01-02"),
			"CustomerRef": map[string]string{"value": customerRef},
			"CurrencyRef": map[string]string{"value": inv.Currency},
			"Line": []map[string]any{{
				"Amount":      inv.Total.StringFixed(2),
				"Description": "Invoice " + inv.InvoiceNumber,
				"DetailType":  "SalesItemLineDetail",
				"SalesItemLineDetail": map[string]any{
					"ItemRef": map[string]string{"value": itemRef},
					"Qty":     1,
				},
			}},
		}
		if inv.RecipientEmail != "" {
			payload["BillEmail"] = map[string]string{"Address": inv.RecipientEmail}
		}
		if err := postJSON(ctx, client, endpoint, payload); err != nil {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, inv.ID)
			q.log.Warn("quickbooks invoice push failed", zap.String("invoice_number", inv.InvoiceNumber), zap.Error(err))
			continue
		}
		result.Pushed++
	}

	result.Credentials = refreshed(source, creds)
	return result, nil
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
