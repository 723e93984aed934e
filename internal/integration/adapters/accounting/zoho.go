package accounting

import (
	"context"
	"net/url"
	"strings"

	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"go.uber.org/zap"
)

const (
	KeyZoho = "zoho"

	zohoAuthURL  = "https://accounts.zoho.in/oauth/v2/auth"
	zohoTokenURL = "https://accounts.zoho.in/oauth/v2/token"
	zohoScope    = "ZohoBooks.invoices.CREATE"
)

type Zoho struct {
	app oauthApp
	log *zap.Logger
}

func NewZoho(cfg OAuthConfig, log *zap.Logger) *Zoho {
	if cfg.AuthURL == "" {
		cfg.AuthURL = zohoAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = zohoTokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{zohoScope}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Zoho{app: newOAuthApp(cfg), log: log.Named("zoho")}
}

func (z *Zoho) Key() string { return KeyZoho }

func (z *Zoho) Category() domain.Category { return domain.CategoryAccounting }

func (z *Zoho) Connect(ctx context.Context, req domain.ConnectRequest) (domain.Credentials, error) {
	org := strings.TrimSpace(req.Organization)
	if org == "" {
		return domain.Credentials{}, domain.ErrMissingCredential
	}
	tok, err := z.app.exchange(ctx, req)
	if err != nil {
		return domain.Credentials{}, err
	}
	return credentialsFromToken(tok, map[string]string{"organization_id": org}), nil
}

func (z *Zoho) Sync(ctx context.Context, creds domain.Credentials, invoices []domain.SyncInvoice) (domain.SyncResult, error) {
	org := creds.Extra["organization_id"]
	if org == "" {
		return domain.SyncResult{}, domain.ErrMissingCredential
	}
	client, source, err := z.app.client(ctx, creds)
	if err != nil {
		return domain.SyncResult{}, err
	}
	endpoint := z.app.apiBase + "/invoices?organization_id=" + url.QueryEscape(org)

	var result domain.SyncResult
	for _, inv := range invoices {
		payload := map[string]any{
			"invoice_number":   inv.InvoiceNumber,
			"reference_number": inv.ID,
			"date":             inv.IssueDate.Format("2006-01-02"),
			"due_date":         inv.DueDate.Format("2006-01-02"),
			"currency_code":    inv.Currency,
			"line_items": []map[string]any{{
				"name":     "Invoice " + inv.InvoiceNumber,
				"rate":     inv.Subtotal.StringFixed(2),
				"quantity": 1,
			}},
			"notes": "Tax " + inv.TaxTotal.StringFixed(2) + ", total " + inv.Total.StringFixed(2),
		}
		if err := postJSON(ctx, client, endpoint, payload); err != nil {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, inv.ID)
			z.log.Warn("zoho invoice push failed", zap.String("invoice_number", inv.InvoiceNumber), zap.Error(err))
			continue
		}
		result.Pushed++
	}

	result.Credentials = refreshed(source, creds)
	return result, nil
}
