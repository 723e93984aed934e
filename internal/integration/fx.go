package integration

import (
	"github.com/smallbiznis/gstbill/internal/clock"
	"github.com/smallbiznis/gstbill/internal/config"
	"github.com/smallbiznis/gstbill/internal/integration/adapters"
	"github.com/smallbiznis/gstbill/internal/integration/adapters/accounting"
	"github.com/smallbiznis/gstbill/internal/integration/adapters/gst"
	"github.com/smallbiznis/gstbill/internal/integration/adapters/payment"
	"github.com/smallbiznis/gstbill/internal/integration/adapters/upi"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"github.com/smallbiznis/gstbill/internal/integration/repository"
	"github.com/smallbiznis/gstbill/internal/integration/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("integration.service",
	fx.Provide(NewRegistry),
	fx.Provide(repository.Provide),
	fx.Provide(repository.NewInvoiceSource),
	fx.Provide(service.NewService),
)

// NewRegistry registers every known provider. Placeholders keep their key
// reserved so callers get not_supported rather than unsupported_provider.
func NewRegistry(cfg config.Config, clk clock.Clock, log *zap.Logger) *adapters.Registry {
	providers := cfg.Integrations
	log = log.Named("integration")

	return adapters.NewRegistry(
		gst.NewGSTN(gst.GSTNConfig{
			BaseURL:      providers.GSTN.BaseURL,
			ClientID:     providers.GSTN.ClientID,
			ClientSecret: providers.GSTN.ClientSecret,
		}, clk, log),
		adapters.NewPlaceholder(domain.CategoryTax, "cleartax"),

		accounting.NewQuickBooks(accounting.OAuthConfig{
			ClientID:     providers.QuickBooks.ClientID,
			ClientSecret: providers.QuickBooks.ClientSecret,
			RedirectURL:  providers.QuickBooks.RedirectURL,
			APIBaseURL:   quickBooksBaseURL(providers.QuickBooks),
		}, log),
		accounting.NewZoho(accounting.OAuthConfig{
			ClientID:     providers.Zoho.ClientID,
			ClientSecret: providers.Zoho.ClientSecret,
			RedirectURL:  providers.Zoho.RedirectURL,
			APIBaseURL:   providers.Zoho.BaseURL,
		}, log),
		accounting.NewTally(),

		payment.NewRazorpay(providers.Razorpay.ClientID, providers.Razorpay.ClientSecret, log),
		payment.NewStripe(providers.Stripe.ClientSecret, log),
		adapters.NewPlaceholder(domain.CategoryPayment, "payu"),

		upi.NewCashfree(upi.CashfreeConfig{
			BaseURL:      cashfreeBaseURL(providers.Cashfree),
			ClientID:     providers.Cashfree.ClientID,
			ClientSecret: providers.Cashfree.ClientSecret,
		}, log),
		adapters.NewPlaceholder(domain.CategoryUPI, "phonepe"),
	)
}

const (
	quickBooksProduction = "https://quickbooks.api.intuit.com"
	quickBooksSandbox    = "https://sandbox-quickbooks.api.intuit.com"
	cashfreeProduction   = "https://api.cashfree.com"
	cashfreeSandbox      = "https://sandbox.cashfree.com"
)

func quickBooksBaseURL(p config.ProviderConfig) string {
	if p.Sandbox && (p.BaseURL == "" || p.BaseURL == quickBooksProduction) {
		return quickBooksSandbox
	}
	return p.BaseURL
}

func cashfreeBaseURL(p config.ProviderConfig) string {
	if p.Sandbox && (p.BaseURL == "" || p.BaseURL == cashfreeProduction) {
		return cashfreeSandbox
	}
	return p.BaseURL
}
