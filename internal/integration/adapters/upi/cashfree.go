// Package upi holds the UPI and bank verification adapters.
package upi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/gstbill/internal/integration/adapters/restclient"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"go.uber.org/zap"
)

const (
	KeyCashfree = "cashfree"

	cashfreeAPIVersion = "2023-08-01"
)

var ErrMissingReference = errors.New("missing_order_or_vpa")

type CashfreeConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RetryMax     int
}

type Cashfree struct {
	api    *restclient.Client
	header http.Header
	log    *zap.Logger
}

func NewCashfree(cfg CashfreeConfig, log *zap.Logger) *Cashfree {
	if log == nil {
		log = zap.NewNop()
	}
	header := http.Header{}
	header.Set("x-client-id", cfg.ClientID)
	header.Set("x-client-secret", cfg.ClientSecret)
	header.Set("x-api-version", cashfreeAPIVersion)

	return &Cashfree{
		api:    restclient.New(restclient.Options{BaseURL: cfg.BaseURL, RetryMax: cfg.RetryMax, Log: log}),
		header: header,
		log:    log.Named("cashfree"),
	}
}

func (c *Cashfree) Key() string { return KeyCashfree }

func (c *Cashfree) Category() domain.Category { return domain.CategoryUPI }

// InitiateUPI creates an order and raises a collect request against the VPA.
func (c *Cashfree) InitiateUPI(ctx context.Context, req domain.UPIRequest) (map[string]any, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	customer := map[string]any{
		"customer_id":    customerID(req),
		"customer_phone": req.Mobile,
	}
	if req.Email != "" {
		customer["customer_email"] = req.Email
	}
	order := map[string]any{
		"order_id":         req.OrderID,
		"order_amount":     req.Amount.Round(2).InexactFloat64(),
		"order_currency":   "INR",
		"order_note":       req.Note,
		"customer_details": customer,
	}

	var created struct {
		OrderID          string `json:"order_id"`
		OrderStatus      string `json:"order_status"`
		PaymentSessionID string `json:"payment_session_id"`
	}
	if err := c.api.Do(ctx, http.MethodPost, "/pg/orders", c.header, order, &created); err != nil {
		return nil, err
	}

	pay := map[string]any{
		"payment_session_id": created.PaymentSessionID,
		"payment_method": map[string]any{
			"upi": map[string]any{
				"channel": "collect",
				"upi_id":  req.VPA,
			},
		},
	}
	var payment map[string]any
	if err := c.api.Do(ctx, http.MethodPost, "/pg/orders/sessions", c.header, pay, &payment); err != nil {
		return nil, err
	}

	out := map[string]any{
		"order_id":     created.OrderID,
		"order_status": created.OrderStatus,
	}
	for k, v := range payment {
		out[k] = v
	}
	return out, nil
}

// VerifyUPI reports the order status when an order id is given, otherwise it
// checks that the VPA exists.
func (c *Cashfree) VerifyUPI(ctx context.Context, req domain.UPIVerifyRequest) (map[string]any, error) {
	var out map[string]any
	switch {
	case strings.TrimSpace(req.OrderID) != "":
		err := c.api.Do(ctx, http.MethodGet, "/pg/orders/"+url.PathEscape(req.OrderID), c.header, nil, &out)
		return out, err
	case strings.TrimSpace(req.VPA) != "":
		err := c.api.Do(ctx, http.MethodPost, "/verification/upi", c.header, map[string]any{"vpa": req.VPA}, &out)
		return out, err
	default:
		return nil, ErrMissingReference
	}
}

func (c *Cashfree) VerifyBankAccount(ctx context.Context, req domain.BankAccountRequest) (map[string]any, error) {
	body := map[string]any{
		"bank_account": req.AccountNumber,
		"ifsc":         strings.ToUpper(req.IFSC),
	}
	if req.Name != "" {
		body["name"] = req.Name
	}
	if req.Mobile != "" {
		body["phone"] = req.Mobile
	}
	var out map[string]any
	if err := c.api.Do(ctx, http.MethodPost, "/verification/bank-account/sync", c.header, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func customerID(req domain.UPIRequest) string {
	if req.Mobile != "" {
		return "cust_" + req.Mobile
	}
	return "cust_" + strings.NewReplacer("@", "_", ".", "_").Replace(req.VPA)
}
