package payment

import (
	"context"
	"strings"

	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

const KeyStripe = "stripe"

type Stripe struct {
	client *stripe.Client
	log    *zap.Logger
}

func NewStripe(secretKey string, log *zap.Logger) *Stripe {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stripe{
		client: stripe.NewClient(secretKey, nil),
		log:    log.Named("stripe"),
	}
}

func (s *Stripe) Key() string { return KeyStripe }

func (s *Stripe) Category() domain.Category { return domain.CategoryPayment }

func (s *Stripe) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (map[string]any, error) {
	amount, err := minorUnits(req.Amount)
	if err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currencyOr(req.Currency))),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: metadata(req.Metadata, "invoice_id", req.InvoiceID),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}

	intent, err := s.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":            intent.ID,
		"status":        string(intent.Status),
		"client_secret": intent.ClientSecret,
		"amount":        intent.Amount,
		"currency":      string(intent.Currency),
	}, nil
}

func (s *Stripe) CreateRecurring(ctx context.Context, req domain.RecurringRequest) (map[string]any, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		if req.Email == "" {
			return nil, domain.ErrMissingCredential
		}
		customer, err := s.client.V1Customers.Create(ctx, &stripe.CustomerCreateParams{
			Email: stripe.String(req.Email),
		})
		if err != nil {
			return nil, err
		}
		customerID = customer.ID
	}

	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(req.PlanID)},
		},
		Metadata: metadata(req.Metadata, "", ""),
	}
	sub, err := s.client.V1Subscriptions.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":          sub.ID,
		"status":      string(sub.Status),
		"customer_id": customerID,
	}, nil
}

func (s *Stripe) Refund(ctx context.Context, req domain.RefundRequest) (map[string]any, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(req.PaymentID),
		Metadata:      metadata(nil, "reason", req.Reason),
	}
	if req.Amount != nil {
		amount, err := minorUnits(*req.Amount)
		if err != nil {
			return nil, err
		}
		params.Amount = stripe.Int64(amount)
	}
	refund, err := s.client.V1Refunds.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":     refund.ID,
		"status": string(refund.Status),
		"amount": refund.Amount,
	}, nil
}

func metadata(in map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	if key != "" && value != "" {
		out[key] = value
	}
	return out
}
