package payment

import (
	"context"
	"strings"

	"github.com/razorpay/razorpay-go"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"go.uber.org/zap"
)

const (
	KeyRazorpay = "razorpay"

	defaultSubscriptionCycles = 12
)

type Razorpay struct {
	client *razorpay.Client
	log    *zap.Logger
}

func NewRazorpay(keyID, keySecret string, log *zap.Logger) *Razorpay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Razorpay{
		client: razorpay.NewClient(keyID, keySecret),
		log:    log.Named("razorpay"),
	}
}

func (r *Razorpay) Key() string { return KeyRazorpay }

func (r *Razorpay) Category() domain.Category { return domain.CategoryPayment }

// ProcessPayment creates a Razorpay order that the checkout widget completes.
func (r *Razorpay) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (map[string]any, error) {
	amount, err := minorUnits(req.Amount)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currencyOr(req.Currency),
		"notes":    notes(req.Metadata, "invoice_id", req.InvoiceID),
	}
	if req.InvoiceID != "" {
		data["receipt"] = req.InvoiceID
	}
	order, err := r.client.Order.Create(data, nil)
	if err != nil {
		return nil, err
	}
	r.log.Info("razorpay order created", zap.Any("order_id", order["id"]))
	return order, nil
}

func (r *Razorpay) CreateRecurring(ctx context.Context, req domain.RecurringRequest) (map[string]any, error) {
	count := req.TotalCount
	if count <= 0 {
		count = defaultSubscriptionCycles
	}
	data := map[string]interface{}{
		"plan_id":         strings.TrimSpace(req.PlanID),
		"total_count":     count,
		"customer_notify": 1,
		"notes":           notes(req.Metadata, "email", req.Email),
	}
	if req.CustomerID != "" {
		data["customer_id"] = req.CustomerID
	}
	return r.client.Subscription.Create(data, nil)
}

// Refund refunds the given amount, or the captured amount when none is given.
func (r *Razorpay) Refund(ctx context.Context, req domain.RefundRequest) (map[string]any, error) {
	var amount int64
	if req.Amount != nil {
		minor, err := minorUnits(*req.Amount)
		if err != nil {
			return nil, err
		}
		amount = minor
	} else {
		payment, err := r.client.Payment.Fetch(req.PaymentID, nil, nil)
		if err != nil {
			return nil, err
		}
		captured, ok := payment["amount"].(float64)
		if !ok || captured <= 0 {
			return nil, domain.ErrInvalidAmount
		}
		amount = int64(captured)
	}

	data := map[string]interface{}{}
	if req.Reason != "" {
		data["notes"] = map[string]interface{}{"reason": req.Reason}
	}
	return r.client.Payment.Refund(req.PaymentID, int(amount), data, nil)
}

func notes(metadata map[string]string, key, value string) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	if value != "" {
		out[key] = value
	}
	return out
}
