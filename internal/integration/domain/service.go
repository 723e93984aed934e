package domain

import "context"

type ProviderStatus struct {
	Provider     string   `json:"provider"`
	Capabilities []string `json:"capabilities"`
}

type CategoryStatus struct {
	Category  Category         `json:"category"`
	Providers []ProviderStatus `json:"providers"`
}

type StatusResponse struct {
	Categories []CategoryStatus `json:"categories"`
	Accounting *Connection      `json:"accounting_connection,omitempty"`
}

type ValidateGSTINRequest struct {
	Provider string `json:"provider"`
	GSTIN    string `json:"gstin" binding:"required,gstin"`
}

type SyncRequest struct {
	Provider string `json:"provider"`
}

// Service is the integration facade. Every dispatch returns a Result; the error
// return is reserved for failures outside the adapter such as a missing user.
type Service interface {
	ValidateGSTIN(ctx context.Context, req ValidateGSTINRequest) (Result, error)
	FileReturn(ctx context.Context, req FileReturnRequest) (Result, error)
	GenerateEWayBill(ctx context.Context, req EWayBillRequest) (Result, error)
	ReturnStatus(ctx context.Context, req ReturnStatusRequest) (Result, error)

	ConnectAccounting(ctx context.Context, req ConnectRequest) (Result, error)
	SyncAccounting(ctx context.Context, req SyncRequest) (Result, error)

	ProcessPayment(ctx context.Context, req PaymentRequest) (Result, error)
	CreateRecurringPayment(ctx context.Context, req RecurringRequest) (Result, error)
	RefundPayment(ctx context.Context, req RefundRequest) (Result, error)

	InitiateUPI(ctx context.Context, req UPIRequest) (Result, error)
	VerifyUPI(ctx context.Context, req UPIVerifyRequest) (Result, error)
	VerifyBankAccount(ctx context.Context, req BankAccountRequest) (Result, error)

	Status(ctx context.Context) (StatusResponse, error)
}
