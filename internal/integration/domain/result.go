package domain

import "errors"

const (
	CodeUnsupportedProvider = "unsupported_provider"
	CodeNotSupported        = "not_supported"
	CodeProviderError       = "provider_error"
	CodeInvalidRequest      = "invalid_request"
	CodeNotConnected        = "not_connected"
	CodeSyncInProgress      = "sync_in_progress"
)

// Result is what the facade returns for every dispatched operation. Adapter
// failures are reported here instead of as errors.
type Result struct {
	Success  bool           `json:"success"`
	Provider string         `json:"provider"`
	Category Category       `json:"category"`
	Code     string         `json:"code,omitempty"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

func OK(category Category, provider string, data map[string]any) Result {
	return Result{Success: true, Category: category, Provider: provider, Data: data}
}

func Failure(category Category, provider, code, message string) Result {
	return Result{Success: false, Category: category, Provider: provider, Code: code, Message: message}
}

var (
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrMissingCredential = errors.New("missing_credentials")
	ErrProviderRejected  = errors.New("provider_rejected_request")
)
