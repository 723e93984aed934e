package domain

import (
	"context"
	"io"
)

const (
	// MaxAvatarBytes bounds uploaded avatar images.
	MaxAvatarBytes = 2 << 20

	// DeleteConfirmationPhrase must be typed verbatim to delete an account.
	DeleteConfirmationPhrase = "DELETE MY ACCOUNT"
)

// UpdateProfileRequest changes only the fields that are present.
type UpdateProfileRequest struct {
	FullName     *string  `json:"full_name" binding:"omitempty,max=120"`
	BusinessName *string  `json:"business_name" binding:"omitempty,max=200"`
	GSTIN        *string  `json:"gstin" binding:"omitempty,gstin"`
	PAN          *string  `json:"pan" binding:"omitempty,pan"`
	Address      *Address `json:"address"`
}

type UploadAvatarRequest struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type UpdateEmailRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required"`
}

type UpdateMobileRequest struct {
	Mobile   string `json:"mobile" binding:"required,in_mobile"`
	Password string `json:"password" binding:"required"`
}

// UpdatePreferencesRequest merges into the stored preferences. A null value
// removes the key.
type UpdatePreferencesRequest struct {
	Preferences map[string]any `json:"preferences" binding:"required"`
}

type DeleteAccountRequest struct {
	Confirmation string `json:"confirmation" binding:"required"`
	Password     string `json:"password" binding:"required"`
}

type Service interface {
	Get(ctx context.Context) (User, error)
	Update(ctx context.Context, req UpdateProfileRequest) (User, error)
	UploadAvatar(ctx context.Context, req UploadAvatarRequest) (User, error)
	UpdateEmail(ctx context.Context, req UpdateEmailRequest) (User, error)
	UpdateMobile(ctx context.Context, req UpdateMobileRequest) (User, error)
	UpdatePreferences(ctx context.Context, req UpdatePreferencesRequest) (User, error)
	DeleteAccount(ctx context.Context, req DeleteAccountRequest) error
}
