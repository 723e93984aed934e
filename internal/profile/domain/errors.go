package domain

import "errors"

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrUserNotFound         = errors.New("user_not_found")
	ErrInvalidPassword      = errors.New("invalid_password")
	ErrEmailTaken           = errors.New("email_already_in_use")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrInvalidMobile        = errors.New("invalid_mobile")
	ErrInvalidGSTIN         = errors.New("invalid_gstin")
	ErrInvalidPAN           = errors.New("invalid_pan")
	ErrInvalidConfirmation  = errors.New("invalid_confirmation")
	ErrEmptyAvatar          = errors.New("avatar_required")
	ErrAvatarTooLarge       = errors.New("avatar_too_large")
	ErrUnsupportedAvatar    = errors.New("unsupported_avatar_type")
	ErrEmptyPreferences     = errors.New("preferences_required")
	ErrStorageNotConfigured = errors.New("storage_not_configured")
)
