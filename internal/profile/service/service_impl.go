package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	auditdomain "github.com/smallbiznis/gstbill/internal/audit/domain"
	"github.com/smallbiznis/gstbill/internal/auth/password"
	"github.com/smallbiznis/gstbill/internal/clock"
	profiledomain "github.com/smallbiznis/gstbill/internal/profile/domain"
	"github.com/smallbiznis/gstbill/internal/providers/email"
	"github.com/smallbiznis/gstbill/internal/storage"
	"github.com/smallbiznis/gstbill/internal/usercontext"
	"github.com/smallbiznis/gstbill/internal/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     profiledomain.Repository
	AuditSvc auditdomain.Service
	Clock    clock.Clock
	Email    email.Provider
	Storage  storage.Storage `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	repo     profiledomain.Repository
	auditSvc auditdomain.Service
	clock    clock.Clock
	email    email.Provider
	storage  storage.Storage
}

func NewService(p ServiceParam) profiledomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("profile.service"),

		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		clock:    p.Clock,
		email:    p.Email,
		storage:  p.Storage,
	}
}

func (s *Service) Get(ctx context.Context) (profiledomain.User, error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return profiledomain.User{}, err
	}
	return *user, nil
}

func (s *Service) Update(ctx context.Context, req profiledomain.UpdateProfileRequest) (profiledomain.User, error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return profiledomain.User{}, err
	}

	changed := make([]string, 0, 5)
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
		changed = append(changed, "full_name")
	}
	if req.BusinessName != nil {
		user.BusinessName = strings.TrimSpace(*req.BusinessName)
		changed = append(changed, "business_name")
	}
	if req.GSTIN != nil {
		value := strings.ToUpper(strings.TrimSpace(*req.GSTIN))
		if value != "" && !validation.ValidGSTIN(value) {
			return profiledomain.User{}, profiledomain.ErrInvalidGSTIN
		}
		user.GSTIN = optional(value)
		changed = append(changed, "gstin")
	}
	if req.PAN != nil {
		value := strings.ToUpper(strings.TrimSpace(*req.PAN))
		if value != "" && !validation.ValidPAN(value) {
			return profiledomain.User{}, profiledomain.ErrInvalidPAN
		}
		user.PAN = optional(value)
		changed = append(changed, "pan")
	}
	if req.Address != nil {
		user.Address = datatypes.NewJSONType(trimAddress(*req.Address))
		changed = append(changed, "address")
	}

	// GSTIN characters 3-12 are the holder's PAN.
	if user.GSTIN != nil && user.PAN != nil && len(*user.GSTIN) == 15 && (*user.GSTIN)[2:12] != *user.PAN {
		return profiledomain.User{}, profiledomain.ErrInvalidPAN
	}
	if len(changed) == 0 {
		return *user, nil
	}

	if err := s.save(ctx, user); err != nil {
		return profiledomain.User{}, err
	}
	s.emitAudit(ctx, "profile.updated", user, map[string]any{"fields": changed})
	return *user, nil
}

func (s *Service) UploadAvatar(ctx context.Context, req profiledomain.UploadAvatarRequest) (profiledomain.User, error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return profiledomain.User{}, err
	}
	if s.storage == nil {
		return profiledomain.User{}, profiledomain.ErrStorageNotConfigured
	}
	if req.Body == nil || req.Size == 0 {
		return profiledomain.User{}, profiledomain.ErrEmptyAvatar
	}
	if req.Size > profiledomain.MaxAvatarBytes {
		return profiledomain.User{}, profiledomain.ErrAvatarTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, profiledomain.MaxAvatarBytes+1))
	if err != nil {
		return profiledomain.User{}, err
	}
	if len(data) == 0 {
		return profiledomain.User{}, profiledomain.ErrEmptyAvatar
	}
	if len(data) > profiledomain.MaxAvatarBytes {
		return profiledomain.User{}, profiledomain.ErrAvatarTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := avatarTypes[contentType]
	if !ok {
		return profiledomain.User{}, profiledomain.ErrUnsupportedAvatar
	}

	key := storage.ObjectKey("avatars/"+user.ID.String(), "avatar"+ext)
	url, err := s.storage.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		s.log.Error("avatar upload failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return profiledomain.User{}, err
	}

	user.AvatarURL = &url
	if err := s.save(ctx, user); err != nil {
		return profiledomain.User{}, err
	}
	s.emitAudit(ctx, "profile.avatar_updated", user, map[string]any{"content_type": contentType, "size": len(data)})
	return *user, nil
}

func (s *Service) UpdateEmail(ctx context.Context, req profiledomain.UpdateEmailRequest) (profiledomain.User, error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return profiledomain.User{}, err
	}
	if err := s.checkPassword(user, req.Password); err != nil {
		return profiledomain.User{}, err
	}

	next := strings.ToLower(strings.TrimSpace(req.Email))
	if next == "" || !strings.Contains(next, "@") {
		return profiledomain.User{}, profiledomain.ErrInvalidEmail
	}
	if next == strings.ToLower(user.Email) {
		return *user, nil
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, next)
	if err != nil {
		return profiledomain.User{}, err
	}
	if existing != nil && existing.ID != user.ID {
		return profiledomain.User{}, profiledomain.ErrEmailTaken
	}

	user.Email = next
	if err := s.save(ctx, user); err != nil {
		return profiledomain.User{}, err
	}
	s.emitAudit(ctx, "profile.email_changed", user, map[string]any{"email": next})
	return *user, nil
}

func (s *Service) UpdateMobile(ctx context.Context, req profiledomain.UpdateMobileRequest) (profiledomain.User, error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return profiledomain.User{}, err
	}
	if err := s.checkPassword(user, req.Password); err != nil {
		return profiledomain.User{}, err
	}

	mobile := strings.TrimSpace(req.Mobile)
	if !validation.ValidMobile(mobile) {
		return profiledomain.User{}, profiledomain.ErrInvalidMobile
	}
	normalized := "+91" + mobile[len(mobile)-10:]

	user.Mobile = &normalized
	if err := s.save(ctx, user); err != nil {
		return profiledomain.User{}, err
	}
	s.emitAudit(ctx, "profile.mobile_changed", user, nil)
	return *user, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, req profiledomain.UpdatePreferencesRequest) (profiledomain.User, error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return profiledomain.User{}, err
	}
	if len(req.Preferences) == 0 {
		return profiledomain.User{}, profiledomain.ErrEmptyPreferences
	}

	merged := datatypes.JSONMap{}
	for key, value := range user.Preferences {
		merged[key] = value
	}
	for key, value := range req.Preferences {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if value == nil {
			delete(merged, key)
			continue
		}
		merged[key] = value
	}
	user.Preferences = merged

	if err := s.save(ctx, user); err != nil {
		return profiledomain.User{}, err
	}
	return *user, nil
}

func (s *Service) DeleteAccount(ctx context.Context, req profiledomain.DeleteAccountRequest) error {
	user, err := s.currentUser(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Confirmation) != profiledomain.DeleteConfirmationPhrase {
		return profiledomain.ErrInvalidConfirmation
	}
	if err := s.checkPassword(user, req.Password); err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	originalEmail := user.Email
	fullName := user.FullName

	user.Email = fmt.Sprintf("deleted+%s@gstbill.invalid", user.ID.String())
	user.Mobile = nil
	user.AvatarURL = nil
	user.UpdatedAt = now
	if err := s.repo.SoftDelete(ctx, s.db, user); err != nil {
		return err
	}

	s.emitAudit(ctx, "profile.account_deleted", user, nil)
	s.log.Info("account deleted", zap.String("user_id", user.ID.String()))

	if err := s.email.SendTemplate(ctx, []string{originalEmail}, "account_deleted", map[string]any{
		"full_name":  fullName,
		"deleted_at": now.Format("02 Jan 2006"),
	}); err != nil {
		s.log.Warn("account deletion email failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return nil
}

func (s *Service) checkPassword(user *profiledomain.User, plain string) error {
	if plain == "" || !password.Verify(plain, user.PasswordHash) {
		s.log.Warn("password check failed", zap.String("user_id", user.ID.String()))
		return profiledomain.ErrInvalidPassword
	}
	if password.NeedsRehash(user.PasswordHash) {
		if hash, err := password.Hash(plain); err == nil {
			user.PasswordHash = hash
		}
	}
	return nil
}

func (s *Service) save(ctx context.Context, user *profiledomain.User) error {
	user.UpdatedAt = s.clock.Now().UTC()
	return s.repo.Update(ctx, s.db, user)
}

func (s *Service) currentUser(ctx context.Context) (*profiledomain.User, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, profiledomain.ErrInvalidUser
	}
	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, profiledomain.ErrUserNotFound
	}
	if user.Preferences == nil {
		user.Preferences = datatypes.JSONMap{}
	}
	return user, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, user *profiledomain.User, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	userID := user.ID
	targetID := user.ID.String()
	if err := s.auditSvc.AuditLog(ctx, &userID, action, "user", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func trimAddress(a profiledomain.Address) profiledomain.Address {
	return profiledomain.Address{
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		StateCode:  strings.TrimSpace(a.StateCode),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}
