package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.ConnectionRepository {
	return &repo{}
}

// Upsert keeps one connection per user and category. Reconnecting replaces the
// provider and credentials but keeps the original row id.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, conn *domain.Connection) error {
	if conn == nil {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider",
			"encrypted_credentials",
			"status",
			"last_error",
			"connected_at",
			"updated_at",
		}),
	}).Create(conn).Error
}

func (r *repo) FindByUserCategory(ctx context.Context, db *gorm.DB, userID snowflake.ID, category domain.Category) (*domain.Connection, error) {
	var conn domain.Connection
	err := db.WithContext(ctx).
		Where("user_id = ? AND category = ?", userID, category).
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *repo) UpdateSyncState(ctx context.Context, db *gorm.DB, conn *domain.Connection) error {
	if conn == nil {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.Connection{}).
		Where("id = ? AND user_id = ?", conn.ID, conn.UserID).
		Updates(map[string]any{
			"encrypted_credentials": conn.EncryptedCredentials,
			"status":                conn.Status,
			"last_synced_at":        conn.LastSyncedAt,
			"sync_cursor_at":        conn.SyncCursorAt,
			"sync_cursor_id":        conn.SyncCursorID,
			"last_error":            conn.LastError,
			"updated_at":            conn.UpdatedAt,
		}).Error
}
