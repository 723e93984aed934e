package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusError        ConnectionStatus = "error"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// Connection links a user to one external system per category.
type Connection struct {
	ID                   snowflake.ID     `gorm:"primaryKey" json:"id"`
	UserID               snowflake.ID     `gorm:"not null;uniqueIndex:ux_integration_connections_user_category,priority:1" json:"user_id"`
	Category             Category         `gorm:"type:text;not null;uniqueIndex:ux_integration_connections_user_category,priority:2" json:"category"`
	Provider             string           `gorm:"type:text;not null" json:"provider"`
	EncryptedCredentials string           `gorm:"type:text;not null;default:''" json:"-"`
	Status               ConnectionStatus `gorm:"type:text;not null;default:'connected'" json:"status"`
	LastSyncedAt         *time.Time       `json:"last_synced_at,omitempty"`
	SyncCursorAt         *time.Time       `json:"-"`
	SyncCursorID         *snowflake.ID    `json:"-"`
	LastError            *string          `gorm:"type:text" json:"last_error,omitempty"`
	ConnectedAt          time.Time        `gorm:"not null" json:"connected_at"`
	CreatedAt            time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"not null" json:"updated_at"`
}

func (Connection) TableName() string { return "integration_connections" }

// SyncCursor is the last invoice pushed in order, or nil before the first push.
func (c *Connection) SyncCursor() *SyncCursor {
	if c.SyncCursorAt == nil || c.SyncCursorID == nil {
		return nil
	}
	return &SyncCursor{UpdatedAt: *c.SyncCursorAt, ID: *c.SyncCursorID}
}

// SyncCursor orders invoices by (updated_at, id) so ties on updated_at are
// resumed exactly.
type SyncCursor struct {
	UpdatedAt time.Time
	ID        snowflake.ID
}

type ConnectionRepository interface {
	Upsert(ctx context.Context, db *gorm.DB, conn *Connection) error
	FindByUserCategory(ctx context.Context, db *gorm.DB, userID snowflake.ID, category Category) (*Connection, error)
	UpdateSyncState(ctx context.Context, db *gorm.DB, conn *Connection) error
}

// InvoiceSource supplies invoices to push into an accounting system.
type InvoiceSource interface {
	InvoicesUpdatedSince(ctx context.Context, userID snowflake.ID, after *SyncCursor, limit int) ([]SyncInvoice, error)
}

// SyncLocker serialises accounting syncs per user. A nil locker disables it.
type SyncLocker interface {
	TryLockSync(ctx context.Context, userID string) (string, bool, error)
	ReleaseSync(ctx context.Context, userID, token string) error
}
