package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Address is the registered business address shown on issued invoices.
type Address struct {
	Line1      string `json:"line1,omitempty" binding:"omitempty,max=200"`
	Line2      string `json:"line2,omitempty" binding:"omitempty,max=200"`
	City       string `json:"city,omitempty" binding:"omitempty,max=100"`
	State      string `json:"state,omitempty" binding:"omitempty,max=100"`
	StateCode  string `json:"state_code,omitempty" binding:"omitempty,len=2,numeric"`
	PostalCode string `json:"postal_code,omitempty" binding:"omitempty,len=6,numeric"`
	Country    string `json:"country,omitempty" binding:"omitempty,max=64"`
}

type User struct {
	ID           snowflake.ID                 `gorm:"primaryKey" json:"id"`
	Email        string                       `gorm:"type:text;not null" json:"email"`
	Mobile       *string                      `gorm:"type:text" json:"mobile,omitempty"`
	PasswordHash string                       `gorm:"type:text;not null" json:"-"`
	FullName     string                       `gorm:"type:text;not null;default:''" json:"full_name"`
	BusinessName string                       `gorm:"type:text;not null;default:''" json:"business_name"`
	GSTIN        *string                      `gorm:"column:gstin;type:text" json:"gstin,omitempty"`
	PAN          *string                      `gorm:"column:pan;type:text" json:"pan,omitempty"`
	Address      datatypes.JSONType[Address]  `gorm:"type:jsonb;not null;default:'{}'" json:"address"`
	AvatarURL    *string                      `gorm:"type:text" json:"avatar_url,omitempty"`
	Preferences  datatypes.JSONMap            `gorm:"type:jsonb;not null;default:'{}'" json:"preferences"`
	CreatedAt    time.Time                    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time                    `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt               `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }
