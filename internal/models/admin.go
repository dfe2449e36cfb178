package models

import (
	"time"

	"gorm.io/datatypes"
)

// Admin is an operator of the QR inventory console. Permissions hold
// catalogue keys; super admins skip the catalogue check.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Active bool `gorm:"not null;default:true"` // Whether the account can sign in.

	IsAdmin      bool `gorm:"not null;default:true"`  // Grants access to the admin API.
	IsSuperAdmin bool `gorm:"not null;default:false"` // Grants all permissions when true.

	Permissions datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Permission keys in JSON.

	TOTPSecret string `gorm:"type:text"` // TOTP secret for MFA.

	LastLoginAt *time.Time `gorm:"index"` // Most recent successful sign-in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
