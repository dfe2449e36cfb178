package models

import "time"

// Business is a tenant owning funnels.
type Business struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	Name string `gorm:"type:text;not null"`       // Display name.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Funnel statuses.
const (
	FunnelStatusDraft    = "draft"
	FunnelStatusActive   = "active"
	FunnelStatusPaused   = "paused"
	FunnelStatusArchived = "archived"
)

// Funnel is a marketing funnel a QR code can point at.
type Funnel struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`  // Primary key.
	BusinessID uint64    `gorm:"not null;index"`            // Owning business.
	Business   *Business `gorm:"foreignKey:BusinessID"`     // Owning business record.
	Name       string    `gorm:"type:text;not null"`        // Display name.
	Status     string    `gorm:"type:varchar(16);not null"` // draft, active, paused or archived.

	ReservedCodeID *uint64 `gorm:"index"` // Code held in reserve for this funnel, if any.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsValidFunnelStatus reports whether status is a known funnel status.
func IsValidFunnelStatus(status string) bool {
	switch status {
	case FunnelStatusDraft, FunnelStatusActive, FunnelStatusPaused, FunnelStatusArchived:
		return true
	}
	return false
}
