package models

import "time"

// Batch statuses in their forward order.
const (
	BatchStatusGenerated = "generated"
	BatchStatusExporting = "exporting"
	BatchStatusPrinting  = "printing"
	BatchStatusPrinted   = "printed"
	BatchStatusShipped   = "shipped"
	BatchStatusReceived  = "received"
	BatchStatusActive    = "active"
	BatchStatusDepleted  = "depleted"
)

// BatchStatusOrder lists batch statuses in lifecycle order.
var BatchStatusOrder = []string{
	BatchStatusGenerated,
	BatchStatusExporting,
	BatchStatusPrinting,
	BatchStatusPrinted,
	BatchStatusShipped,
	BatchStatusReceived,
	BatchStatusActive,
	BatchStatusDepleted,
}

// BatchStatusRank returns the lifecycle position of status, or -1 when unknown.
func BatchStatusRank(status string) int {
	for i, s := range BatchStatusOrder {
		if s == status {
			return i
		}
	}
	return -1
}

// QRBatch is a group of codes generated together. The count columns are a
// ledger of the code statuses and move in the same transaction as the codes.
type QRBatch struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`              // Primary key.
	BatchNumber string `gorm:"type:varchar(64);not null;uniqueIndex"` // Unique batch number.
	Name        string `gorm:"type:text;not null"`                    // Display name.
	Status      string `gorm:"type:varchar(16);not null;index"`       // Lifecycle status.
	Notes       string `gorm:"type:text"`                             // Free-form notes.

	TotalQuantity  int `gorm:"not null"`           // Codes generated.
	AvailableCount int `gorm:"not null;default:0"` // Codes available.
	ReservedCount  int `gorm:"not null;default:0"` // Codes reserved.
	AssignedCount  int `gorm:"not null;default:0"` // Codes assigned.
	DamagedCount   int `gorm:"not null;default:0"` // Codes damaged.
	LostCount      int `gorm:"not null;default:0"` // Codes lost.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName pins the table name.
func (QRBatch) TableName() string {
	return "qr_batches"
}

// CountColumn maps a code status to its ledger column.
func CountColumn(codeStatus string) string {
	switch codeStatus {
	case CodeStatusAvailable:
		return "available_count"
	case CodeStatusReserved:
		return "reserved_count"
	case CodeStatusAssigned:
		return "assigned_count"
	case CodeStatusDamaged:
		return "damaged_count"
	case CodeStatusLost:
		return "lost_count"
	}
	return ""
}
