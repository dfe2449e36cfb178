package models

import (
	"time"

	"gorm.io/datatypes"
)

// Code lifecycle statuses.
const (
	CodeStatusAvailable = "available"
	CodeStatusReserved  = "reserved"
	CodeStatusAssigned  = "assigned"
	CodeStatusDamaged   = "damaged"
	CodeStatusLost      = "lost"
)

// CodeStatuses lists every code status in ledger order.
var CodeStatuses = []string{
	CodeStatusAvailable,
	CodeStatusReserved,
	CodeStatusAssigned,
	CodeStatusDamaged,
	CodeStatusLost,
}

// QRCode is one individually numbered QR code unit.
type QRCode struct {
	ID      uint64   `gorm:"primaryKey;autoIncrement"`              // Primary key.
	Code    string   `gorm:"type:varchar(64);not null;uniqueIndex"` // Printed code string.
	BatchID uint64   `gorm:"not null;index"`                        // Producing batch.
	Batch   *QRBatch `gorm:"foreignKey:BatchID"`                    // Producing batch record.
	Status  string   `gorm:"type:varchar(16);not null;index"`       // Lifecycle status.

	BusinessID   *uint64    `gorm:"index"` // Business of the assigned funnel.
	FunnelID     *uint64    `gorm:"index"` // Assigned funnel; set only while assigned.
	AllocationID *uint64    `gorm:"index"` // Allocation consumed by the current assignment.
	AssignedAt   *time.Time // Assignment time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName pins the table name.
func (QRCode) TableName() string {
	return "qr_codes"
}

// Audit actions recorded for code transitions.
const (
	AuditActionAssign             = "assign"
	AuditActionUnassign           = "unassign"
	AuditActionReplaced           = "replaced"
	AuditActionReserve            = "reserve"
	AuditActionReleaseReservation = "release_reservation"
	AuditActionMarkDamaged        = "mark_damaged"
	AuditActionMarkLost           = "mark_lost"
	AuditActionRepair             = "repair"
)

// QRCodeAuditLog records one status transition of a code.
type QRCodeAuditLog struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`  // Primary key.
	CodeID uint64 `gorm:"not null;index"`            // Code the row belongs to.
	Action string `gorm:"type:varchar(32);not null"` // Transition name.

	PreviousStatus string `gorm:"type:varchar(16);not null"` // Status before the action.
	NewStatus      string `gorm:"type:varchar(16);not null"` // Status after the action.

	FunnelID         *uint64 // Funnel after the action.
	PreviousFunnelID *uint64 // Funnel before the action.

	AdminID *uint64 `gorm:"index"`     // Acting admin.
	Reason  string  `gorm:"type:text"` // Free-text reason.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Extra context such as the consumed allocation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

// TableName pins the table name.
func (QRCodeAuditLog) TableName() string {
	return "qr_code_audit_logs"
}
