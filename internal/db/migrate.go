package db

import (
	"fmt"

	"github.com/funnelkit/qrstock/internal/models"
	"gorm.io/gorm"
)

// uniqueAssignedFunnelIndex keeps at most one assigned code per funnel.
const uniqueAssignedFunnelIndex = "uniq_qr_codes_assigned_funnel"

// Migrate creates or updates the schema.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if err := conn.AutoMigrate(
		&models.Admin{},
		&models.Setting{},
		&models.Business{},
		&models.Funnel{},
		&models.QRBatch{},
		&models.QRCode{},
		&models.QRCodeAuditLog{},
		&models.SellableProduct{},
		&models.ProductBatchInventory{},
		&models.InventoryMovement{},
	); err != nil {
		return fmt.Errorf("db: auto migrate: %w", err)
	}

	// Partial unique indexes are understood by both PostgreSQL and SQLite.
	if errIndex := conn.Exec(fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON qr_codes (funnel_id) WHERE status = '%s'",
		uniqueAssignedFunnelIndex, models.CodeStatusAssigned,
	)).Error; errIndex != nil {
		return fmt.Errorf("db: create %s: %w", uniqueAssignedFunnelIndex, errIndex)
	}
	return nil
}
