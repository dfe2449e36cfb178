package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SellableProduct is a product sold to businesses, optionally stock tracked.
type SellableProduct struct {
	ID    uint64          `gorm:"primaryKey;autoIncrement"`              // Primary key.
	Name  string          `gorm:"type:text;not null"`                    // Display name.
	SKU   *string         `gorm:"type:varchar(64);uniqueIndex"`          // Optional stock keeping unit.
	Price decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"` // Unit price.

	IsActive          bool `gorm:"not null;default:true"`  // Whether the product is on sale.
	TracksInventory   bool `gorm:"not null;default:false"` // Whether CurrentStock is maintained.
	CurrentStock      *int // Units on hand; nil when not tracked.
	LowStockThreshold int  `gorm:"not null;default:0"` // Low stock alert threshold.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ProductBatchInventory earmarks a quantity of a batch's codes for a product.
type ProductBatchInventory struct {
	ID        uint64           `gorm:"primaryKey;autoIncrement"`                     // Primary key.
	ProductID uint64           `gorm:"not null;uniqueIndex:idx_product_batch"`       // Product.
	Product   *SellableProduct `gorm:"foreignKey:ProductID"`                         // Product record.
	BatchID   uint64           `gorm:"not null;uniqueIndex:idx_product_batch;index"` // Batch.
	Batch     *QRBatch         `gorm:"foreignKey:BatchID"`                           // Batch record.

	QuantityAllocated int  `gorm:"not null"`              // Codes earmarked.
	QuantityRemaining int  `gorm:"not null"`              // Earmarked codes not yet consumed.
	IsActive          bool `gorm:"not null;default:true"` // Whether the allocation is live.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Inventory movement kinds.
const (
	MovementStockAdjustment      = "stock_adjustment"
	MovementAllocationConsume    = "allocation_consume"
	MovementAllocationRelease    = "allocation_release"
	MovementAllocationAdjustment = "allocation_adjustment"
)

// InventoryMovement is an append-only record of a stock or allocation change.
type InventoryMovement struct {
	ID           uint64  `gorm:"primaryKey;autoIncrement"`  // Primary key.
	ProductID    uint64  `gorm:"not null;index"`            // Affected product.
	AllocationID *uint64 `gorm:"index"`                     // Affected allocation, if any.
	Kind         string  `gorm:"type:varchar(32);not null"` // Movement kind.

	QuantityChange int `gorm:"not null"` // Signed delta.
	QuantityBefore int `gorm:"not null"` // Quantity before the change.
	QuantityAfter  int `gorm:"not null"` // Quantity after the change.

	Reason  string  `gorm:"type:text"` // Free-text reason.
	AdminID *uint64 `gorm:"index"`     // Acting admin.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
