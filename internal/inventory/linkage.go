package inventory

import (
	"context"
	"errors"

	"github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/models"
	"gorm.io/gorm"
)

// LinkInput allocates part of a batch to a product.
type LinkInput struct {
	ProductID uint64
	BatchID   uint64
	Quantity  int
	AdminID   *uint64
}

// ConsumeInput draws units from an allocation.
type ConsumeInput struct {
	AllocationID uint64
	Quantity     int
	Reason       string
	AdminID      *uint64
}

// AdjustAllocationInput corrects an allocation by hand. When only
// QuantityAllocated is given, QuantityRemaining shifts by the same delta.
type AdjustAllocationInput struct {
	AllocationID      uint64
	QuantityAllocated *int
	QuantityRemaining *int
	Reason            string
	AdminID           *uint64
}

// StockInput adjusts a tracked product's stock by Delta.
type StockInput struct {
	ProductID uint64
	Delta     int
	Reason    string
	AdminID   *uint64
}

// LinkProductBatch earmarks quantity codes of a batch for a product.
func (s *Service) LinkProductBatch(ctx context.Context, in LinkInput) (models.ProductBatchInventory, error) {
	if in.Quantity < 1 {
		return models.ProductBatchInventory{}, invalid("quantity must be at least 1")
	}
	var alloc models.ProductBatchInventory
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		var product models.SellableProduct
		if err := lookup(tx, &product, in.ProductID, "product"); err != nil {
			return err
		}
		var batch models.QRBatch
		if err := lookup(db.ForUpdate(tx), &batch, in.BatchID, "batch"); err != nil {
			return err
		}
		earmarked, err := earmarkedByOthers(tx, batch.ID, in.ProductID)
		if err != nil {
			return err
		}
		if free := batch.AvailableCount - earmarked; in.Quantity > free {
			return invalid("quantity exceeds the %d unearmarked available codes in batch %s", max(free, 0), batch.BatchNumber)
		}

		errFind := db.ForUpdate(tx).
			Where("product_id = ? AND batch_id = ?", in.ProductID, in.BatchID).
			First(&alloc).Error
		switch {
		case errFind == nil && alloc.IsActive:
			return conflict("product is already linked to batch %s", batch.BatchNumber)
		case errFind == nil:
			if errUpdate := tx.Model(&models.ProductBatchInventory{}).
				Where("id = ?", alloc.ID).
				Updates(map[string]any{
					"quantity_allocated": in.Quantity,
					"quantity_remaining": in.Quantity,
					"is_active":          true,
					"updated_at":         s.now(),
				}).Error; errUpdate != nil {
				return errUpdate
			}
		case errors.Is(errFind, gorm.ErrRecordNotFound):
			alloc = models.ProductBatchInventory{
				ProductID:         in.ProductID,
				BatchID:           in.BatchID,
				QuantityAllocated: in.Quantity,
				QuantityRemaining: in.Quantity,
				IsActive:          true,
			}
			if errCreate := tx.Create(&alloc).Error; errCreate != nil {
				return errCreate
			}
		default:
			return errFind
		}
		if errMove := s.recordMovement(tx, models.InventoryMovement{
			ProductID:      in.ProductID,
			AllocationID:   &alloc.ID,
			Kind:           models.MovementAllocationAdjustment,
			QuantityChange: in.Quantity,
			QuantityBefore: 0,
			QuantityAfter:  in.Quantity,
			Reason:         "linked to batch " + batch.BatchNumber,
			AdminID:        in.AdminID,
		}); errMove != nil {
			return errMove
		}
		return tx.First(&alloc, alloc.ID).Error
	})
	if errTx != nil {
		return models.ProductBatchInventory{}, errTx
	}
	return alloc, nil
}

// ConsumeAllocation draws quantity units from an active allocation.
func (s *Service) ConsumeAllocation(ctx context.Context, in ConsumeInput) (models.ProductBatchInventory, error) {
	if in.Quantity < 1 {
		return models.ProductBatchInventory{}, invalid("quantity must be at least 1")
	}
	var alloc models.ProductBatchInventory
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		if err := lookup(db.ForUpdate(tx), &alloc, in.AllocationID, "allocation"); err != nil {
			return err
		}
		return s.consume(tx, &alloc, in.Quantity, in.Reason, in.AdminID)
	})
	if errTx != nil {
		return models.ProductBatchInventory{}, errTx
	}
	return alloc, nil
}

// earmarkedByOthers sums what other products' active allocations still hold
// in a batch. The batch row lock taken by the caller serialises links.
func earmarkedByOthers(tx *gorm.DB, batchID, productID uint64) (int, error) {
	var total int
	err := tx.Model(&models.ProductBatchInventory{}).
		Select("COALESCE(SUM(quantity_remaining), 0)").
		Where("batch_id = ? AND product_id <> ? AND is_active = ?", batchID, productID, true).
		Scan(&total).Error
	return total, err
}

// AdjustAllocation rewrites an allocation's quantities keeping
// 0 <= remaining <= allocated.
func (s *Service) AdjustAllocation(ctx context.Context, in AdjustAllocationInput) (models.ProductBatchInventory, error) {
	reason, errReason := requireReason(in.Reason)
	if errReason != nil {
		return models.ProductBatchInventory{}, errReason
	}
	if in.QuantityAllocated == nil && in.QuantityRemaining == nil {
		return models.ProductBatchInventory{}, invalid("nothing to adjust")
	}
	var alloc models.ProductBatchInventory
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		if err := lookup(db.ForUpdate(tx), &alloc, in.AllocationID, "allocation"); err != nil {
			return err
		}
		allocated, remaining := alloc.QuantityAllocated, alloc.QuantityRemaining
		if in.QuantityAllocated != nil {
			allocated = *in.QuantityAllocated
			if in.QuantityRemaining == nil {
				remaining += allocated - alloc.QuantityAllocated
			}
		}
		if in.QuantityRemaining != nil {
			remaining = *in.QuantityRemaining
		}
		if allocated < 0 || remaining < 0 || remaining > allocated {
			return invalid("quantity_remaining must be between 0 and quantity_allocated")
		}
		res := tx.Model(&models.ProductBatchInventory{}).
			Where("id = ? AND quantity_allocated = ? AND quantity_remaining = ?", alloc.ID, alloc.QuantityAllocated, alloc.QuantityRemaining).
			Updates(map[string]any{
				"quantity_allocated": allocated,
				"quantity_remaining": remaining,
				"updated_at":         s.now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflict("allocation changed concurrently")
		}
		if errMove := s.recordMovement(tx, models.InventoryMovement{
			ProductID:      alloc.ProductID,
			AllocationID:   &alloc.ID,
			Kind:           models.MovementAllocationAdjustment,
			QuantityChange: remaining - alloc.QuantityRemaining,
			QuantityBefore: alloc.QuantityRemaining,
			QuantityAfter:  remaining,
			Reason:         reason,
			AdminID:        in.AdminID,
		}); errMove != nil {
			return errMove
		}
		alloc.QuantityAllocated, alloc.QuantityRemaining = allocated, remaining
		return nil
	})
	if errTx != nil {
		return models.ProductBatchInventory{}, errTx
	}
	return alloc, nil
}

// DeactivateAllocation stops an allocation from being consumed or alerted on.
func (s *Service) DeactivateAllocation(ctx context.Context, allocationID uint64) (models.ProductBatchInventory, error) {
	var alloc models.ProductBatchInventory
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		if err := lookup(tx, &alloc, allocationID, "allocation"); err != nil {
			return err
		}
		if !alloc.IsActive {
			return nil
		}
		alloc.IsActive = false
		return tx.Model(&models.ProductBatchInventory{}).
			Where("id = ?", alloc.ID).
			Updates(map[string]any{"is_active": false, "updated_at": s.now()}).Error
	})
	if errTx != nil {
		return models.ProductBatchInventory{}, errTx
	}
	return alloc, nil
}

// AdjustStock changes a tracked product's stock by a signed delta.
func (s *Service) AdjustStock(ctx context.Context, in StockInput) (models.SellableProduct, error) {
	reason, errReason := requireReason(in.Reason)
	if errReason != nil {
		return models.SellableProduct{}, errReason
	}
	if in.Delta == 0 {
		return models.SellableProduct{}, invalid("delta must not be zero")
	}
	var product models.SellableProduct
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		if err := lookup(db.ForUpdate(tx), &product, in.ProductID, "product"); err != nil {
			return err
		}
		if !product.TracksInventory {
			return invalid("product does not track inventory")
		}
		before := 0
		guard := tx.Model(&models.SellableProduct{}).Where("id = ?", product.ID)
		if product.CurrentStock != nil {
			before = *product.CurrentStock
			guard = guard.Where("current_stock = ?", before)
		} else {
			guard = guard.Where("current_stock IS NULL")
		}
		after := before + in.Delta
		if after < 0 {
			return invalid("stock cannot go below zero")
		}
		res := guard.Updates(map[string]any{"current_stock": after, "updated_at": s.now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflict("stock changed concurrently")
		}
		product.CurrentStock = &after
		return s.recordMovement(tx, models.InventoryMovement{
			ProductID:      product.ID,
			Kind:           models.MovementStockAdjustment,
			QuantityChange: in.Delta,
			QuantityBefore: before,
			QuantityAfter:  after,
			Reason:         reason,
			AdminID:        in.AdminID,
		})
	})
	if errTx != nil {
		return models.SellableProduct{}, errTx
	}
	return product, nil
}

// consume draws qty units from alloc with a guarded decrement.
func (s *Service) consume(tx *gorm.DB, alloc *models.ProductBatchInventory, qty int, reason string, adminID *uint64) error {
	if !alloc.IsActive {
		return conflict("allocation is inactive")
	}
	res := tx.Model(&models.ProductBatchInventory{}).
		Where("id = ? AND is_active = ? AND quantity_remaining >= ?", alloc.ID, true, qty).
		Updates(map[string]any{
			"quantity_remaining": gorm.Expr("quantity_remaining - ?", qty),
			"updated_at":         s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflict("allocation has %d remaining, %d requested", alloc.QuantityRemaining, qty)
	}
	before := alloc.QuantityRemaining
	alloc.QuantityRemaining -= qty
	return s.recordMovement(tx, models.InventoryMovement{
		ProductID:      alloc.ProductID,
		AllocationID:   &alloc.ID,
		Kind:           models.MovementAllocationConsume,
		QuantityChange: -qty,
		QuantityBefore: before,
		QuantityAfter:  alloc.QuantityRemaining,
		Reason:         reason,
		AdminID:        adminID,
	})
}

// release returns one unit to an allocation, capped at its allocated quantity.
func (s *Service) release(tx *gorm.DB, allocationID uint64, reason string, adminID *uint64) error {
	var alloc models.ProductBatchInventory
	if err := lookup(db.ForUpdate(tx), &alloc, allocationID, "allocation"); err != nil {
		return err
	}
	res := tx.Model(&models.ProductBatchInventory{}).
		Where("id = ? AND quantity_remaining < quantity_allocated", alloc.ID).
		Updates(map[string]any{
			"quantity_remaining": gorm.Expr("quantity_remaining + 1"),
			"updated_at":         s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return s.recordMovement(tx, models.InventoryMovement{
		ProductID:      alloc.ProductID,
		AllocationID:   &alloc.ID,
		Kind:           models.MovementAllocationRelease,
		QuantityChange: 1,
		QuantityBefore: alloc.QuantityRemaining,
		QuantityAfter:  alloc.QuantityRemaining + 1,
		Reason:         reason,
		AdminID:        adminID,
	})
}

func (s *Service) recordMovement(tx *gorm.DB, movement models.InventoryMovement) error {
	movement.CreatedAt = s.now()
	return tx.Create(&movement).Error
}
