package inventory

import (
	"context"
	"strings"

	"github.com/funnelkit/qrstock/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductInput describes a new sellable product.
type ProductInput struct {
	Name              string
	SKU               string
	Price             decimal.Decimal
	IsActive          *bool
	TracksInventory   bool
	InitialStock      int
	LowStockThreshold int
	AdminID           *uint64
}

// ProductPatch carries optional product changes. Stock only moves through AdjustStock.
type ProductPatch struct {
	Name              *string
	SKU               *string
	Price             *decimal.Decimal
	IsActive          *bool
	TracksInventory   *bool
	LowStockThreshold *int
}

// CreateProduct validates and persists a product. Tracked products start at
// InitialStock with a matching movement.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (models.SellableProduct, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.SellableProduct{}, invalid("missing name")
	}
	if in.Price.IsNegative() {
		return models.SellableProduct{}, invalid("price cannot be negative")
	}
	if in.LowStockThreshold < 0 {
		return models.SellableProduct{}, invalid("low_stock_threshold cannot be negative")
	}
	if in.InitialStock < 0 {
		return models.SellableProduct{}, invalid("initial_stock cannot be negative")
	}
	if !in.TracksInventory && in.InitialStock != 0 {
		return models.SellableProduct{}, invalid("initial_stock requires tracks_inventory")
	}
	active := in.IsActive == nil || *in.IsActive
	product := models.SellableProduct{
		Name:              name,
		Price:             in.Price,
		IsActive:          active,
		TracksInventory:   in.TracksInventory,
		LowStockThreshold: in.LowStockThreshold,
	}
	if sku := strings.TrimSpace(in.SKU); sku != "" {
		product.SKU = &sku
	}
	if in.TracksInventory {
		stock := in.InitialStock
		product.CurrentStock = &stock
	}
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		if errSKU := ensureSKUFree(tx, product.SKU, 0); errSKU != nil {
			return errSKU
		}
		if errCreate := tx.Create(&product).Error; errCreate != nil {
			return errCreate
		}
		// is_active carries a default: gorm skips the false on insert and
		// writes true back into product, so decide from the input.
		if !active {
			if errUpdate := tx.Model(&product).Update("is_active", false).Error; errUpdate != nil {
				return errUpdate
			}
			product.IsActive = false
		}
		if in.InitialStock == 0 {
			return nil
		}
		return s.recordMovement(tx, models.InventoryMovement{
			ProductID:      product.ID,
			Kind:           models.MovementStockAdjustment,
			QuantityChange: in.InitialStock,
			QuantityAfter:  in.InitialStock,
			Reason:         "initial stock",
			AdminID:        in.AdminID,
		})
	})
	if errTx != nil {
		return models.SellableProduct{}, errTx
	}
	return product, nil
}

// UpdateProduct applies a patch. Enabling tracking starts stock at zero and
// disabling it clears the stock.
func (s *Service) UpdateProduct(ctx context.Context, productID uint64, patch ProductPatch) (models.SellableProduct, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return models.SellableProduct{}, invalid("missing name")
		}
		updates["name"] = name
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return models.SellableProduct{}, invalid("price cannot be negative")
		}
		updates["price"] = *patch.Price
	}
	if patch.LowStockThreshold != nil {
		if *patch.LowStockThreshold < 0 {
			return models.SellableProduct{}, invalid("low_stock_threshold cannot be negative")
		}
		updates["low_stock_threshold"] = *patch.LowStockThreshold
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}

	var product models.SellableProduct
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		if err := lookup(tx, &product, productID, "product"); err != nil {
			return err
		}
		if patch.SKU != nil {
			var sku *string
			if trimmed := strings.TrimSpace(*patch.SKU); trimmed != "" {
				sku = &trimmed
			}
			if errSKU := ensureSKUFree(tx, sku, product.ID); errSKU != nil {
				return errSKU
			}
			if sku == nil {
				updates["sku"] = nil
			} else {
				updates["sku"] = *sku
			}
		}
		if patch.TracksInventory != nil && *patch.TracksInventory != product.TracksInventory {
			updates["tracks_inventory"] = *patch.TracksInventory
			if *patch.TracksInventory {
				updates["current_stock"] = 0
			} else {
				updates["current_stock"] = nil
			}
		}
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = s.now()
		if errUpdate := tx.Model(&models.SellableProduct{}).Where("id = ?", product.ID).Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		return tx.First(&product, product.ID).Error
	})
	if errTx != nil {
		return models.SellableProduct{}, errTx
	}
	return product, nil
}

func ensureSKUFree(tx *gorm.DB, sku *string, selfID uint64) error {
	if sku == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&models.SellableProduct{}).
		Where("sku = ? AND id <> ?", *sku, selfID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return conflict("sku %s already exists", *sku)
	}
	return nil
}
