package handlers

import (
	"net/http"
	"strings"

	"github.com/funnelkit/qrstock/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MovementHandler serves the inventory movement ledger.
type MovementHandler struct {
	db *gorm.DB
}

// NewMovementHandler constructs a MovementHandler.
func NewMovementHandler(db *gorm.DB) *MovementHandler {
	return &MovementHandler{db: db}
}

// List returns movements newest first, filtered by product, allocation and kind.
func (h *MovementHandler) List(c *gin.Context) {
	var page pageQuery
	if errBind := c.ShouldBindQuery(&page); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page.normalize()
	productID, ok := parseOptionalUintQuery(c, "product_id")
	if !ok {
		return
	}
	allocationID, ok := parseOptionalUintQuery(c, "allocation_id")
	if !ok {
		return
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.InventoryMovement{})
	if productID != nil {
		q = q.Where("product_id = ?", *productID)
	}
	if allocationID != nil {
		q = q.Where("allocation_id = ?", *allocationID)
	}
	if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count movements failed"})
		return
	}
	var rows []models.InventoryMovement
	if errFind := q.Order("created_at DESC, id DESC").Offset(page.offset()).Limit(page.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list movements failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":              row.ID,
			"product_id":      row.ProductID,
			"allocation_id":   row.AllocationID,
			"kind":            row.Kind,
			"quantity_change": row.QuantityChange,
			"quantity_before": row.QuantityBefore,
			"quantity_after":  row.QuantityAfter,
			"reason":          row.Reason,
			"admin_id":        row.AdminID,
			"created_at":      row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"movements": out, "total": total, "page": page.Page, "limit": page.Limit})
}
