package handlers

import (
	"net/http"
	"strings"

	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AllocationHandler manages product to batch allocations.
type AllocationHandler struct {
	db  *gorm.DB
	svc *inventory.Service
}

// NewAllocationHandler constructs an AllocationHandler.
func NewAllocationHandler(db *gorm.DB, svc *inventory.Service) *AllocationHandler {
	return &AllocationHandler{db: db, svc: svc}
}

type linkAllocationRequest struct {
	ProductID uint64 `json:"product_id" binding:"required"`
	BatchID   uint64 `json:"batch_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// Link earmarks part of a batch for a product.
func (h *AllocationHandler) Link(c *gin.Context) {
	var body linkAllocationRequest
	if !bindJSON(c, &body) {
		return
	}
	alloc, errLink := h.svc.LinkProductBatch(c.Request.Context(), inventory.LinkInput{
		ProductID: body.ProductID,
		BatchID:   body.BatchID,
		Quantity:  body.Quantity,
		AdminID:   actingAdmin(c),
	})
	if errLink != nil {
		respondServiceError(c, errLink, "link product to batch failed")
		return
	}
	c.JSON(http.StatusCreated, formatAllocation(&alloc))
}

// List returns allocations filtered by product, batch and active flag.
func (h *AllocationHandler) List(c *gin.Context) {
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
	batchID, ok := parseOptionalUintQuery(c, "batch_id")
	if !ok {
		return
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.ProductBatchInventory{})
	if productID != nil {
		q = q.Where("product_id = ?", *productID)
	}
	if batchID != nil {
		q = q.Where("batch_id = ?", *batchID)
	}
	switch strings.ToLower(strings.TrimSpace(c.Query("active"))) {
	case "":
	case "true", "1":
		q = q.Where("is_active = ?", true)
	case "false", "0":
		q = q.Where("is_active = ?", false)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid active"})
		return
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count allocations failed"})
		return
	}
	var rows []models.ProductBatchInventory
	if errFind := q.Preload("Product").Preload("Batch").
		Order("id ASC").Offset(page.offset()).Limit(page.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list allocations failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatAllocation(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"allocations": out, "total": total, "page": page.Page, "limit": page.Limit})
}

type consumeAllocationRequest struct {
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Reason   string `json:"reason"`
}

// Consume draws units from an allocation.
func (h *AllocationHandler) Consume(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body consumeAllocationRequest
	if !bindJSON(c, &body) {
		return
	}
	alloc, errConsume := h.svc.ConsumeAllocation(c.Request.Context(), inventory.ConsumeInput{
		AllocationID: id,
		Quantity:     body.Quantity,
		Reason:       body.Reason,
		AdminID:      actingAdmin(c),
	})
	if errConsume != nil {
		respondServiceError(c, errConsume, "consume allocation failed")
		return
	}
	c.JSON(http.StatusOK, formatAllocation(&alloc))
}

type adjustAllocationRequest struct {
	QuantityAllocated *int   `json:"quantity_allocated"`
	QuantityRemaining *int   `json:"quantity_remaining"`
	Reason            string `json:"reason"`
}

// Adjust corrects an allocation's quantities. A reason is required.
func (h *AllocationHandler) Adjust(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body adjustAllocationRequest
	if !bindJSON(c, &body) {
		return
	}
	alloc, errAdjust := h.svc.AdjustAllocation(c.Request.Context(), inventory.AdjustAllocationInput{
		AllocationID:      id,
		QuantityAllocated: body.QuantityAllocated,
		QuantityRemaining: body.QuantityRemaining,
		Reason:            body.Reason,
		AdminID:           actingAdmin(c),
	})
	if errAdjust != nil {
		respondServiceError(c, errAdjust, "adjust allocation failed")
		return
	}
	c.JSON(http.StatusOK, formatAllocation(&alloc))
}

// Deactivate stops an allocation from being consumed.
func (h *AllocationHandler) Deactivate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	alloc, errDeactivate := h.svc.DeactivateAllocation(c.Request.Context(), id)
	if errDeactivate != nil {
		respondServiceError(c, errDeactivate, "deactivate allocation failed")
		return
	}
	c.JSON(http.StatusOK, formatAllocation(&alloc))
}

func formatAllocation(alloc *models.ProductBatchInventory) gin.H {
	out := gin.H{
		"id":                 alloc.ID,
		"product_id":         alloc.ProductID,
		"batch_id":           alloc.BatchID,
		"quantity_allocated": alloc.QuantityAllocated,
		"quantity_remaining": alloc.QuantityRemaining,
		"is_active":          alloc.IsActive,
		"created_at":         alloc.CreatedAt,
		"updated_at":         alloc.UpdatedAt,
	}
	if alloc.Product != nil {
		out["product_name"] = alloc.Product.Name
	}
	if alloc.Batch != nil {
		out["batch_number"] = alloc.Batch.BatchNumber
	}
	return out
}
