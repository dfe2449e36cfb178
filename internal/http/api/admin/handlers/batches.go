package handlers

import (
	"errors"
	"net/http"
	"strings"

	dbutil "github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BatchHandler manages QR batch endpoints.
type BatchHandler struct {
	db  *gorm.DB
	svc *inventory.Service
}

// NewBatchHandler constructs a BatchHandler.
func NewBatchHandler(db *gorm.DB, svc *inventory.Service) *BatchHandler {
	return &BatchHandler{db: db, svc: svc}
}

type generateBatchRequest struct {
	Name     string `json:"name" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1,max=10000"`
	Prefix   string `json:"prefix"`
	Notes    string `json:"notes"`
}

// Generate creates a batch together with its codes.
func (h *BatchHandler) Generate(c *gin.Context) {
	var body generateBatchRequest
	if !bindJSON(c, &body) {
		return
	}
	batch, errGenerate := h.svc.GenerateBatch(c.Request.Context(), inventory.GenerateBatchInput{
		Name:     body.Name,
		Quantity: body.Quantity,
		Prefix:   body.Prefix,
		Notes:    body.Notes,
	})
	if errGenerate != nil {
		respondServiceError(c, errGenerate, "generate batch failed")
		return
	}
	c.JSON(http.StatusCreated, formatBatch(&batch))
}

// List returns batches filtered by status and name.
func (h *BatchHandler) List(c *gin.Context) {
	var page pageQuery
	if errBind := c.ShouldBindQuery(&page); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page.normalize()

	q := h.db.WithContext(c.Request.Context()).Model(&models.QRBatch{})
	if status := strings.ToLower(strings.TrimSpace(c.Query("status"))); status != "" {
		if models.BatchStatusRank(status) < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		q = q.Where("status = ?", status)
	}
	if name := strings.TrimSpace(c.Query("name")); name != "" {
		pattern := dbutil.ContainsPattern(h.db, name)
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count batches failed"})
		return
	}
	var rows []models.QRBatch
	if errFind := q.Order("created_at DESC, id DESC").Offset(page.offset()).Limit(page.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list batches failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatBatch(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"batches": out, "total": total, "page": page.Page, "limit": page.Limit})
}

// Get returns one batch with its ledger counts.
func (h *BatchHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var batch models.QRBatch
	if errFind := h.db.WithContext(c.Request.Context()).First(&batch, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatBatch(&batch))
}

type advanceBatchStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AdvanceStatus moves a batch forward in its lifecycle.
func (h *BatchHandler) AdvanceStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body advanceBatchStatusRequest
	if !bindJSON(c, &body) {
		return
	}
	status := strings.ToLower(strings.TrimSpace(body.Status))
	batch, errAdvance := h.svc.AdvanceBatchStatus(c.Request.Context(), id, status)
	if errAdvance != nil {
		respondServiceError(c, errAdvance, "update batch status failed")
		return
	}
	c.JSON(http.StatusOK, formatBatch(&batch))
}

// Reconcile recomputes one batch's ledger from its codes.
func (h *BatchHandler) Reconcile(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	result, errReconcile := h.svc.Reconcile(c.Request.Context(), id)
	if errReconcile != nil {
		respondServiceError(c, errReconcile, "reconcile batch failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReconcileAll reconciles every batch that is not depleted.
func (h *BatchHandler) ReconcileAll(c *gin.Context) {
	summary, errReconcile := h.svc.ReconcileAll(c.Request.Context())
	if errReconcile != nil {
		respondServiceError(c, errReconcile, "reconcile batches failed")
		return
	}
	if summary.Changed == nil {
		summary.Changed = []inventory.ReconcileResult{}
	}
	c.JSON(http.StatusOK, summary)
}

func formatBatch(batch *models.QRBatch) gin.H {
	return gin.H{
		"id":             batch.ID,
		"batch_number":   batch.BatchNumber,
		"name":           batch.Name,
		"status":         batch.Status,
		"notes":          batch.Notes,
		"total_quantity": batch.TotalQuantity,
		"counts":         inventory.CountsOf(batch),
		"created_at":     batch.CreatedAt,
		"updated_at":     batch.UpdatedAt,
	}
}
