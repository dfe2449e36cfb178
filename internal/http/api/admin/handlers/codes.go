package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	dbutil "github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CodeHandler manages QR code lookups and lifecycle transitions.
type CodeHandler struct {
	db  *gorm.DB
	svc *inventory.Service
}

// NewCodeHandler constructs a CodeHandler.
func NewCodeHandler(db *gorm.DB, svc *inventory.Service) *CodeHandler {
	return &CodeHandler{db: db, svc: svc}
}

// List returns codes filtered by status, batch, funnel and code prefix.
func (h *CodeHandler) List(c *gin.Context) {
	var page pageQuery
	if errBind := c.ShouldBindQuery(&page); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page.normalize()
	batchID, ok := parseOptionalUintQuery(c, "batch_id")
	if !ok {
		return
	}
	funnelID, ok := parseOptionalUintQuery(c, "funnel_id")
	if !ok {
		return
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.QRCode{})
	if status := strings.ToLower(strings.TrimSpace(c.Query("status"))); status != "" {
		if !slices.Contains(models.CodeStatuses, status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		q = q.Where("status = ?", status)
	}
	if batchID != nil {
		q = q.Where("batch_id = ?", *batchID)
	}
	if funnelID != nil {
		q = q.Where("funnel_id = ?", *funnelID)
	}
	if code := strings.ToUpper(strings.TrimSpace(c.Query("code"))); code != "" {
		q = q.Where(dbutil.PrefixLikeExpr("code"), dbutil.PrefixPattern(code))
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count codes failed"})
		return
	}
	var rows []models.QRCode
	if errFind := q.Order("id ASC").Offset(page.offset()).Limit(page.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list codes failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatCode(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"codes": out, "total": total, "page": page.Page, "limit": page.Limit})
}

// Get returns one code.
func (h *CodeHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	code, errGet := h.svc.GetCode(c.Request.Context(), id)
	if errGet != nil {
		respondServiceError(c, errGet, "query failed")
		return
	}
	c.JSON(http.StatusOK, formatCode(&code))
}

type assignCodeRequest struct {
	FunnelID  uint64  `json:"funnel_id" binding:"required"`
	Reason    string  `json:"reason"`
	Override  bool    `json:"override"`
	ProductID *uint64 `json:"product_id"`
}

// Assign binds a code to a funnel, releasing whatever the funnel held before.
func (h *CodeHandler) Assign(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body assignCodeRequest
	if !bindJSON(c, &body) {
		return
	}
	result, errAssign := h.svc.Assign(c.Request.Context(), inventory.AssignInput{
		CodeID:    id,
		FunnelID:  body.FunnelID,
		AdminID:   actingAdmin(c),
		Reason:    body.Reason,
		Override:  body.Override,
		ProductID: body.ProductID,
	})
	if errAssign != nil {
		respondServiceError(c, errAssign, "assign code failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":              formatCode(&result.Code),
		"replaced_code_ids": result.ReplacedCodeIDs,
		"allocation_id":     result.AllocationID,
	})
}

type reserveCodeRequest struct {
	FunnelID uint64 `json:"funnel_id" binding:"required"`
	Reason   string `json:"reason"`
}

// Reserve holds an available code for a funnel.
func (h *CodeHandler) Reserve(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body reserveCodeRequest
	if !bindJSON(c, &body) {
		return
	}
	code, errReserve := h.svc.Reserve(c.Request.Context(), inventory.ReserveInput{
		CodeID:   id,
		FunnelID: body.FunnelID,
		AdminID:  actingAdmin(c),
		Reason:   body.Reason,
	})
	if errReserve != nil {
		respondServiceError(c, errReserve, "reserve code failed")
		return
	}
	c.JSON(http.StatusOK, formatCode(&code))
}

// Unassign returns an assigned code to the pool. A reason is required.
func (h *CodeHandler) Unassign(c *gin.Context) {
	h.transition(c, h.svc.Unassign, "unassign code failed")
}

// Release frees a reserved code.
func (h *CodeHandler) Release(c *gin.Context) {
	h.transition(c, h.svc.ReleaseReservation, "release code failed")
}

// Damaged marks a code damaged. A reason is required.
func (h *CodeHandler) Damaged(c *gin.Context) {
	h.transition(c, h.svc.MarkDamaged, "mark code damaged failed")
}

// Lost marks a code lost. A reason is required.
func (h *CodeHandler) Lost(c *gin.Context) {
	h.transition(c, h.svc.MarkLost, "mark code lost failed")
}

// Repair returns a damaged or lost code to the pool. A reason is required.
func (h *CodeHandler) Repair(c *gin.Context) {
	h.transition(c, h.svc.Repair, "repair code failed")
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

type transitionFunc func(ctx context.Context, in inventory.TransitionInput) (models.QRCode, error)

func (h *CodeHandler) transition(c *gin.Context, fn transitionFunc, failure string) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body transitionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &body) {
		return
	}
	code, errTransition := fn(c.Request.Context(), inventory.TransitionInput{
		CodeID:  id,
		AdminID: actingAdmin(c),
		Reason:  body.Reason,
	})
	if errTransition != nil {
		respondServiceError(c, errTransition, failure)
		return
	}
	c.JSON(http.StatusOK, formatCode(&code))
}

// AuditLogs returns the audit trail of one code, newest first.
func (h *CodeHandler) AuditLogs(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var code models.QRCode
	if errFind := h.db.WithContext(c.Request.Context()).Select("id").First(&code, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	listAuditLogs(c, h.db.WithContext(c.Request.Context()).Model(&models.QRCodeAuditLog{}).Where("code_id = ?", id))
}

func formatCode(code *models.QRCode) gin.H {
	return gin.H{
		"id":            code.ID,
		"code":          code.Code,
		"batch_id":      code.BatchID,
		"status":        code.Status,
		"business_id":   code.BusinessID,
		"funnel_id":     code.FunnelID,
		"allocation_id": code.AllocationID,
		"assigned_at":   code.AssignedAt,
		"created_at":    code.CreatedAt,
		"updated_at":    code.UpdatedAt,
	}
}
