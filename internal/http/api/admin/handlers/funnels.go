package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	dbutil "github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// FunnelHandler manages funnel endpoints.
type FunnelHandler struct {
	db *gorm.DB
}

// NewFunnelHandler constructs a FunnelHandler.
func NewFunnelHandler(db *gorm.DB) *FunnelHandler {
	return &FunnelHandler{db: db}
}

type createFunnelRequest struct {
	BusinessID uint64 `json:"business_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Status     string `json:"status"`
}

// Create stores a new funnel under an existing business. Status defaults to draft.
func (h *FunnelHandler) Create(c *gin.Context) {
	var body createFunnelRequest
	if !bindJSON(c, &body) {
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	status := strings.ToLower(strings.TrimSpace(body.Status))
	if status == "" {
		status = models.FunnelStatusDraft
	}
	if !models.IsValidFunnelStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	ctx := c.Request.Context()
	var business models.Business
	if errFind := h.db.WithContext(ctx).Select("id").First(&business, body.BusinessID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "business not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	funnel := models.Funnel{BusinessID: business.ID, Name: name, Status: status}
	if errCreate := h.db.WithContext(ctx).Create(&funnel).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create funnel failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatFunnel(c, &funnel))
}

// List returns funnels filtered by business, status and name.
func (h *FunnelHandler) List(c *gin.Context) {
	var page pageQuery
	if errBind := c.ShouldBindQuery(&page); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page.normalize()
	businessID, ok := parseOptionalUintQuery(c, "business_id")
	if !ok {
		return
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.Funnel{})
	if businessID != nil {
		q = q.Where("business_id = ?", *businessID)
	}
	if status := strings.ToLower(strings.TrimSpace(c.Query("status"))); status != "" {
		if !models.IsValidFunnelStatus(status) {
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
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count funnels failed"})
		return
	}
	var rows []models.Funnel
	if errFind := q.Order("id ASC").Offset(page.offset()).Limit(page.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list funnels failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, h.formatFunnel(c, &rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"funnels": out, "total": total, "page": page.Page, "limit": page.Limit})
}

// Get returns one funnel with its assigned code, if any.
func (h *FunnelHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var funnel models.Funnel
	if errFind := h.db.WithContext(c.Request.Context()).First(&funnel, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatFunnel(c, &funnel))
}

type updateFunnelRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

// Update renames a funnel or changes its status.
func (h *FunnelHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updateFunnelRequest
	if !bindJSON(c, &body) {
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if body.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*body.Status))
		if !models.IsValidFunnelStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		updates["status"] = status
	}

	ctx := c.Request.Context()
	res := h.db.WithContext(ctx).Model(&models.Funnel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var funnel models.Funnel
	if errFind := h.db.WithContext(ctx).First(&funnel, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatFunnel(c, &funnel))
}

func (h *FunnelHandler) formatFunnel(c *gin.Context, funnel *models.Funnel) gin.H {
	var assigned *uint64
	var code models.QRCode
	errFind := h.db.WithContext(c.Request.Context()).
		Select("id").
		Where("funnel_id = ? AND status = ?", funnel.ID, models.CodeStatusAssigned).
		Take(&code).Error
	if errFind == nil {
		assigned = &code.ID
	}
	return gin.H{
		"id":               funnel.ID,
		"business_id":      funnel.BusinessID,
		"name":             funnel.Name,
		"status":           funnel.Status,
		"assigned_code_id": assigned,
		"reserved_code_id": funnel.ReservedCodeID,
		"created_at":       funnel.CreatedAt,
		"updated_at":       funnel.UpdatedAt,
	}
}
