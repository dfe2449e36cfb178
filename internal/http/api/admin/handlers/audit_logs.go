package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/funnelkit/qrstock/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditLogHandler serves the global code audit trail.
type AuditLogHandler struct {
	db *gorm.DB
}

// NewAuditLogHandler constructs an AuditLogHandler.
func NewAuditLogHandler(db *gorm.DB) *AuditLogHandler {
	return &AuditLogHandler{db: db}
}

// List returns audit rows filtered by code, funnel, admin and action.
func (h *AuditLogHandler) List(c *gin.Context) {
	codeID, ok := parseOptionalUintQuery(c, "code_id")
	if !ok {
		return
	}
	funnelID, ok := parseOptionalUintQuery(c, "funnel_id")
	if !ok {
		return
	}
	adminID, ok := parseOptionalUintQuery(c, "admin_id")
	if !ok {
		return
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.QRCodeAuditLog{})
	if codeID != nil {
		q = q.Where("code_id = ?", *codeID)
	}
	if funnelID != nil {
		q = q.Where("funnel_id = ? OR previous_funnel_id = ?", *funnelID, *funnelID)
	}
	if adminID != nil {
		q = q.Where("admin_id = ?", *adminID)
	}
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		q = q.Where("action = ?", action)
	}
	listAuditLogs(c, q)
}

// listAuditLogs pages a prepared audit query, newest first.
func listAuditLogs(c *gin.Context, q *gorm.DB) {
	var page pageQuery
	if errBind := c.ShouldBindQuery(&page); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page.normalize()

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count audit logs failed"})
		return
	}
	var rows []models.QRCodeAuditLog
	if errFind := q.Order("created_at DESC, id DESC").Offset(page.offset()).Limit(page.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list audit logs failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatAuditLog(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": out, "total": total, "page": page.Page, "limit": page.Limit})
}

func formatAuditLog(row *models.QRCodeAuditLog) gin.H {
	var metadata any
	if len(row.Metadata) > 0 {
		_ = json.Unmarshal(row.Metadata, &metadata)
	}
	return gin.H{
		"id":                 row.ID,
		"code_id":            row.CodeID,
		"action":             row.Action,
		"previous_status":    row.PreviousStatus,
		"new_status":         row.NewStatus,
		"funnel_id":          row.FunnelID,
		"previous_funnel_id": row.PreviousFunnelID,
		"admin_id":           row.AdminID,
		"reason":             row.Reason,
		"metadata":           metadata,
		"created_at":         row.CreatedAt,
	}
}
