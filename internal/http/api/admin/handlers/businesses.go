package handlers

import (
	"net/http"
	"strings"

	dbutil "github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BusinessHandler manages business endpoints.
type BusinessHandler struct {
	db *gorm.DB
}

// NewBusinessHandler constructs a BusinessHandler.
func NewBusinessHandler(db *gorm.DB) *BusinessHandler {
	return &BusinessHandler{db: db}
}

type createBusinessRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create stores a new business.
func (h *BusinessHandler) Create(c *gin.Context) {
	var body createBusinessRequest
	if !bindJSON(c, &body) {
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	business := models.Business{Name: name}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&business).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create business failed"})
		return
	}
	c.JSON(http.StatusCreated, formatBusiness(&business))
}

// List returns businesses, optionally filtered by name.
func (h *BusinessHandler) List(c *gin.Context) {
	var page pageQuery
	if errBind := c.ShouldBindQuery(&page); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page.normalize()

	q := h.db.WithContext(c.Request.Context()).Model(&models.Business{})
	if name := strings.TrimSpace(c.Query("name")); name != "" {
		pattern := dbutil.ContainsPattern(h.db, name)
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count businesses failed"})
		return
	}
	var rows []models.Business
	if errFind := q.Order("id ASC").Offset(page.offset()).Limit(page.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list businesses failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatBusiness(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"businesses": out, "total": total, "page": page.Page, "limit": page.Limit})
}

func formatBusiness(business *models.Business) gin.H {
	return gin.H{
		"id":         business.ID,
		"name":       business.Name,
		"created_at": business.CreatedAt,
		"updated_at": business.UpdatedAt,
	}
}
