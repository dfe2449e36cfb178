package handlers

import (
	"errors"
	"net/http"
	"strings"

	dbutil "github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductHandler manages sellable product endpoints.
type ProductHandler struct {
	db  *gorm.DB
	svc *inventory.Service
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(db *gorm.DB, svc *inventory.Service) *ProductHandler {
	return &ProductHandler{db: db, svc: svc}
}

type createProductRequest struct {
	Name              string          `json:"name" binding:"required"`
	SKU               string          `json:"sku"`
	Price             decimal.Decimal `json:"price"`
	IsActive          *bool           `json:"is_active"`
	TracksInventory   bool            `json:"tracks_inventory"`
	InitialStock      int             `json:"initial_stock" binding:"gte=0"`
	LowStockThreshold int             `json:"low_stock_threshold" binding:"gte=0"`
}

// Create stores a new product.
func (h *ProductHandler) Create(c *gin.Context) {
	var body createProductRequest
	if !bindJSON(c, &body) {
		return
	}
	product, errCreate := h.svc.CreateProduct(c.Request.Context(), inventory.ProductInput{
		Name:              body.Name,
		SKU:               body.SKU,
		Price:             body.Price,
		IsActive:          body.IsActive,
		TracksInventory:   body.TracksInventory,
		InitialStock:      body.InitialStock,
		LowStockThreshold: body.LowStockThreshold,
		AdminID:           actingAdmin(c),
	})
	if errCreate != nil {
		respondServiceError(c, errCreate, "create product failed")
		return
	}
	c.JSON(http.StatusCreated, formatProduct(&product))
}

// List returns products filtered by name or SKU and active flag.
func (h *ProductHandler) List(c *gin.Context) {
	var page pageQuery
	if errBind := c.ShouldBindQuery(&page); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page.normalize()

	q := h.db.WithContext(c.Request.Context()).Model(&models.SellableProduct{})
	if keyword := strings.TrimSpace(c.Query("q")); keyword != "" {
		pattern := dbutil.ContainsPattern(h.db, keyword)
		q = q.Where("("+dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+dbutil.CaseInsensitiveLikeExpr(h.db, "sku")+")", pattern, pattern)
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
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count products failed"})
		return
	}
	var rows []models.SellableProduct
	if errFind := q.Order("id ASC").Offset(page.offset()).Limit(page.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list products failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatProduct(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"products": out, "total": total, "page": page.Page, "limit": page.Limit})
}

// Get returns one product.
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var product models.SellableProduct
	if errFind := h.db.WithContext(c.Request.Context()).First(&product, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatProduct(&product))
}

type updateProductRequest struct {
	Name              *string          `json:"name"`
	SKU               *string          `json:"sku"`
	Price             *decimal.Decimal `json:"price"`
	IsActive          *bool            `json:"is_active"`
	TracksInventory   *bool            `json:"tracks_inventory"`
	LowStockThreshold *int             `json:"low_stock_threshold"`
}

// Update patches product fields. Stock changes go through AdjustStock.
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updateProductRequest
	if !bindJSON(c, &body) {
		return
	}
	product, errUpdate := h.svc.UpdateProduct(c.Request.Context(), id, inventory.ProductPatch{
		Name:              body.Name,
		SKU:               body.SKU,
		Price:             body.Price,
		IsActive:          body.IsActive,
		TracksInventory:   body.TracksInventory,
		LowStockThreshold: body.LowStockThreshold,
	})
	if errUpdate != nil {
		respondServiceError(c, errUpdate, "update product failed")
		return
	}
	c.JSON(http.StatusOK, formatProduct(&product))
}

type adjustStockRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason"`
}

// AdjustStock moves a tracked product's stock by a signed delta.
func (h *ProductHandler) AdjustStock(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body adjustStockRequest
	if !bindJSON(c, &body) {
		return
	}
	product, errAdjust := h.svc.AdjustStock(c.Request.Context(), inventory.StockInput{
		ProductID: id,
		Delta:     body.Delta,
		Reason:    body.Reason,
		AdminID:   actingAdmin(c),
	})
	if errAdjust != nil {
		respondServiceError(c, errAdjust, "adjust stock failed")
		return
	}
	c.JSON(http.StatusOK, formatProduct(&product))
}

func formatProduct(product *models.SellableProduct) gin.H {
	return gin.H{
		"id":                  product.ID,
		"name":                product.Name,
		"sku":                 product.SKU,
		"price":               product.Price.StringFixed(2),
		"is_active":           product.IsActive,
		"tracks_inventory":    product.TracksInventory,
		"current_stock":       product.CurrentStock,
		"low_stock_threshold": product.LowStockThreshold,
		"created_at":          product.CreatedAt,
		"updated_at":          product.UpdatedAt,
	}
}
