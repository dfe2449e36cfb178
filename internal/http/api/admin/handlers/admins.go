package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	dbutil "github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/http/api/admin/permissions"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/funnelkit/qrstock/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminHandler manages admin account endpoints.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// createAdminRequest defines the request body for admin creation.
type createAdminRequest struct {
	Username     string   `json:"username" binding:"required"`
	Password     string   `json:"password" binding:"required"`
	Permissions  []string `json:"permissions"`
	IsSuperAdmin bool     `json:"is_super_admin"`
}

// Create creates a new admin account.
func (h *AdminHandler) Create(c *gin.Context) {
	var body createAdminRequest
	if !bindJSON(c, &body) {
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username"})
		return
	}

	hash, errHash := security.HashPassword(strings.TrimSpace(body.Password))
	if errHash != nil {
		if errors.Is(errHash, security.ErrWeakPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	permissionsJSON, ok := normalizedPermissionsJSON(c, body.Permissions)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var existing int64
	if errCount := h.db.WithContext(ctx).Model(&models.Admin{}).Where("username = ?", username).Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	now := time.Now().UTC()
	admin := models.Admin{
		Username:     username,
		Password:     hash,
		Active:       true,
		IsAdmin:      true,
		IsSuperAdmin: body.IsSuperAdmin,
		Permissions:  permissionsJSON,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create admin failed"})
		return
	}
	c.JSON(http.StatusCreated, formatAdmin(&admin))
}

// List returns all admin accounts with an optional username filter.
func (h *AdminHandler) List(c *gin.Context) {
	usernameQ := strings.TrimSpace(c.Query("username"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Admin{})
	if usernameQ != "" {
		pattern := dbutil.ContainsPattern(h.db, usernameQ)
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "username"), pattern)
	}

	var rows []models.Admin
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list admins failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatAdmin(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"admins": out})
}

// Get returns a single admin account by ID.
func (h *AdminHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatAdmin(&admin))
}

// updateAdminRequest defines the request body for admin updates.
type updateAdminRequest struct {
	Username     *string   `json:"username"`
	Permissions  *[]string `json:"permissions"`
	IsSuperAdmin *bool     `json:"is_super_admin"`
	IsAdmin      *bool     `json:"is_admin"`
}

// Update modifies admin account fields.
func (h *AdminHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updateAdminRequest
	if !bindJSON(c, &body) {
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Username != nil {
		username := strings.TrimSpace(*body.Username)
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username cannot be empty"})
			return
		}
		updates["username"] = username
	}
	if body.Permissions != nil {
		permissionsJSON, okPermissions := normalizedPermissionsJSON(c, *body.Permissions)
		if !okPermissions {
			return
		}
		updates["permissions"] = permissionsJSON
	}
	if body.IsSuperAdmin != nil {
		updates["is_super_admin"] = *body.IsSuperAdmin
	}
	if body.IsAdmin != nil {
		updates["is_admin"] = *body.IsAdmin
	}

	h.applyUpdates(c, id, updates, "update failed")
}

// Disable deactivates an admin account.
func (h *AdminHandler) Disable(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	h.applyUpdates(c, id, map[string]any{"active": false, "updated_at": time.Now().UTC()}, "disable failed")
}

// Enable reactivates an admin account.
func (h *AdminHandler) Enable(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	h.applyUpdates(c, id, map[string]any{"active": true, "updated_at": time.Now().UTC()}, "enable failed")
}

// changeAdminPasswordRequest defines the request body for password changes.
type changeAdminPasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword replaces an admin password. Admins changing their own
// password must supply the old one.
func (h *AdminHandler) ChangePassword(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body changeAdminPasswordRequest
	if !bindJSON(c, &body) {
		return
	}

	if selfID, okSelf := readAdminIDFromContext(c); okSelf && selfID == id {
		var admin models.Admin
		if errFind := h.db.WithContext(c.Request.Context()).Select("id", "password").First(&admin, id).Error; errFind != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if !security.CheckPassword(admin.Password, strings.TrimSpace(body.OldPassword)) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
	}

	hash, errHash := security.HashPassword(strings.TrimSpace(body.NewPassword))
	if errHash != nil {
		if errors.Is(errHash, security.ErrWeakPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	h.applyUpdates(c, id, map[string]any{"password": hash, "updated_at": time.Now().UTC()}, "change password failed")
}

func (h *AdminHandler) applyUpdates(c *gin.Context, id uint64, updates map[string]any, failure string) {
	res := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": failure})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// normalizedPermissionsJSON validates a permission list, replying 400 when invalid.
func normalizedPermissionsJSON(c *gin.Context, list []string) (datatypes.JSON, bool) {
	normalized := permissions.NormalizePermissions(list)
	if errValidate := permissions.ValidatePermissions(normalized); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permissions"})
		return nil, false
	}
	raw, errMarshal := permissions.MarshalPermissions(normalized)
	if errMarshal != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "marshal permissions failed"})
		return nil, false
	}
	return datatypes.JSON(raw), true
}

func formatAdmin(admin *models.Admin) gin.H {
	return gin.H{
		"id":             admin.ID,
		"username":       admin.Username,
		"active":         admin.Active,
		"is_admin":       admin.IsAdmin,
		"is_super_admin": admin.IsSuperAdmin,
		"totp_enabled":   strings.TrimSpace(admin.TOTPSecret) != "",
		"permissions":    permissions.ParsePermissions(admin.Permissions),
		"last_login_at":  admin.LastLoginAt,
		"created_at":     admin.CreatedAt,
		"updated_at":     admin.UpdatedAt,
	}
}
