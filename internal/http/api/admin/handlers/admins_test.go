package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/funnelkit/qrstock/internal/models"
	"github.com/funnelkit/qrstock/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func newAdminRouter(db *gorm.DB, actingID uint64) *gin.Engine {
	r := gin.New()
	r.Use(withAdmin(actingID))
	h := NewAdminHandler(db)
	r.GET("/admins", h.List)
	r.POST("/admins", h.Create)
	r.GET("/admins/:id", h.Get)
	r.PUT("/admins/:id", h.Update)
	r.POST("/admins/:id/disable", h.Disable)
	r.POST("/admins/:id/enable", h.Enable)
	r.PUT("/admins/:id/password", h.ChangePassword)
	return r
}

func TestAdminHandler_CreateAndUpdate(t *testing.T) {
	db := setupHandlerTestDB(t)
	root := seedAdmin(t, db, "root", "root-password", func(a *models.Admin) { a.IsSuperAdmin = true })
	r := newAdminRouter(db, root.ID)

	w, body := doJSON(t, r, http.MethodPost, "/admins", gin.H{
		"username":    "packer",
		"password":    "packer-password",
		"permissions": []string{"post /v0/admin/codes/:id/assign", "GET /v0/admin/codes", "GET /v0/admin/codes"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body %s", w.Code, w.Body.String())
	}
	perms, _ := body["permissions"].([]any)
	if len(perms) != 2 || perms[0] != "GET /v0/admin/codes" || perms[1] != "POST /v0/admin/codes/:id/assign" {
		t.Fatalf("expected normalized permissions, got %v", body["permissions"])
	}
	id := uint64(body["id"].(float64))

	if w, _ = doJSON(t, r, http.MethodPost, "/admins", gin.H{"username": "packer", "password": "another-password"}); w.Code != http.StatusConflict {
		t.Fatalf("duplicate = %d, want 409", w.Code)
	}
	if w, _ = doJSON(t, r, http.MethodPost, "/admins", gin.H{"username": "short", "password": "abc"}); w.Code != http.StatusBadRequest {
		t.Fatalf("short password = %d, want 400", w.Code)
	}
	if w, _ = doJSON(t, r, http.MethodPost, "/admins", gin.H{"username": "bogus", "password": "bogus-password", "permissions": []string{"GET /nowhere"}}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown permission = %d, want 400", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/admins/%d/disable", id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("disable = %d", w.Code)
	}
	w, body = doJSON(t, r, http.MethodGet, fmt.Sprintf("/admins/%d", id), nil)
	if w.Code != http.StatusOK || body["active"] != false {
		t.Fatalf("get after disable = %d, body %s", w.Code, w.Body.String())
	}
	if w, _ = doJSON(t, r, http.MethodPost, "/admins/999/enable", nil); w.Code != http.StatusNotFound {
		t.Fatalf("enable missing = %d, want 404", w.Code)
	}

	w, body = doJSON(t, r, http.MethodGet, "/admins?username=PACK", nil)
	if rows, _ := body["admins"].([]any); w.Code != http.StatusOK || len(rows) != 1 {
		t.Fatalf("list filter = %d, body %s", w.Code, w.Body.String())
	}
}

func TestAdminHandler_ChangeOwnPasswordNeedsOldPassword(t *testing.T) {
	db := setupHandlerTestDB(t)
	self := seedAdmin(t, db, "self", "old-password", nil)
	r := newAdminRouter(db, self.ID)
	path := fmt.Sprintf("/admins/%d/password", self.ID)

	if w, _ := doJSON(t, r, http.MethodPut, path, gin.H{"old_password": "nope-nope", "new_password": "new-password"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old password = %d, want 401", w.Code)
	}
	if w, _ := doJSON(t, r, http.MethodPut, path, gin.H{"old_password": "old-password", "new_password": "new-password"}); w.Code != http.StatusOK {
		t.Fatalf("change = %d", w.Code)
	}
	var stored models.Admin
	if errFind := db.First(&stored, self.ID).Error; errFind != nil {
		t.Fatalf("reload admin: %v", errFind)
	}
	if !security.CheckPassword(stored.Password, "new-password") {
		t.Fatalf("expected new password to be stored")
	}
}
