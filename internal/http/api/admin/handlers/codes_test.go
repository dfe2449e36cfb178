package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func newCodeRouter(db *gorm.DB, svc *inventory.Service) *gin.Engine {
	r := gin.New()
	r.Use(withAdmin(1))
	h := NewCodeHandler(db, svc)
	r.GET("/codes", h.List)
	r.GET("/codes/:id", h.Get)
	r.POST("/codes/:id/assign", h.Assign)
	r.POST("/codes/:id/unassign", h.Unassign)
	r.POST("/codes/:id/reserve", h.Reserve)
	r.POST("/codes/:id/damaged", h.Damaged)
	r.GET("/codes/:id/audit-logs", h.AuditLogs)
	return r
}

func TestCodeHandler_AssignThenConflict(t *testing.T) {
	db := setupHandlerTestDB(t)
	svc := inventory.NewService(db)
	r := newCodeRouter(db, svc)
	first := seedHandlerFunnel(t, db, "spring promo")
	second := seedHandlerFunnel(t, db, "summer promo")
	_, codes := seedHandlerBatch(t, db, svc, 2)

	w, body := doJSON(t, r, http.MethodPost, fmt.Sprintf("/codes/%d/assign", codes[0].ID), gin.H{"funnel_id": first.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("assign status = %d, body %s", w.Code, w.Body.String())
	}
	code, _ := body["code"].(map[string]any)
	if code["status"] != models.CodeStatusAssigned {
		t.Fatalf("expected assigned status, got %v", code["status"])
	}
	if code["funnel_id"] != float64(first.ID) {
		t.Fatalf("expected funnel_id %d, got %v", first.ID, code["funnel_id"])
	}

	w, body = doJSON(t, r, http.MethodPost, fmt.Sprintf("/codes/%d/assign", codes[0].ID), gin.H{"funnel_id": second.ID})
	if w.Code != http.StatusConflict {
		t.Fatalf("second assign status = %d, want 409", w.Code)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "assigned") {
		t.Fatalf("expected conflict message to mention assigned, got %q", msg)
	}
}

func TestCodeHandler_AssignRequiresFunnel(t *testing.T) {
	db := setupHandlerTestDB(t)
	svc := inventory.NewService(db)
	r := newCodeRouter(db, svc)
	_, codes := seedHandlerBatch(t, db, svc, 1)

	w, body := doJSON(t, r, http.MethodPost, fmt.Sprintf("/codes/%d/assign", codes[0].ID), gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["error"] != "missing funnel_id" {
		t.Fatalf("unexpected error %v", body["error"])
	}

	w, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/codes/%d/assign", codes[0].ID), gin.H{"funnel_id": 999})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown funnel status = %d, want 404", w.Code)
	}
}

func TestCodeHandler_UnassignRequiresReason(t *testing.T) {
	db := setupHandlerTestDB(t)
	svc := inventory.NewService(db)
	r := newCodeRouter(db, svc)
	funnel := seedHandlerFunnel(t, db, "promo")
	_, codes := seedHandlerBatch(t, db, svc, 1)
	path := fmt.Sprintf("/codes/%d", codes[0].ID)

	if w, _ := doJSON(t, r, http.MethodPost, path+"/assign", gin.H{"funnel_id": funnel.ID}); w.Code != http.StatusOK {
		t.Fatalf("assign status = %d", w.Code)
	}

	w, body := doJSON(t, r, http.MethodPost, path+"/unassign", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unassign without reason status = %d, want 400", w.Code)
	}
	if body["error"] != "reason is required" {
		t.Fatalf("unexpected error %v", body["error"])
	}

	w, body = doJSON(t, r, http.MethodPost, path+"/unassign", gin.H{"reason": "funnel retired"})
	if w.Code != http.StatusOK {
		t.Fatalf("unassign status = %d, body %s", w.Code, w.Body.String())
	}
	if body["status"] != models.CodeStatusAvailable {
		t.Fatalf("expected available, got %v", body["status"])
	}
	if body["funnel_id"] != nil {
		t.Fatalf("expected funnel_id cleared, got %v", body["funnel_id"])
	}

	w, body = doJSON(t, r, http.MethodGet, path+"/audit-logs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit status = %d", w.Code)
	}
	if body["total"] != float64(2) {
		t.Fatalf("expected 2 audit rows, got %v", body["total"])
	}
	rows, _ := body["audit_logs"].([]any)
	newest, _ := rows[0].(map[string]any)
	if newest["action"] != models.AuditActionUnassign || newest["reason"] != "funnel retired" {
		t.Fatalf("unexpected newest audit row %v", newest)
	}
	if newest["admin_id"] != float64(1) {
		t.Fatalf("expected acting admin 1, got %v", newest["admin_id"])
	}
}

func TestCodeHandler_ListFilters(t *testing.T) {
	db := setupHandlerTestDB(t)
	svc := inventory.NewService(db)
	r := newCodeRouter(db, svc)
	batch, codes := seedHandlerBatch(t, db, svc, 3)
	other, _ := seedHandlerBatch(t, db, svc, 2)

	if w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/codes/%d/damaged", codes[1].ID), gin.H{"reason": "torn"}); w.Code != http.StatusOK {
		t.Fatalf("mark damaged status = %d", w.Code)
	}

	w, body := doJSON(t, r, http.MethodGet, fmt.Sprintf("/codes?batch_id=%d", batch.ID), nil)
	if w.Code != http.StatusOK || body["total"] != float64(3) {
		t.Fatalf("batch filter: status %d total %v", w.Code, body["total"])
	}
	w, body = doJSON(t, r, http.MethodGet, "/codes?status=damaged", nil)
	if w.Code != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("status filter: status %d total %v", w.Code, body["total"])
	}
	w, body = doJSON(t, r, http.MethodGet, "/codes?code="+strings.ToLower(other.BatchNumber), nil)
	if w.Code != http.StatusOK || body["total"] != float64(2) {
		t.Fatalf("code filter: status %d total %v", w.Code, body["total"])
	}
	if w, _ = doJSON(t, r, http.MethodGet, "/codes?status=broken", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d, want 400", w.Code)
	}
	if w, _ = doJSON(t, r, http.MethodGet, "/codes?batch_id=abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad batch_id filter = %d, want 400", w.Code)
	}
	if w, _ = doJSON(t, r, http.MethodGet, "/codes/0", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("zero id = %d, want 400", w.Code)
	}
	if w, _ = doJSON(t, r, http.MethodGet, "/codes/999", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing code = %d, want 404", w.Code)
	}
}

func TestCodeHandler_ReservedCodeNeedsOverride(t *testing.T) {
	db := setupHandlerTestDB(t)
	svc := inventory.NewService(db)
	r := newCodeRouter(db, svc)
	funnel := seedHandlerFunnel(t, db, "launch")
	_, codes := seedHandlerBatch(t, db, svc, 1)
	assignPath := fmt.Sprintf("/codes/%d/assign", codes[0].ID)

	if w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/codes/%d/reserve", codes[0].ID), gin.H{"funnel_id": funnel.ID}); w.Code != http.StatusOK {
		t.Fatalf("reserve status = %d, body %s", w.Code, w.Body.String())
	}

	w, _ := doJSON(t, r, http.MethodPost, assignPath, gin.H{"funnel_id": funnel.ID})
	if w.Code != http.StatusConflict {
		t.Fatalf("assign reserved without override = %d, want 409", w.Code)
	}
	var stored models.QRCode
	if errFind := db.First(&stored, codes[0].ID).Error; errFind != nil {
		t.Fatalf("reload code: %v", errFind)
	}
	if stored.Status != models.CodeStatusReserved || stored.FunnelID != nil {
		t.Fatalf("rejected assign mutated code: status=%s funnel=%v", stored.Status, stored.FunnelID)
	}

	w, body := doJSON(t, r, http.MethodPost, assignPath, gin.H{"funnel_id": funnel.ID, "override": true})
	if w.Code != http.StatusOK {
		t.Fatalf("assign with override = %d, body %s", w.Code, w.Body.String())
	}
	if code, _ := body["code"].(map[string]any); code["status"] != models.CodeStatusAssigned {
		t.Fatalf("expected assigned, got %v", body["code"])
	}
}
