package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dbutil "github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(db); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

// withAdmin stands in for the auth middleware.
func withAdmin(adminID uint64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("adminID", adminID)
		c.Next()
	}
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var payload map[string]any
	if w.Body.Len() > 0 {
		if errDecode := json.Unmarshal(w.Body.Bytes(), &payload); errDecode != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), errDecode)
		}
	}
	return w, payload
}

func seedHandlerFunnel(t *testing.T, db *gorm.DB, name string) models.Funnel {
	t.Helper()
	business := models.Business{Name: name + " inc"}
	if errCreate := db.Create(&business).Error; errCreate != nil {
		t.Fatalf("create business: %v", errCreate)
	}
	funnel := models.Funnel{BusinessID: business.ID, Name: name, Status: models.FunnelStatusActive}
	if errCreate := db.Create(&funnel).Error; errCreate != nil {
		t.Fatalf("create funnel: %v", errCreate)
	}
	return funnel
}

func seedHandlerBatch(t *testing.T, db *gorm.DB, svc *inventory.Service, quantity int) (models.QRBatch, []models.QRCode) {
	t.Helper()
	batch, errGenerate := svc.GenerateBatch(context.Background(), inventory.GenerateBatchInput{Name: "handler batch", Quantity: quantity})
	if errGenerate != nil {
		t.Fatalf("generate batch: %v", errGenerate)
	}
	var codes []models.QRCode
	if errFind := db.Where("batch_id = ?", batch.ID).Order("id ASC").Find(&codes).Error; errFind != nil {
		t.Fatalf("load codes: %v", errFind)
	}
	return batch, codes
}
