package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/funnelkit/qrstock/internal/config"
	dbutil "github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/funnelkit/qrstock/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var testJWT = config.JWTConfig{Secret: "admin-routes-secret", Expiry: time.Hour}

func setupAdminRoutes(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:admin_routes_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(db); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	r := gin.New()
	RegisterAdminRoutes(r, db, testJWT, inventory.NewService(db))
	return r, db
}

func createAdmin(t *testing.T, db *gorm.DB, username string, perms string, super, active bool) string {
	t.Helper()
	admin := models.Admin{
		Username:     username,
		Password:     "unused",
		Active:       true,
		IsAdmin:      true,
		IsSuperAdmin: super,
		Permissions:  datatypes.JSON(perms),
	}
	if errCreate := db.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	if !active {
		if errUpdate := db.Model(&admin).Update("active", false).Error; errUpdate != nil {
			t.Fatalf("disable admin: %v", errUpdate)
		}
	}
	token, errToken := security.GenerateAdminToken(testJWT.Secret, admin.ID, admin.Username, time.Hour)
	if errToken != nil {
		t.Fatalf("generate token: %v", errToken)
	}
	return token
}

func serve(r http.Handler, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuthMiddleware_RejectsBadTokens(t *testing.T) {
	r, db := setupAdminRoutes(t)
	disabled := createAdmin(t, db, "disabled", `[]`, true, false)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Token abc", want: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer   ", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
		{name: "disabled admin", header: "Bearer " + disabled, want: http.StatusForbidden},
	}
	for _, tc := range cases {
		if w := serve(r, http.MethodGet, "/v0/admin/codes", tc.header); w.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.name, w.Code, tc.want)
		}
	}

	other, errToken := security.GenerateAdminToken("another-secret", 1, "disabled", time.Hour)
	if errToken != nil {
		t.Fatalf("generate token: %v", errToken)
	}
	if w := serve(r, http.MethodGet, "/v0/admin/codes", "Bearer "+other); w.Code != http.StatusUnauthorized {
		t.Fatalf("foreign signature: status = %d, want 401", w.Code)
	}
}

func TestAdminPermissionMiddleware(t *testing.T) {
	r, db := setupAdminRoutes(t)
	reader := createAdmin(t, db, "reader", `["GET /v0/admin/codes"]`, false, true)
	root := createAdmin(t, db, "root", `[]`, true, true)

	if w := serve(r, http.MethodGet, "/v0/admin/codes", "Bearer "+reader); w.Code != http.StatusOK {
		t.Fatalf("granted route: status = %d, body %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/v0/admin/batches", "Bearer "+reader); w.Code != http.StatusForbidden {
		t.Fatalf("ungranted route: status = %d, want 403", w.Code)
	}
	if w := serve(r, http.MethodPost, "/v0/admin/batches/reconcile", "Bearer "+reader); w.Code != http.StatusForbidden {
		t.Fatalf("ungranted mutation: status = %d, want 403", w.Code)
	}
	if w := serve(r, http.MethodGet, "/v0/admin/batches", "Bearer "+root); w.Code != http.StatusOK {
		t.Fatalf("super admin: status = %d, want 200", w.Code)
	}
	if w := serve(r, http.MethodGet, "/v0/admin/mfa/status", "Bearer "+reader); w.Code != http.StatusOK {
		t.Fatalf("mfa status without permission: status = %d, want 200", w.Code)
	}
}

func TestPermissionList_FlagsCallerGrants(t *testing.T) {
	r, db := setupAdminRoutes(t)
	token := createAdmin(t, db, "auditor", `["GET /v0/admin/permissions","GET /v0/admin/codes"]`, false, true)

	w := serve(r, http.MethodGet, "/v0/admin/permissions?module=codes", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("list permissions: status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Permissions []struct {
			Key     string `json:"key"`
			Module  string `json:"module"`
			Granted bool   `json:"granted"`
		} `json:"permissions"`
		Modules []string `json:"modules"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if len(body.Permissions) == 0 || len(body.Modules) < 2 {
		t.Fatalf("unexpected listing %+v", body)
	}
	for _, p := range body.Permissions {
		if p.Module != "Codes" {
			t.Fatalf("module filter leaked %s", p.Key)
		}
		if p.Granted != (p.Key == "GET /v0/admin/codes") {
			t.Fatalf("%s granted = %v", p.Key, p.Granted)
		}
	}
}
