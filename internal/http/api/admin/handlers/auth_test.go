package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/funnelkit/qrstock/internal/config"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/funnelkit/qrstock/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const testJWTSecret = "handler-test-secret"

func seedAdmin(t *testing.T, db *gorm.DB, username, password string, mutate func(*models.Admin)) models.Admin {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	admin := models.Admin{
		Username:    username,
		Password:    hash,
		Active:      true,
		IsAdmin:     true,
		Permissions: datatypes.JSON(`[]`),
	}
	if mutate != nil {
		mutate(&admin)
	}
	// Create skips false for default:true columns and writes the default back
	// into admin, so the wanted flags are captured first.
	flags := map[string]any{"active": admin.Active, "is_admin": admin.IsAdmin}
	if errCreate := db.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	if errUpdate := db.Model(&admin).Updates(flags).Error; errUpdate != nil {
		t.Fatalf("update admin flags: %v", errUpdate)
	}
	if errReload := db.First(&admin, admin.ID).Error; errReload != nil {
		t.Fatalf("reload admin: %v", errReload)
	}
	return admin
}

func newAuthRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	h := NewAuthHandler(db, config.JWTConfig{Secret: testJWTSecret, Expiry: time.Hour})
	r.POST("/login", h.Login)
	r.POST("/login/totp", h.LoginTOTP)
	return r
}

func TestAuthHandler_Login(t *testing.T) {
	db := setupHandlerTestDB(t)
	admin := seedAdmin(t, db, "ops", "correct-horse", nil)
	r := newAuthRouter(db)

	w, body := doJSON(t, r, http.MethodPost, "/login", gin.H{"username": "ops", "password": "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d, body %s", w.Code, w.Body.String())
	}
	token, _ := body["token"].(string)
	claims, errParse := security.ParseAdminToken(testJWTSecret, token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.AdminID != admin.ID || claims.Username != "ops" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	var stored models.Admin
	if errFind := db.First(&stored, admin.ID).Error; errFind != nil {
		t.Fatalf("reload admin: %v", errFind)
	}
	if stored.LastLoginAt == nil {
		t.Fatalf("expected last_login_at to be recorded")
	}

	if w, _ = doJSON(t, r, http.MethodPost, "/login", gin.H{"username": "ops", "password": "wrong-password"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d, want 401", w.Code)
	}
	if w, _ = doJSON(t, r, http.MethodPost, "/login", gin.H{"username": "ghost", "password": "whatever1"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user = %d, want 401", w.Code)
	}
	if w, _ = doJSON(t, r, http.MethodPost, "/login", gin.H{"username": "ops"}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing password = %d, want 400", w.Code)
	}
}

func TestAuthHandler_LoginRejectsDisabledAndNonAdmin(t *testing.T) {
	db := setupHandlerTestDB(t)
	retired := seedAdmin(t, db, "retired", "correct-horse", func(a *models.Admin) { a.Active = false })
	viewer := seedAdmin(t, db, "viewer", "correct-horse", func(a *models.Admin) { a.IsAdmin = false })
	if retired.Active || !viewer.Active || viewer.IsAdmin {
		t.Fatalf("seeded flags not stored: retired active=%v, viewer active=%v is_admin=%v", retired.Active, viewer.Active, viewer.IsAdmin)
	}
	r := newAuthRouter(db)

	if w, _ := doJSON(t, r, http.MethodPost, "/login", gin.H{"username": "retired", "password": "correct-horse"}); w.Code != http.StatusForbidden {
		t.Fatalf("disabled admin = %d, want 403", w.Code)
	}
	if w, _ := doJSON(t, r, http.MethodPost, "/login", gin.H{"username": "viewer", "password": "correct-horse"}); w.Code != http.StatusForbidden {
		t.Fatalf("non admin = %d, want 403", w.Code)
	}
}

func TestAuthHandler_LoginTOTP(t *testing.T) {
	db := setupHandlerTestDB(t)
	key, errGenerate := totp.Generate(totp.GenerateOpts{Issuer: totpIssuer, AccountName: "mfa"})
	if errGenerate != nil {
		t.Fatalf("generate totp: %v", errGenerate)
	}
	seedAdmin(t, db, "mfa", "correct-horse", func(a *models.Admin) { a.TOTPSecret = key.Secret() })
	r := newAuthRouter(db)

	w, body := doJSON(t, r, http.MethodPost, "/login", gin.H{"username": "mfa", "password": "correct-horse"})
	if w.Code != http.StatusForbidden || body["error"] != "mfa required" {
		t.Fatalf("password only = %d, body %s", w.Code, w.Body.String())
	}

	if w, _ = doJSON(t, r, http.MethodPost, "/login/totp", gin.H{"username": "mfa", "password": "correct-horse", "code": "000000x"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad code = %d, want 401", w.Code)
	}

	code, errCode := totp.GenerateCode(key.Secret(), time.Now())
	if errCode != nil {
		t.Fatalf("generate code: %v", errCode)
	}
	w, body = doJSON(t, r, http.MethodPost, "/login/totp", gin.H{"username": "mfa", "password": "correct-horse", "code": code})
	if w.Code != http.StatusOK {
		t.Fatalf("totp login = %d, body %s", w.Code, w.Body.String())
	}
	if token, _ := body["token"].(string); token == "" {
		t.Fatalf("expected token in response")
	}
}
