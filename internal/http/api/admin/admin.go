package admin

import (
	"net/http"
	"strings"

	"github.com/funnelkit/qrstock/internal/config"
	"github.com/funnelkit/qrstock/internal/http/api/admin/handlers"
	"github.com/funnelkit/qrstock/internal/http/api/admin/permissions"
	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/funnelkit/qrstock/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers login, MFA and permission-checked admin routes.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc *inventory.Service) {
	if r == nil || db == nil || svc == nil {
		return
	}

	api := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	api.POST("/login", authHandler.Login)
	api.POST("/login/totp", authHandler.LoginTOTP)

	signedIn := api.Group("")
	signedIn.Use(adminAuthMiddleware(db, jwtCfg))

	mfaHandler := handlers.NewMFAHandler(db)
	signedIn.GET("/mfa/status", mfaHandler.Status)
	signedIn.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	signedIn.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	signedIn.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	authed := signedIn.Group("")
	authed.Use(adminPermissionMiddleware())

	adminHandler := handlers.NewAdminHandler(db)
	authed.GET("/admins", adminHandler.List)
	authed.POST("/admins", adminHandler.Create)
	authed.GET("/admins/:id", adminHandler.Get)
	authed.PUT("/admins/:id", adminHandler.Update)
	authed.POST("/admins/:id/disable", adminHandler.Disable)
	authed.POST("/admins/:id/enable", adminHandler.Enable)
	authed.PUT("/admins/:id/password", adminHandler.ChangePassword)

	permissionHandler := handlers.NewPermissionHandler()
	authed.GET("/permissions", permissionHandler.List)

	businessHandler := handlers.NewBusinessHandler(db)
	authed.GET("/businesses", businessHandler.List)
	authed.POST("/businesses", businessHandler.Create)

	funnelHandler := handlers.NewFunnelHandler(db)
	authed.GET("/funnels", funnelHandler.List)
	authed.POST("/funnels", funnelHandler.Create)
	authed.GET("/funnels/:id", funnelHandler.Get)
	authed.PUT("/funnels/:id", funnelHandler.Update)

	batchHandler := handlers.NewBatchHandler(db, svc)
	authed.GET("/batches", batchHandler.List)
	authed.POST("/batches", batchHandler.Generate)
	authed.POST("/batches/reconcile", batchHandler.ReconcileAll)
	authed.GET("/batches/:id", batchHandler.Get)
	authed.POST("/batches/:id/status", batchHandler.AdvanceStatus)
	authed.POST("/batches/:id/reconcile", batchHandler.Reconcile)

	codeHandler := handlers.NewCodeHandler(db, svc)
	authed.GET("/codes", codeHandler.List)
	authed.GET("/codes/:id", codeHandler.Get)
	authed.POST("/codes/:id/assign", codeHandler.Assign)
	authed.POST("/codes/:id/unassign", codeHandler.Unassign)
	authed.POST("/codes/:id/reserve", codeHandler.Reserve)
	authed.POST("/codes/:id/release", codeHandler.Release)
	authed.POST("/codes/:id/damaged", codeHandler.Damaged)
	authed.POST("/codes/:id/lost", codeHandler.Lost)
	authed.POST("/codes/:id/repair", codeHandler.Repair)
	authed.GET("/codes/:id/audit-logs", codeHandler.AuditLogs)

	auditLogHandler := handlers.NewAuditLogHandler(db)
	authed.GET("/audit-logs", auditLogHandler.List)

	productHandler := handlers.NewProductHandler(db, svc)
	authed.GET("/products", productHandler.List)
	authed.POST("/products", productHandler.Create)
	authed.GET("/products/:id", productHandler.Get)
	authed.PUT("/products/:id", productHandler.Update)
	authed.POST("/products/:id/stock", productHandler.AdjustStock)

	allocationHandler := handlers.NewAllocationHandler(db, svc)
	authed.GET("/allocations", allocationHandler.List)
	authed.POST("/allocations", allocationHandler.Link)
	authed.PUT("/allocations/:id", allocationHandler.Adjust)
	authed.DELETE("/allocations/:id", allocationHandler.Deactivate)
	authed.POST("/allocations/:id/consume", allocationHandler.Consume)

	movementHandler := handlers.NewMovementHandler(db)
	authed.GET("/inventory/movements", movementHandler.List)

	alertHandler := handlers.NewAlertHandler(svc)
	authed.GET("/inventory/alerts", alertHandler.List)

	settingHandler := handlers.NewSettingHandler(db, svc)
	authed.GET("/settings", settingHandler.List)
	authed.PUT("/settings", settingHandler.Update)
}

// adminAuthMiddleware validates admin JWTs and loads the admin into context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}
		if !admin.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminPermissions", permissions.ParsePermissions(admin.Permissions))
		c.Set("adminIsSuperAdmin", admin.IsSuperAdmin)
		c.Next()
	}
}
