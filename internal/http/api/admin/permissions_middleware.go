package admin

import (
	"net/http"

	"github.com/funnelkit/qrstock/internal/http/api/admin/permissions"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// adminPermissionMiddleware enforces the permission catalogue against the
// grants adminAuthMiddleware loaded. Routes missing from the catalogue are
// denied even for super admins so a forgotten entry fails closed.
func adminPermissionMiddleware() gin.HandlerFunc {
	permissionMap := permissions.DefinitionMap()

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		key := permissions.Key(c.Request.Method, c.FullPath())
		if _, ok := permissionMap[key]; !ok || c.FullPath() == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}

		grants, okGrants := readAdminPermissionsFromContext(c)
		isSuperAdmin, okSuper := readAdminIsSuperAdminFromContext(c)
		if !okGrants || !okSuper {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if isSuperAdmin || permissions.HasPermission(grants, key) {
			c.Next()
			return
		}

		log.WithFields(log.Fields{"permission": key, "admin_id": c.GetUint64("adminID")}).Info("admin permission denied")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied", "permission": key})
	}
}

func readAdminPermissionsFromContext(c *gin.Context) ([]string, bool) {
	value, ok := c.Get("adminPermissions")
	if !ok {
		return nil, false
	}
	grants, ok := value.([]string)
	return grants, ok
}

func readAdminIsSuperAdminFromContext(c *gin.Context) (bool, bool) {
	value, ok := c.Get("adminIsSuperAdmin")
	if !ok {
		return false, false
	}
	flag, ok := value.(bool)
	return flag, ok
}
