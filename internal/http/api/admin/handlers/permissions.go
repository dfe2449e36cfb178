package handlers

import (
	"net/http"
	"strings"

	"github.com/funnelkit/qrstock/internal/http/api/admin/permissions"
	"github.com/gin-gonic/gin"
)

// PermissionHandler exposes the route catalogue so the console can build
// grant editors and hide actions the caller may not perform.
type PermissionHandler struct{}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

// List returns catalogue entries in module order, optionally restricted to
// one module, each flagged with whether the calling admin holds it.
func (h *PermissionHandler) List(c *gin.Context) {
	module := strings.TrimSpace(c.Query("module"))

	var grants []string
	if value, ok := c.Get("adminPermissions"); ok {
		grants, _ = value.([]string)
	}
	superAdmin := c.GetBool("adminIsSuperAdmin")

	defs := permissions.Definitions()
	out := make([]gin.H, 0, len(defs))
	modules := make([]string, 0)
	seen := make(map[string]struct{})
	for _, def := range defs {
		if _, ok := seen[def.Module]; !ok {
			seen[def.Module] = struct{}{}
			modules = append(modules, def.Module)
		}
		if module != "" && !strings.EqualFold(def.Module, module) {
			continue
		}
		out = append(out, gin.H{
			"key":     def.Key,
			"method":  def.Method,
			"path":    def.Path,
			"label":   def.Label,
			"module":  def.Module,
			"granted": superAdmin || permissions.HasPermission(grants, def.Key),
		})
	}
	c.JSON(http.StatusOK, gin.H{"permissions": out, "modules": modules})
}
