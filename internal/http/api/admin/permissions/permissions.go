// Package permissions defines the admin permission catalogue. A permission
// key is "METHOD /route/pattern" exactly as registered with gin.
package permissions

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// Definition describes one permission-checked admin route.
type Definition struct {
	Key    string // "METHOD /path" lookup key.
	Method string // HTTP method.
	Path   string // gin route pattern.
	Label  string // Human readable label.
	Module string // UI grouping.
}

// Key builds the permission key for a method and route pattern.
func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

func def(method, path, label, module string) Definition {
	return Definition{Key: Key(method, path), Method: method, Path: path, Label: label, Module: module}
}

var definitions = []Definition{
	def(http.MethodGet, "/v0/admin/admins", "List admins", "Admins"),
	def(http.MethodPost, "/v0/admin/admins", "Create admin", "Admins"),
	def(http.MethodGet, "/v0/admin/admins/:id", "View admin", "Admins"),
	def(http.MethodPut, "/v0/admin/admins/:id", "Update admin", "Admins"),
	def(http.MethodPost, "/v0/admin/admins/:id/disable", "Disable admin", "Admins"),
	def(http.MethodPost, "/v0/admin/admins/:id/enable", "Enable admin", "Admins"),
	def(http.MethodPut, "/v0/admin/admins/:id/password", "Change admin password", "Admins"),
	def(http.MethodGet, "/v0/admin/permissions", "List permissions", "Admins"),

	def(http.MethodGet, "/v0/admin/businesses", "List businesses", "Funnels"),
	def(http.MethodPost, "/v0/admin/businesses", "Create business", "Funnels"),
	def(http.MethodGet, "/v0/admin/funnels", "List funnels", "Funnels"),
	def(http.MethodPost, "/v0/admin/funnels", "Create funnel", "Funnels"),
	def(http.MethodGet, "/v0/admin/funnels/:id", "View funnel", "Funnels"),
	def(http.MethodPut, "/v0/admin/funnels/:id", "Update funnel", "Funnels"),

	def(http.MethodGet, "/v0/admin/batches", "List batches", "Batches"),
	def(http.MethodPost, "/v0/admin/batches", "Generate batch", "Batches"),
	def(http.MethodGet, "/v0/admin/batches/:id", "View batch", "Batches"),
	def(http.MethodPost, "/v0/admin/batches/:id/status", "Advance batch status", "Batches"),
	def(http.MethodPost, "/v0/admin/batches/:id/reconcile", "Reconcile batch", "Batches"),
	def(http.MethodPost, "/v0/admin/batches/reconcile", "Reconcile all batches", "Batches"),

	def(http.MethodGet, "/v0/admin/codes", "List codes", "Codes"),
	def(http.MethodGet, "/v0/admin/codes/:id", "View code", "Codes"),
	def(http.MethodPost, "/v0/admin/codes/:id/assign", "Assign code", "Codes"),
	def(http.MethodPost, "/v0/admin/codes/:id/unassign", "Unassign code", "Codes"),
	def(http.MethodPost, "/v0/admin/codes/:id/reserve", "Reserve code", "Codes"),
	def(http.MethodPost, "/v0/admin/codes/:id/release", "Release reservation", "Codes"),
	def(http.MethodPost, "/v0/admin/codes/:id/damaged", "Mark code damaged", "Codes"),
	def(http.MethodPost, "/v0/admin/codes/:id/lost", "Mark code lost", "Codes"),
	def(http.MethodPost, "/v0/admin/codes/:id/repair", "Repair code", "Codes"),
	def(http.MethodGet, "/v0/admin/codes/:id/audit-logs", "View code audit log", "Codes"),
	def(http.MethodGet, "/v0/admin/audit-logs", "List audit logs", "Codes"),

	def(http.MethodGet, "/v0/admin/products", "List products", "Inventory"),
	def(http.MethodPost, "/v0/admin/products", "Create product", "Inventory"),
	def(http.MethodGet, "/v0/admin/products/:id", "View product", "Inventory"),
	def(http.MethodPut, "/v0/admin/products/:id", "Update product", "Inventory"),
	def(http.MethodPost, "/v0/admin/products/:id/stock", "Adjust stock", "Inventory"),
	def(http.MethodGet, "/v0/admin/allocations", "List allocations", "Inventory"),
	def(http.MethodPost, "/v0/admin/allocations", "Link product to batch", "Inventory"),
	def(http.MethodPut, "/v0/admin/allocations/:id", "Adjust allocation", "Inventory"),
	def(http.MethodDelete, "/v0/admin/allocations/:id", "Deactivate allocation", "Inventory"),
	def(http.MethodPost, "/v0/admin/allocations/:id/consume", "Consume allocation", "Inventory"),
	def(http.MethodGet, "/v0/admin/inventory/movements", "List inventory movements", "Inventory"),
	def(http.MethodGet, "/v0/admin/inventory/alerts", "List inventory alerts", "Inventory"),

	def(http.MethodGet, "/v0/admin/settings", "View settings", "Settings"),
	def(http.MethodPut, "/v0/admin/settings", "Update settings", "Settings"),
}

// Definitions returns a copy of the catalogue in display order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap indexes the catalogue by key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		out[d.Key] = d
	}
	return out
}

// ParsePermissions decodes a stored permission list. Invalid JSON yields an empty list.
func ParsePermissions(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return []string{}
	}
	return NormalizePermissions(list)
}

// NormalizePermissions trims, dedupes and sorts a permission list.
func NormalizePermissions(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, item := range list {
		method, path, ok := strings.Cut(strings.TrimSpace(item), " ")
		if !ok {
			continue
		}
		key := Key(method, path)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// ValidatePermissions rejects keys missing from the catalogue.
func ValidatePermissions(list []string) error {
	known := DefinitionMap()
	for _, key := range list {
		if _, ok := known[key]; !ok {
			return fmt.Errorf("unknown permission %q", key)
		}
	}
	return nil
}

// MarshalPermissions encodes a permission list for storage.
func MarshalPermissions(list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}
	return json.Marshal(list)
}

// HasPermission reports whether key is granted.
func HasPermission(list []string, key string) bool {
	for _, item := range list {
		if item == key {
			return true
		}
	}
	return false
}
