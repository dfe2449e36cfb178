package permissions

import (
	"testing"

	"gorm.io/datatypes"
)

func TestDefinitionMapIncludesInventoryPermissions(t *testing.T) {
	t.Parallel()

	definitionMap := DefinitionMap()
	requiredKeys := []string{
		"POST /v0/admin/codes/:id/assign",
		"POST /v0/admin/codes/:id/unassign",
		"POST /v0/admin/batches/:id/status",
		"POST /v0/admin/allocations/:id/consume",
		"GET /v0/admin/inventory/alerts",
	}

	for _, key := range requiredKeys {
		key := key
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			if _, ok := definitionMap[key]; !ok {
				t.Fatalf("DefinitionMap() missing permission key %q", key)
			}
		})
	}
}

func TestDefinitionKeysAreUnique(t *testing.T) {
	defs := Definitions()
	if len(DefinitionMap()) != len(defs) {
		t.Fatalf("duplicate permission keys: %d definitions, %d unique", len(defs), len(DefinitionMap()))
	}
	for _, d := range defs {
		if d.Key != Key(d.Method, d.Path) {
			t.Fatalf("definition %q has mismatched key", d.Key)
		}
	}
}

func TestNormalizeAndValidatePermissions(t *testing.T) {
	normalized := NormalizePermissions([]string{
		" get /v0/admin/codes ",
		"GET /v0/admin/codes",
		"garbage",
		"POST /v0/admin/codes/:id/assign",
	})
	if len(normalized) != 2 {
		t.Fatalf("expected 2 permissions, got %v", normalized)
	}
	if normalized[0] != "GET /v0/admin/codes" {
		t.Fatalf("unexpected first permission %q", normalized[0])
	}
	if err := ValidatePermissions(normalized); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := ValidatePermissions([]string{"GET /v0/admin/unknown"}); err == nil {
		t.Fatalf("expected unknown permission error")
	}
}

func TestParsePermissions(t *testing.T) {
	raw, err := MarshalPermissions([]string{"GET /v0/admin/codes"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed := ParsePermissions(datatypes.JSON(raw))
	if !HasPermission(parsed, "GET /v0/admin/codes") {
		t.Fatalf("expected permission in %v", parsed)
	}
	if got := ParsePermissions(datatypes.JSON("{bad")); len(got) != 0 {
		t.Fatalf("expected empty list for bad json, got %v", got)
	}
	if got := ParsePermissions(nil); len(got) != 0 {
		t.Fatalf("expected empty list for nil, got %v", got)
	}
}
