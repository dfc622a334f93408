package http_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// findOpenAPISpec locates the openapi.yaml file by walking up from the test directory.
func findOpenAPISpec(t *testing.T) string {
	dir, _ := os.Getwd()

	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

func loadOpenAPISpec(t *testing.T) *openapi3.T {
	t.Helper()
	data, err := os.ReadFile(findOpenAPISpec(t))
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}
	return spec
}

// TestOpenAPISpec validates the OpenAPI document and checks it covers the routes.
func TestOpenAPISpec(t *testing.T) {
	spec := loadOpenAPISpec(t)

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/devices/{id}/fixes",
		"/v1/devices/{id}/fixes/latest",
		"/v1/devices/{id}/location",
		"/v1/sessions",
		"/v1/sessions/{id}",
		"/v1/sessions/{id}/viewport",
		"/v1/sessions/{id}/accuracy",
		"/v1/sessions/{id}/show",
		"/v1/sessions/{id}/hide",
		"/v1/sessions/{id}/toggle",
		"/v1/sessions/{id}/frame",
		"/v1/sessions/{id}/snapshot.png",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in spec", path)
		}
	}

	expectedSchemas := []string{
		"Fix",
		"FixRequest",
		"Coordinates",
		"Viewport",
		"Session",
		"SessionStatus",
		"SessionRequest",
		"Frame",
		"MarkerState",
		"ElementState",
		"APIError",
		"Pagination",
	}

	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPIDeprecatedAlias checks the location alias is marked deprecated.
func TestOpenAPIDeprecatedAlias(t *testing.T) {
	spec := loadOpenAPISpec(t)

	item := spec.Paths.Find("/v1/devices/{id}/location")
	if item == nil || item.Get == nil {
		t.Fatal("missing GET /v1/devices/{id}/location")
	}
	if !item.Get.Deprecated {
		t.Error("expected /v1/devices/{id}/location to be deprecated")
	}
}

// TestOpenAPIInfo verifies spec metadata.
func TestOpenAPIInfo(t *testing.T) {
	spec := loadOpenAPISpec(t)

	if spec.Info.Title != "MyLocation API" {
		t.Errorf("expected title 'MyLocation API', got %q", spec.Info.Title)
	}

	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}

	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}

	if len(spec.Servers) == 0 {
		t.Fatal("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", spec.Info.Title, spec.Info.Version, spec.Servers[0].URL)
}
