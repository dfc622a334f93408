//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/mylocation/internal/adapters/http"
	"github.com/samirrijal/mylocation/internal/adapters/postgres"
	"github.com/samirrijal/mylocation/internal/adapters/viewport"
	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/overlay"
	"github.com/samirrijal/mylocation/internal/core/usecases"
	"github.com/samirrijal/mylocation/internal/pkg/config"
)

// setupTestDB connects to the test database and applies the migrations.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("mylocation-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// setupTestDeps creates dependencies with the real fix repository, no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) *http.Dependencies {
	fixes := usecases.NewFixService(postgres.NewFixRepo(db), nil, nil)
	sessions := usecases.NewSessionService(viewport.Factory(), fixes, nil, nil, usecases.SessionDefaults{
		Viewport: domain.Viewport{Zoom: 15, Width: 640, Height: 480},
		Overlay:  overlay.DefaultOptions(),
	})
	t.Cleanup(func() { sessions.CloseAll(context.Background()) })

	return &http.Dependencies{
		Fixes:    fixes,
		Sessions: sessions,
		DB:       db,
	}
}

func testDevice(t *testing.T) string {
	return fmt.Sprintf("it-%s-%d", strings.ToLower(t.Name()), time.Now().UnixNano())
}

func TestIntegration_FixRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	http.SetupRoutes(app, setupTestDeps(t, db))

	device := testDevice(t)
	for i, acc := range []float64{40, 20, 10} {
		body := fmt.Sprintf(`{"latitude":43.26%d,"longitude":-2.93,"accuracy":%v}`, i, acc)
		req := httptest.NewRequest("POST", "/v1/devices/"+device+"/fixes", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 201 {
			t.Fatalf("post fix %d: expected 201, got %d", i, resp.StatusCode)
		}
	}

	req := httptest.NewRequest("GET", "/v1/devices/"+device+"/fixes/latest", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var latest domain.Fix
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		t.Fatal(err)
	}
	if latest.Coordinates.Accuracy != 10 {
		t.Errorf("expected newest fix (accuracy 10), got %v", latest.Coordinates.Accuracy)
	}

	req = httptest.NewRequest("GET", "/v1/devices/"+device+"/fixes?limit=2", nil)
	resp, _ = app.Test(req, -1)
	var page struct {
		Data []domain.Fix `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 2 {
		t.Fatalf("expected 2 fixes, got %d", len(page.Data))
	}
	if page.Data[0].Time.Before(page.Data[1].Time) {
		t.Error("expected newest first")
	}
}

func TestIntegration_SessionSeededFromDB(t *testing.T) {
	db := setupTestDB(t)
	deps := setupTestDeps(t, db)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	http.SetupRoutes(app, deps)

	device := testDevice(t)
	fix := &domain.Fix{
		DeviceID:    device,
		Coordinates: domain.Coordinates{Latitude: 43.2630, Longitude: -2.9350, Accuracy: 30},
	}
	if err := deps.Fixes.Ingest(context.Background(), fix); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	req := httptest.NewRequest("POST", "/v1/sessions", strings.NewReader(`{"device_id":"`+device+`"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var st domain.SessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Center == nil {
		t.Fatal("expected session seeded from the stored fix")
	}
	if d := st.Center.Lat - fix.Coordinates.Latitude; d > 1e-6 || d < -1e-6 {
		t.Errorf("expected center lat %v, got %v", fix.Coordinates.Latitude, st.Center.Lat)
	}
}

func TestIntegration_Ready(t *testing.T) {
	db := setupTestDB(t)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	http.SetupRoutes(app, setupTestDeps(t, db))

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)

	var result struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Checks["database"] != "ok" {
		t.Errorf("expected database ok, got %q", result.Checks["database"])
	}
}
