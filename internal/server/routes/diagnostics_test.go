package routes

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/asset-hub/internal/classify"
	"github.com/any-hub/asset-hub/internal/engine"
	"github.com/any-hub/asset-hub/internal/metrics"
)

type fakeStats struct {
	stats engine.Stats
}

func (f fakeStats) Stats() engine.Stats { return f.stats }

func newDiagnosticsApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	RegisterDiagnosticsRoutes(app, fakeStats{stats: engine.Stats{Hits: 3, Misses: 1, Placeholders: 1}}, time.Now().Add(-time.Minute))
	return app
}

func TestHealthReportsStats(t *testing.T) {
	app := newDiagnosticsApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/health", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload healthPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if payload.Status != "ok" || payload.Cache.Hits != 3 || payload.Cache.Placeholders != 1 {
		t.Fatalf("unexpected health payload: %+v", payload)
	}
	if payload.UptimeSeconds < 59 {
		t.Fatalf("uptime should be measured from start, got %d", payload.UptimeSeconds)
	}
	if !strings.HasPrefix(payload.Version, "asset-hub ") {
		t.Fatalf("unexpected version %q", payload.Version)
	}
}

func TestMetricsExposition(t *testing.T) {
	app := newDiagnosticsApp(t)
	metrics.RecordResolution("content-asset", "local", time.Millisecond)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "asset_hub_resolutions_total") {
		t.Fatalf("metrics output missing resolutions counter: %s", body)
	}
}

func TestCategoriesListsProfiles(t *testing.T) {
	app := newDiagnosticsApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/categories", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var payload struct {
		Categories []profilePayload `json:"categories"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(payload.Categories) != len(classify.List()) {
		t.Fatalf("expected %d categories, got %d", len(classify.List()), len(payload.Categories))
	}
	for _, p := range payload.Categories {
		if p.ContentType == "" {
			t.Fatalf("content type should be filled for %s", p.Key)
		}
	}
}
