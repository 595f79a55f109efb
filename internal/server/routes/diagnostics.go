package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/any-hub/asset-hub/internal/classify"
	"github.com/any-hub/asset-hub/internal/engine"
	"github.com/any-hub/asset-hub/internal/metrics"
	"github.com/any-hub/asset-hub/internal/version"
)

// StatsProvider 暴露解析计数快照，*engine.Engine 满足该接口。
type StatsProvider interface {
	Stats() engine.Stats
}

// RegisterDiagnosticsRoutes 暴露 /-/health、/-/metrics 与 /-/categories 诊断接口。
func RegisterDiagnosticsRoutes(app *fiber.App, stats StatsProvider, started time.Time) {
	if app == nil || stats == nil {
		return
	}

	app.Get("/-/health", func(c fiber.Ctx) error {
		return c.JSON(healthPayload{
			Status:        "ok",
			Version:       version.Full(),
			UptimeSeconds: int64(time.Since(started) / time.Second),
			Cache:         stats.Stats(),
		})
	})

	app.Get("/-/metrics", adaptor.HTTPHandler(metrics.Handler()))

	app.Get("/-/categories", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"categories": encodeProfiles(classify.List()),
		})
	})
}

type healthPayload struct {
	Status        string       `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Cache         engine.Stats `json:"cache"`
}

type profilePayload struct {
	Key              string `json:"key"`
	Description      string `json:"description"`
	ContentType      string `json:"content_type"`
	AllowUpstream    bool   `json:"allow_upstream"`
	AllowPlaceholder bool   `json:"allow_placeholder"`
	Cacheable        bool   `json:"cacheable"`
}

func encodeProfiles(profiles []classify.Profile) []profilePayload {
	result := make([]profilePayload, 0, len(profiles))
	for _, p := range profiles {
		contentType := p.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		result = append(result, profilePayload{
			Key:              string(p.Category),
			Description:      p.Description,
			ContentType:      contentType,
			AllowUpstream:    p.AllowUpstream,
			AllowPlaceholder: p.AllowPlaceholder,
			Cacheable:        p.Cacheable,
		})
	}
	return result
}
