package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/asset-hub/internal/cache"
	"github.com/any-hub/asset-hub/internal/classify"
	"github.com/any-hub/asset-hub/internal/config"
	"github.com/any-hub/asset-hub/internal/engine"
	"github.com/any-hub/asset-hub/internal/server"
)

// Engine 是 Handler 依赖的解析能力，*engine.Engine 满足该接口。
type Engine interface {
	Resolve(ctx context.Context, instance, relativePath string) (*engine.Result, error)
	Open(ctx context.Context, result *engine.Result) (*cache.ReadResult, error)
	List(ctx context.Context, instance, baseURL string) ([]engine.FileEntry, error)
	Prefetch(ctx context.Context, instance string, hashes []string) ([]engine.PrefetchResult, error)
	CheckAsset(ctx context.Context, instance, hash string) (*engine.AssetStatus, error)
	CleanTemporary(ctx context.Context, instance string) ([]string, error)
}

// Handler 将 HTTP 请求翻译为引擎调用，并负责响应头与错误格式。
type Handler struct {
	engine   Engine
	registry *server.InstanceRegistry
	logger   *logrus.Logger
}

// NewHandler constructs a files handler with shared engine/registry/logger.
func NewHandler(eng Engine, registry *server.InstanceRegistry, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		engine:   eng,
		registry: registry,
		logger:   logger,
	}
}

// Register 挂载全部文件服务路由。
func (h *Handler) Register(app *fiber.App) {
	app.Get("/", h.banner)
	app.Get("/files", h.list)
	app.Get("/files/instances.json", h.instances)
	app.Get("/files/instances/:instance/*", h.download)
	app.Head("/files/instances/:instance/*", h.download)
	app.Get("/check-file/:hash", h.checkFile)
	app.Get("/prefetch-assets", h.prefetch)
	app.Get("/clean-temp-files", h.cleanTemp)
}

func (h *Handler) list(c fiber.Ctx) error {
	route, ok := h.registry.Lookup(strings.TrimSpace(c.Query("instance")))
	if !ok {
		return c.JSON([]engine.FileEntry{})
	}
	entries, err := h.engine.List(requestContext(c), route.Config.Name, c.BaseURL())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON([]engine.FileEntry{})
	}
	return c.JSON(entries)
}

func (h *Handler) instances(c fiber.Ctx) error {
	routes := h.registry.List()
	items := make([]config.InstanceConfig, 0, len(routes))
	for _, route := range routes {
		items = append(items, route.Config)
	}
	return c.JSON(items)
}

func (h *Handler) download(c fiber.Ctx) error {
	started := time.Now()
	instance, err := url.PathUnescape(c.Params("instance"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "malformed_path")
	}
	if _, ok := h.registry.Lookup(instance); !ok {
		return writeError(c, fiber.StatusBadRequest, "malformed_path")
	}
	rel, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "malformed_path")
	}

	ctx := requestContext(c)
	result, err := h.engine.Resolve(ctx, instance, rel)
	if err != nil {
		return h.writeResolveError(c, instance, rel, err)
	}

	c.Set("X-Asset-Hub-Source", string(result.Source))
	c.Set("X-Asset-Hub-Category", string(result.Category))
	c.Set(fiber.HeaderContentType, classify.ContentTypeFor(result.Category, path.Base(rel)))

	if result.Source == engine.SourceEmpty {
		c.Set(fiber.HeaderCacheControl, "no-store")
		c.Status(fiber.StatusOK)
		return c.Send(nil)
	}

	file, err := h.engine.Open(ctx, result)
	if err != nil {
		h.logFailure(c, instance, rel, started, err)
		return writeError(c, fiber.StatusInternalServerError, "local_io_fault")
	}
	defer file.Reader.Close()

	size := file.Entry.SizeBytes
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderLastModified, file.Entry.ModTime.UTC().Format(http.TimeFormat))

	start, length := int64(0), size
	status := fiber.StatusOK
	if raw := c.Get(fiber.HeaderRange); raw != "" {
		r, ok, satisfiable := parseRange(raw, size)
		if !satisfiable {
			c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", size))
			return writeError(c, fiber.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable")
		}
		if ok {
			start, length = r.start, r.length
			status = fiber.StatusPartialContent
			c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, start+length-1, size))
		}
	}

	c.Status(status)
	if c.Method() == fiber.MethodHead {
		c.Response().Header.SetContentLength(int(length))
		return nil
	}

	if _, err := file.Reader.Seek(start, io.SeekStart); err != nil {
		h.logFailure(c, instance, rel, started, err)
		return writeError(c, fiber.StatusInternalServerError, "local_io_fault")
	}
	if _, err := io.CopyN(c.Response().BodyWriter(), file.Reader, length); err != nil {
		h.logFailure(c, instance, rel, started, err)
		c.Response().ResetBody()
		return writeError(c, fiber.StatusInternalServerError, "local_io_fault")
	}
	return nil
}

func (h *Handler) checkFile(c fiber.Ctx) error {
	instance := strings.TrimSpace(c.Query("instance"))
	if instance == "" {
		return writeError(c, fiber.StatusBadRequest, "instance_required")
	}
	status, err := h.engine.CheckAsset(requestContext(c), instance, c.Params("hash"))
	if err != nil {
		return h.writeResolveError(c, instance, c.Params("hash"), err)
	}
	return c.JSON(checkFilePayload{
		AssetStatus: status,
		LocalURL:    engine.DownloadURL(c.BaseURL(), instance, status.Path),
	})
}

type checkFilePayload struct {
	*engine.AssetStatus
	LocalURL string `json:"local_url"`
}

func (h *Handler) prefetch(c fiber.Ctx) error {
	instance := strings.TrimSpace(c.Query("instance"))
	if instance == "" {
		return writeError(c, fiber.StatusBadRequest, "instance_required")
	}
	var hashes []string
	for _, raw := range strings.Split(c.Query("assets"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			hashes = append(hashes, raw)
		}
	}
	if len(hashes) == 0 {
		return writeError(c, fiber.StatusBadRequest, "assets_required")
	}

	results, err := h.engine.Prefetch(requestContext(c), instance, hashes)
	if err != nil {
		return h.writeResolveError(c, instance, "", err)
	}
	return c.JSON(fiber.Map{
		"instance": instance,
		"results":  results,
	})
}

func (h *Handler) cleanTemp(c fiber.Ctx) error {
	instance := strings.TrimSpace(c.Query("instance"))
	if instance == "" {
		return writeError(c, fiber.StatusBadRequest, "instance_required")
	}
	deleted, err := h.engine.CleanTemporary(requestContext(c), instance)
	if err != nil {
		return h.writeResolveError(c, instance, "", err)
	}
	return c.JSON(fiber.Map{
		"instance": instance,
		"deleted":  deleted,
	})
}

func (h *Handler) banner(c fiber.Ctx) error {
	base := c.BaseURL()
	return c.JSON(fiber.Map{
		"server": "asset-hub",
		"features": []string{
			"listing: /files?instance=<name>",
			"download with upstream fallback: /files/instances/<name>/<path>",
			"instance metadata: /files/instances.json",
			"asset check: /check-file/<hash>?instance=<name>",
			"asset prefetch: /prefetch-assets?instance=<name>&assets=<h1,h2>",
			"temporary file cleanup: /clean-temp-files?instance=<name>",
		},
		"example": fiber.Map{
			"listing":  base + "/files?instance=<name>",
			"health":   base + "/-/health",
			"metrics":  base + "/-/metrics",
			"category": base + "/-/categories",
		},
	})
}

// writeResolveError 将引擎错误映射为 400 / 404 / 500。
func (h *Handler) writeResolveError(c fiber.Ctx, instance, rel string, err error) error {
	var notFound *engine.NotFoundError
	switch {
	case errors.Is(err, engine.ErrMalformedPath):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "malformed_path",
			"detail": err.Error(),
		})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "not_found",
			"path":   notFound.Path,
			"reason": notFound.Reason,
		})
	default:
		h.logger.WithFields(logrus.Fields{
			"action":     "download",
			"instance":   instance,
			"path":       rel,
			"request_id": server.RequestID(c),
		}).WithError(err).Error("local_io_fault")
		return writeError(c, fiber.StatusInternalServerError, "local_io_fault")
	}
}

func (h *Handler) logFailure(c fiber.Ctx, instance, rel string, started time.Time, err error) {
	h.logger.WithFields(logrus.Fields{
		"action":     "download",
		"instance":   instance,
		"path":       rel,
		"request_id": server.RequestID(c),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).WithError(err).Error("serve_failed")
}

func writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

type byteRange struct {
	start  int64
	length int64
}

// parseRange 解析单段 "bytes=a-b" / "bytes=a-" / "bytes=-n"。
// ok=false 表示忽略该头并返回完整内容；satisfiable=false 对应 416。
func parseRange(raw string, size int64) (r byteRange, ok bool, satisfiable bool) {
	rangeSpec, found := strings.CutPrefix(strings.TrimSpace(raw), "bytes=")
	if !found || strings.Contains(rangeSpec, ",") {
		return byteRange{}, false, true
	}
	first, last, found := strings.Cut(strings.TrimSpace(rangeSpec), "-")
	if !found {
		return byteRange{}, false, true
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return byteRange{}, false, true
		}
		if n == 0 || size == 0 {
			return byteRange{}, false, false
		}
		if n > size {
			n = size
		}
		return byteRange{start: size - n, length: n}, true, true
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, false, true
	}
	if start >= size {
		return byteRange{}, false, false
	}
	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return byteRange{}, false, true
		}
		if end >= size {
			end = size - 1
		}
	}
	return byteRange{start: start, length: end - start + 1}, true, true
}
