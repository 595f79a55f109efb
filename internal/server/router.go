package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Registry   *InstanceRegistry
	ListenPort int
}

const contextKeyRequestID = "_assethub_request_id"

// exposedHeaders 是浏览器内的启动器页面需要读取的响应头。
var exposedHeaders = []string{
	"X-Request-ID",
	"X-Asset-Hub-Source",
	"X-Asset-Hub-Category",
	"Content-Range",
	"Accept-Ranges",
}

// NewApp builds a Fiber application with recover, CORS and request-id middleware
// plus a JSON error handler. Routes are registered by the caller.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("instance registry is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions},
		AllowHeaders:  []string{fiber.HeaderRange, fiber.HeaderContentType},
		ExposeHeaders: exposedHeaders,
	}))
	app.Use(requestContextMiddleware())

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID；客户端传入的 X-Request-ID 会被沿用。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := strings.TrimSpace(c.Get("X-Request-ID"))
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// errorHandler 将未处理的错误统一渲染为 JSON，避免泄露 Fiber 默认的纯文本页面。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		label := "internal_error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			label = errorLabel(code)
		}
		if code >= fiber.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"action":     "http_error",
				"path":       c.Path(),
				"request_id": RequestID(c),
			}).WithError(err).Error("request_failed")
		}
		return c.Status(code).JSON(fiber.Map{"error": label})
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func errorLabel(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return "route_not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusBadRequest:
		return "bad_request"
	}
	if code >= fiber.StatusInternalServerError {
		return "internal_error"
	}
	return "request_error"
}
