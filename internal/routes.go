package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "photokiosk/api/v1"
	"photokiosk/internal/http"
	"photokiosk/internal/http/middleware"
	"photokiosk/internal/kiosk"
)

const uploadBodySlack = 64 * 1024

var boothSecFetchSites = []string{"cross-site", "same-site", "same-origin"}

// boothCORSConfig lets the booth app call in from its own origin.
func boothCORSConfig(origins string) *cors.Config {
	return &cors.Config{
		AllowOrigins: origins,
		AllowMethods: "POST,GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-ID",
	}
}

// MountAppRoutes returns the route mount function for svc.
func MountAppRoutes(svc *kiosk.Services) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		mountRoutes(srv, svc)
	}
}

func mountRoutes(srv *cartridge.Server, svc *kiosk.Services) {
	cfg := svc.Config
	logger := srv.GetLogger()
	booth := v1.NewHandlers(svc)
	h := http.NewHandlers(svc)

	// Rate limiting would interfere with tests, so it only runs in production
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(cfg.PublicRateLimit),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Prevents brute force login attempts
	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Photos are capped by the upload handler; the server only has to let them through
	if limit := cfg.UploadMaxBytes + uploadBodySlack; limit > fiber.DefaultBodyLimit {
		srv.App().Server().MaxRequestBodySize = limit
	}

	// The booth is a browser app served from another origin
	boothSecFetch := cartridgemiddleware.SecFetchSiteMiddleware(cartridgemiddleware.SecFetchSiteConfig{
		AllowedValues: boothSecFetchSites,
	})

	corsConfig := boothCORSConfig(cfg.CORSOrigins)
	appEnabled := middleware.AppEnabled(svc.Settings, logger)
	adminAuth := middleware.AdminAuth(svc.Auth, logger)

	// Booth writes: rate limited, CORS, refused while the app is off
	boothConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter, boothSecFetch, appEnabled},
		CORSConfig:       corsConfig,
	}

	// Booth reads and pings keep working while the app is off
	publicConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter, boothSecFetch},
		CORSConfig:       corsConfig,
	}

	loginConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{authRateLimiter},
		CORSConfig:       corsConfig,
	}

	// Bearer tokens, not cookies, so scripts and cron may call these directly
	adminConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{adminAuth},
		CORSConfig:       corsConfig,
	}

	preflightConfig := &cartridge.RouteConfig{
		EnableCORS: true,
		CORSConfig: corsConfig,
	}

	preflight := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// === OPS ===
	srv.Get("/_health", h.HealthIndexAction)
	srv.Head("/_health", h.HealthIndexAction)
	srv.Get("/metrics", http.MetricsAction)

	// === BOOTH ===
	srv.Post("/upload", booth.UploadAction, boothConfig)
	srv.Options("/upload", preflight, publicConfig)
	srv.Post("/visit", booth.VisitAction, boothConfig)
	srv.Options("/visit", preflight, publicConfig)
	srv.Post("/ping", booth.PingAction, publicConfig)
	srv.Options("/ping", preflight, publicConfig)
	srv.Get("/settings", h.SettingsPublicAction, publicConfig)
	srv.Get("/gallery", h.GalleryIndexAction, publicConfig)
	srv.Get("/photos/:id", h.PhotoShowAction, publicConfig)

	// === REPORTS ===
	srv.Get("/session-report-daily", h.ReportDailyAction, adminConfig)
	srv.Post("/session-report-now", h.ReportNowAction, adminConfig)
	srv.Get("/session-report-preview", h.ReportPreviewAction, adminConfig)

	// === ADMIN ===
	srv.Post("/admin/login", h.LoginAction, loginConfig)

	srv.Get("/admin/photos", h.PhotosIndexAction, adminConfig)
	srv.Post("/admin/photos/:id/approve", h.PhotoApproveAction, adminConfig)
	srv.Post("/admin/photos/:id/reject", h.PhotoRejectAction, adminConfig)
	srv.Get("/admin/photos/:id/thumb", h.PhotoThumbAction, adminConfig)

	srv.Get("/admin/settings", h.SettingsShowAction, adminConfig)
	srv.Post("/admin/settings", h.SettingsUpdateAction, adminConfig)
	srv.Post("/admin/app/toggle", h.AppToggleAction, adminConfig)

	srv.Get("/admin/templates", h.TemplatesIndexAction, adminConfig)
	srv.Post("/admin/templates", h.TemplateSaveAction, adminConfig)
	srv.Delete("/admin/templates/:id", h.TemplateDeleteAction, adminConfig)
	srv.Post("/admin/templates/:id/delete", h.TemplateDeleteAction, adminConfig)

	srv.Get("/admin/system/health", h.SystemHealthAction, adminConfig)
	srv.Post("/admin/system/geoip/reload", h.SystemGeoIPReloadAction, adminConfig)
	srv.Get("/admin/system/export-database", h.SystemExportDatabaseAction, adminConfig)

	for _, path := range []string{
		"/session-report-daily",
		"/session-report-now",
		"/session-report-preview",
		"/admin/login",
		"/admin/photos",
		"/admin/photos/:id/approve",
		"/admin/photos/:id/reject",
		"/admin/photos/:id/thumb",
		"/admin/settings",
		"/admin/app/toggle",
		"/admin/templates",
		"/admin/templates/:id",
		"/admin/templates/:id/delete",
		"/admin/system/health",
		"/admin/system/geoip/reload",
		"/admin/system/export-database",
	} {
		srv.Options(path, preflight, preflightConfig)
	}
}
