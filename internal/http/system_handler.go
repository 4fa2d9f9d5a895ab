package http

import (
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
)

// SystemHealthAction reports which optional integrations are wired, for the
// admin panel's warning badges.
func (h *Handlers) SystemHealthAction(ctx *cartridge.Context) error {
	cfg := h.svc.Config
	current := h.svc.Settings.Get(ctx.UserContext())

	var warnings []string
	if cfg.LogSheetID == "" {
		warnings = append(warnings, "event log sheet not configured")
	}
	if !h.svc.Mailer.Configured() {
		warnings = append(warnings, "mail not configured")
	} else if len(cfg.GetReportRecipients()) == 0 {
		warnings = append(warnings, "no report recipients")
	}
	if !h.svc.Geo.Enabled() {
		warnings = append(warnings, "GeoLite database not loaded")
	}

	return ctx.JSON(fiber.Map{
		"ok":               true,
		"healthy":          len(warnings) == 0,
		"warnings":         warnings,
		"app_enabled":      current.AppEnabled,
		"settings_version": current.Version,
		"mail_configured":  h.svc.Mailer.Configured(),
		"geoip_enabled":    h.svc.Geo.Enabled(),
		"jobs_running":     h.svc.Scheduler.IsRunning(),
	})
}

// SystemGeoIPReloadAction reopens the GeoLite database after it was replaced on disk.
func (h *Handlers) SystemGeoIPReloadAction(ctx *cartridge.Context) error {
	h.svc.Geo.Reload()
	return ctx.JSON(fiber.Map{"ok": true, "geoip_enabled": h.svc.Geo.Enabled()})
}

// SystemExportDatabaseAction downloads the local SQLite database.
func (h *Handlers) SystemExportDatabaseAction(ctx *cartridge.Context) error {
	dbPath := h.svc.Config.GetDatabasePath()
	if _, err := os.Stat(dbPath); err != nil {
		ctx.Logger.Error("Database file not found", slog.String("path", dbPath), slog.Any("error", err))
		return fail(ctx, fiber.StatusNotFound, "Database file not found")
	}

	ctx.Logger.Info("Database exported", slog.String("path", dbPath))
	return ctx.Download(dbPath, h.svc.Config.AppName+"-backup.db")
}
