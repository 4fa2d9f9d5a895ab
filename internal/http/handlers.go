// Package http holds the kiosk's admin, report and gallery handlers.
package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"photokiosk/internal/kiosk"
	"photokiosk/internal/settings"
	"photokiosk/internal/storage"
	"photokiosk/internal/uploads"
)

// Handlers binds route actions to the kiosk services.
type Handlers struct {
	svc *kiosk.Services
}

func NewHandlers(svc *kiosk.Services) *Handlers {
	return &Handlers{svc: svc}
}

func fail(ctx *cartridge.Context, status int, msg string) error {
	return ctx.Status(status).JSON(fiber.Map{"ok": false, "error": msg})
}

// failFor maps domain errors to status codes. Anything unknown is logged as a 500.
func failFor(ctx *cartridge.Context, err error, action string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, settings.ErrTemplateNotFound):
		return fail(ctx, fiber.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrWrongParent), errors.Is(err, storage.ErrTrashed):
		return fail(ctx, fiber.StatusConflict, err.Error())
	case errors.Is(err, uploads.ErrUnknownFolder), errors.Is(err, settings.ErrInvalidSettings):
		return fail(ctx, fiber.StatusBadRequest, err.Error())
	}
	ctx.Logger.Error("Failed to "+action, slog.Any("error", err))
	return fail(ctx, fiber.StatusInternalServerError, "Failed to "+action)
}
