package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"photokiosk/internal/settings"
)

// SettingsPublicAction serves the copy and switches the booth app renders.
func (h *Handlers) SettingsPublicAction(ctx *cartridge.Context) error {
	return ctx.JSON(fiber.Map{"ok": true, "settings": h.svc.Settings.Get(ctx.UserContext())})
}

func (h *Handlers) SettingsShowAction(ctx *cartridge.Context) error {
	return h.SettingsPublicAction(ctx)
}

// SettingsUpdateAction overwrites the settings wholesale.
func (h *Handlers) SettingsUpdateAction(ctx *cartridge.Context) error {
	var next settings.AppSettings
	if err := ctx.BodyParser(&next); err != nil {
		return fail(ctx, fiber.StatusBadRequest, "Invalid request")
	}
	saved, err := h.svc.Settings.Replace(ctx.UserContext(), next)
	if err != nil {
		return failFor(ctx, err, "save settings")
	}
	ctx.Logger.Info("Settings updated", slog.Int("version", saved.Version))
	return ctx.JSON(fiber.Map{"ok": true, "settings": saved})
}

func (h *Handlers) TemplatesIndexAction(ctx *cartridge.Context) error {
	list, err := h.svc.Templates.List(ctx.UserContext())
	if err != nil {
		return failFor(ctx, err, "list templates")
	}
	return ctx.JSON(fiber.Map{"ok": true, "templates": list})
}

// TemplateSaveAction creates a template, or replaces the one with the same id.
func (h *Handlers) TemplateSaveAction(ctx *cartridge.Context) error {
	var tmpl settings.Template
	if err := ctx.BodyParser(&tmpl); err != nil {
		return fail(ctx, fiber.StatusBadRequest, "Invalid request")
	}
	saved, err := h.svc.Templates.Save(ctx.UserContext(), tmpl)
	if err != nil {
		return failFor(ctx, err, "save template")
	}
	return ctx.JSON(fiber.Map{"ok": true, "template": saved})
}

func (h *Handlers) TemplateDeleteAction(ctx *cartridge.Context) error {
	id := ctx.Params("id")
	if err := h.svc.Templates.Delete(ctx.UserContext(), id); err != nil {
		return failFor(ctx, err, "delete template")
	}
	return ctx.JSON(fiber.Map{"ok": true, "id": id})
}
