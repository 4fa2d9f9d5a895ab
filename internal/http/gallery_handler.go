package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
)

// GalleryIndexAction lists approved photos, newest first, up to the configured limit.
func (h *Handlers) GalleryIndexAction(ctx *cartridge.Context) error {
	limit := h.svc.Settings.Get(ctx.UserContext()).GalleryLimit
	items, err := h.svc.Photos.Gallery(ctx.UserContext(), limit)
	if err != nil {
		return failFor(ctx, err, "list gallery")
	}
	return ctx.JSON(fiber.Map{"ok": true, "photos": viewsOf(items)})
}

// PhotoShowAction streams an approved photo.
func (h *Handlers) PhotoShowAction(ctx *cartridge.Context) error {
	rc, item, err := h.svc.Photos.OpenApproved(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return failFor(ctx, err, "open photo")
	}
	ctx.Set(fiber.HeaderContentType, item.MimeType)
	ctx.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	size := -1
	if item.Size > 0 {
		size = int(item.Size)
	}
	// fasthttp closes rc once the body is written
	return ctx.SendStream(rc, size)
}
