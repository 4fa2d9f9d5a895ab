package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"photokiosk/internal/auth"
	"photokiosk/internal/storage"
	"photokiosk/internal/tickets"
)

type loginParams struct {
	Password string `json:"password"`
}

// LoginAction exchanges the admin password for a bearer token.
func (h *Handlers) LoginAction(ctx *cartridge.Context) error {
	var params loginParams
	if err := ctx.BodyParser(&params); err != nil || params.Password == "" {
		return fail(ctx, fiber.StatusBadRequest, "password is required")
	}

	token, expires, err := h.svc.Auth.Login(params.Password)
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		ctx.Logger.Warn("Admin login attempted without a configured password")
		return fail(ctx, fiber.StatusServiceUnavailable, "admin access not configured")
	case errors.Is(err, auth.ErrInvalidCredentials):
		ctx.Logger.Info("Failed admin login", slog.String("ip", ctx.IP()))
		return fail(ctx, fiber.StatusUnauthorized, "invalid credentials")
	case err != nil:
		ctx.Logger.Error("Failed to issue admin token", slog.Any("error", err))
		return fail(ctx, fiber.StatusInternalServerError, "login failed")
	}

	return ctx.JSON(fiber.Map{
		"ok":        true,
		"token":     token,
		"expiresAt": expires.UTC().Format(time.RFC3339),
	})
}

type photoView struct {
	storage.Item
	Ticket int `json:"ticket,omitempty"`
}

func viewsOf(items []storage.Item) []photoView {
	views := make([]photoView, 0, len(items))
	for _, item := range items {
		n, _ := tickets.ParseIndex(item.Name)
		views = append(views, photoView{Item: item, Ticket: n})
	}
	return views
}

// PhotosIndexAction lists the active photos of ?folder=pending|approved.
func (h *Handlers) PhotosIndexAction(ctx *cartridge.Context) error {
	folder := ctx.Query("folder", "pending")
	items, err := h.svc.Photos.List(ctx.UserContext(), folder)
	if err != nil {
		return failFor(ctx, err, "list photos")
	}
	return ctx.JSON(fiber.Map{"ok": true, "folder": folder, "photos": viewsOf(items)})
}

func (h *Handlers) PhotoApproveAction(ctx *cartridge.Context) error {
	id := ctx.Params("id")
	if err := h.svc.Photos.Approve(ctx.UserContext(), id); err != nil {
		return failFor(ctx, err, "approve photo")
	}
	return ctx.JSON(fiber.Map{"ok": true, "id": id})
}

// PhotoRejectAction trashes a photo. Its ticket number stays burned.
func (h *Handlers) PhotoRejectAction(ctx *cartridge.Context) error {
	id := ctx.Params("id")
	if err := h.svc.Photos.Reject(ctx.UserContext(), id); err != nil {
		return failFor(ctx, err, "reject photo")
	}
	return ctx.JSON(fiber.Map{"ok": true, "id": id})
}

// PhotoThumbAction returns a JPEG preview ?w= pixels wide.
func (h *Handlers) PhotoThumbAction(ctx *cartridge.Context) error {
	width := ctx.QueryInt("w", 0)
	data, err := h.svc.Photos.Thumbnail(ctx.UserContext(), ctx.Params("id"), width)
	if err != nil {
		return failFor(ctx, err, "render thumbnail")
	}
	ctx.Set(fiber.HeaderContentType, "image/jpeg")
	ctx.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return ctx.Send(data)
}

// AppToggleAction switches the booth app on or off.
func (h *Handlers) AppToggleAction(ctx *cartridge.Context) error {
	next, err := h.svc.Settings.ToggleApp(ctx.UserContext())
	if err != nil {
		return failFor(ctx, err, "toggle app")
	}
	ctx.Logger.Info("Booth app toggled", slog.Bool("enabled", next.AppEnabled))
	return ctx.JSON(fiber.Map{"ok": true, "appEnabled": next.AppEnabled, "settings": next})
}
