// Package v1 serves the booth app: photo uploads, visitor forms and pings.
package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"

	"photokiosk/internal/eventlog"
	"photokiosk/internal/kiosk"
	"photokiosk/internal/uploads"
)

const (
	errInvalidRequest = "Invalid request"
	sessionHeader     = "X-Session-ID"
)

var validate = validator.New()

// VisitParams is the visitor registration form.
type VisitParams struct {
	SessionID  string          `json:"sessionId" validate:"omitempty,max=64"`
	Email      string          `json:"email" validate:"omitempty,email,max=254"`
	LastName   string          `json:"lastName" validate:"omitempty,max=100"`
	Country    string          `json:"country" validate:"omitempty,max=100"`
	Region     string          `json:"region" validate:"omitempty,max=100"`
	Newsletter json.RawMessage `json:"newsletter"`
	Timestamp  string          `json:"timestamp" validate:"omitempty,max=40"`
}

// PingParams is the optional body of a ping.
type PingParams struct {
	SessionID string `json:"sessionId" validate:"omitempty,max=64"`
	Country   string `json:"country" validate:"omitempty,max=100"`
	Region    string `json:"region" validate:"omitempty,max=100"`
}

type Handlers struct {
	svc *kiosk.Services
}

func NewHandlers(svc *kiosk.Services) *Handlers {
	return &Handlers{svc: svc}
}

// UploadAction stores a raw image body under the next ticket number.
func (h *Handlers) UploadAction(ctx *cartridge.Context) error {
	result, err := h.svc.Uploads.Upload(ctx.UserContext(), ctx.Body(), ctx.Get(fiber.HeaderContentType))
	if err != nil {
		return handleUploadError(ctx, err)
	}

	h.svc.Events.Log(eventlog.EventUpload, eventlog.Fields{
		SessionID: ctx.Get(sessionHeader),
		Ticket:    strconv.Itoa(result.TicketNumber),
	})

	ctx.Logger.Info("Photo uploaded",
		slog.String("file_id", result.FileID),
		slog.String("ticket", result.TicketLabel))
	return ctx.JSON(fiber.Map{
		"ok":            true,
		"fileId":        result.FileID,
		"filename":      result.Filename,
		"ticketIndex":   result.TicketNumber,
		"ticketLabel":   result.TicketLabel,
		"ticketDisplay": result.TicketDisplay,
	})
}

func handleUploadError(ctx *cartridge.Context, err error) error {
	switch {
	case errors.Is(err, uploads.ErrEmptyBody), errors.Is(err, uploads.ErrUnsupportedType):
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
	case errors.Is(err, uploads.ErrTooLarge):
		return ctx.Status(http.StatusRequestEntityTooLarge).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	ctx.Logger.Error("Failed to upload photo", slog.Any("error", err))
	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"ok":    false,
		"error": "Failed to store photo",
	})
}

// VisitAction records a visitor registration form.
func (h *Handlers) VisitAction(ctx *cartridge.Context) error {
	var params VisitParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": errInvalidRequest})
	}
	if err := validate.Struct(params); err != nil {
		ctx.Logger.Debug("Rejected visit form", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": errInvalidRequest})
	}

	form := h.svc.Settings.Get(ctx.UserContext())
	fields := eventlog.Fields{
		SessionID:    h.sessionID(ctx, params.SessionID),
		TimestampUTC: params.Timestamp,
	}
	values := map[string]string{
		"email":      strings.TrimSpace(params.Email),
		"lastName":   params.LastName,
		"country":    params.Country,
		"region":     params.Region,
		"newsletter": rawFlag(params.Newsletter),
	}
	for _, f := range form.FormFields {
		if f.Required && f.Enabled && strings.TrimSpace(values[f.Name]) == "" {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"ok":    false,
				"error": "missing required field: " + f.Name,
			})
		}
	}
	if form.FieldEnabled("email") {
		fields.Email = values["email"]
	}
	if form.FieldEnabled("lastName") {
		fields.LastName = values["lastName"]
	}
	if form.FieldEnabled("country") {
		fields.Country = values["country"]
	}
	if form.FieldEnabled("region") {
		fields.Region = values["region"]
	}
	if form.FieldEnabled("newsletter") {
		fields.Newsletter = values["newsletter"]
	}
	h.locate(ctx, &fields)

	h.svc.Events.Log(eventlog.EventForm, fields)

	mailed := false
	if form.ConfirmationEmail {
		mailed = h.svc.SendConfirmation(ctx.UserContext(), fields.Email, fields.LastName)
	}
	return ctx.JSON(fiber.Map{"ok": true, "sessionId": fields.SessionID, "mailed": mailed})
}

// PingAction records a booth visit. The body is optional.
func (h *Handlers) PingAction(ctx *cartridge.Context) error {
	var params PingParams
	if len(ctx.Body()) > 0 {
		if err := json.Unmarshal(ctx.Body(), &params); err != nil {
			ctx.Logger.Debug("Ignoring unreadable ping body", slog.Any("error", err))
			params = PingParams{}
		} else if err := validate.Struct(params); err != nil {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": errInvalidRequest})
		}
	}

	fields := eventlog.Fields{
		SessionID: h.sessionID(ctx, params.SessionID),
		Country:   params.Country,
		Region:    params.Region,
	}
	h.locate(ctx, &fields)
	h.svc.Events.Log(eventlog.EventVisit, fields)

	return ctx.JSON(fiber.Map{"ok": true, "sessionId": fields.SessionID})
}

func (h *Handlers) sessionID(ctx *cartridge.Context, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	if id := strings.TrimSpace(ctx.Get(sessionHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

// locate fills country and region from the client IP when the booth sent neither.
func (h *Handlers) locate(ctx *cartridge.Context, f *eventlog.Fields) {
	if f.Country != "" || f.Region != "" {
		return
	}
	f.Country, f.Region = h.svc.Geo.Lookup(clientIP(ctx.Ctx))
}

// rawFlag turns a JSON string, bool or number into the text the newsletter
// normaliser understands.
func rawFlag(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
