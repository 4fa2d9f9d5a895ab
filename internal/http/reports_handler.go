package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"photokiosk/internal/reports"
)

func (h *Handlers) ReportDailyAction(ctx *cartridge.Context) error {
	return h.sendReport(ctx, reports.TriggerDaily)
}

func (h *Handlers) ReportNowAction(ctx *cartridge.Context) error {
	return h.sendReport(ctx, reports.TriggerNow)
}

func (h *Handlers) sendReport(ctx *cartridge.Context, trigger string) error {
	report, sent, err := h.svc.Reports.Send(ctx.UserContext(), trigger)
	if err != nil {
		ctx.Logger.Error("Failed to send daily report", slog.String("trigger", trigger), slog.Any("error", err))
		return fail(ctx, fiber.StatusBadGateway, "Failed to send daily report")
	}
	return ctx.JSON(fiber.Map{
		"ok":      true,
		"sent":    sent,
		"subject": report.Subject,
		"stats":   report.Stats,
	})
}

// ReportPreviewAction renders today's report as plain text without mailing it.
func (h *Handlers) ReportPreviewAction(ctx *cartridge.Context) error {
	report, err := h.svc.Reports.Preview(ctx.UserContext())
	if err != nil {
		ctx.Logger.Error("Failed to build report preview", slog.Any("error", err))
		return fail(ctx, fiber.StatusBadGateway, "Failed to read event log")
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return ctx.SendString(report.Body)
}
