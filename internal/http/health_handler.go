package http

import (
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"

	"photokiosk/internal/metrics"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	DBStatus  string            `json:"db_status"`
	Gateways  map[string]string `json:"gateways,omitempty"`
}

// stateReporter is implemented by gateways wrapped in a circuit breaker.
type stateReporter interface {
	State() string
}

// HealthIndexAction reports database reachability and the breaker state of
// each gateway. An open breaker degrades the status but not the response code.
func (h *Handlers) HealthIndexAction(ctx *cartridge.Context) error {
	dbStatus := "ok"

	db := ctx.DBManager.GetConnection()
	if db == nil {
		dbStatus = "error"
		ctx.Logger.Error("Database connection unavailable")
	} else {
		sqlDB, err := db.DB()
		if err != nil {
			dbStatus = "error"
			ctx.Logger.Error("Database connection error", slog.Any("error", err))
		} else if err := sqlDB.Ping(); err != nil {
			dbStatus = "error"
			ctx.Logger.Error("Database ping failed", slog.Any("error", err))
		}
	}

	health := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		DBStatus:  dbStatus,
		Gateways:  make(map[string]string),
	}
	if r, ok := h.svc.Files.(stateReporter); ok {
		health.Gateways["files"] = r.State()
	}
	if r, ok := h.svc.Sheets.(stateReporter); ok {
		health.Gateways["sheets"] = r.State()
	}

	if dbStatus != "ok" {
		health.Status = "degraded"
	}
	for _, state := range health.Gateways {
		if state == "open" {
			health.Status = "degraded"
		}
	}

	return ctx.JSON(health)
}

// MetricsAction exposes the Prometheus registry.
func MetricsAction(ctx *cartridge.Context) error {
	return metrics.Handler()(ctx.Ctx)
}
