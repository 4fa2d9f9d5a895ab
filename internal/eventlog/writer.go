package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"photokiosk/internal/localtime"
	"photokiosk/internal/metrics"
	"photokiosk/internal/sheets"
)

// Fields are the optional values of an event. An empty TimestampUTC means now.
type Fields struct {
	Email        string
	SessionID    string
	Country      string
	Region       string
	LastName     string
	Newsletter   string
	Ticket       string
	TimestampUTC string
}

// Logger is what request handlers need to record an event.
type Logger interface {
	LogEvent(ctx context.Context, t EventType, f Fields) error
}

// Writer appends one row per event to the log sheet.
type Writer struct {
	sheets  sheets.Gateway
	sheetID string
	rng     string
	clock   localtime.TimeProvider
	norm    *Normalizer
	logger  *slog.Logger
}

func NewWriter(g sheets.Gateway, sheetID, rng string, clock localtime.TimeProvider, logger *slog.Logger) *Writer {
	if clock == nil {
		clock = &localtime.DefaultTimeProvider{}
	}
	return &Writer{
		sheets:  g,
		sheetID: sheetID,
		rng:     rng,
		clock:   clock,
		norm:    NewNormalizer(),
		logger:  logger,
	}
}

// LogEvent appends the event. A missing sheet id, an unknown type or an
// unparsable timestamp is logged and dropped without an error; only gateway
// failures are returned.
func (w *Writer) LogEvent(ctx context.Context, t EventType, f Fields) error {
	if w.sheetID == "" {
		w.logger.Warn("Event log sheet not configured, dropping event", slog.String("event_type", string(t)))
		metrics.EventLogWritesTotal.WithLabelValues(string(t), "skipped").Inc()
		return nil
	}
	if _, ok := ParseEventType(string(t)); !ok {
		w.logger.Warn("Unknown event type, dropping event", slog.String("event_type", string(t)))
		metrics.EventLogWritesTotal.WithLabelValues("unknown", "skipped").Inc()
		return nil
	}

	row, err := w.BuildRow(t, f)
	if err != nil {
		w.logger.Warn("Invalid event timestamp, dropping event",
			slog.String("event_type", string(t)),
			slog.String("timestamp", f.TimestampUTC),
			slog.Any("error", err))
		metrics.EventLogWritesTotal.WithLabelValues(string(t), "skipped").Inc()
		return nil
	}

	if err := w.sheets.AppendRow(ctx, w.sheetID, w.rng, row.Cells()); err != nil {
		metrics.EventLogWritesTotal.WithLabelValues(string(t), "error").Inc()
		return fmt.Errorf("failed to append %s event: %w", t, err)
	}
	metrics.EventLogWritesTotal.WithLabelValues(string(t), "ok").Inc()
	w.logger.Debug("Event logged", slog.String("event_type", string(t)), slog.String("timestamp", row.TimestampUTC))
	return nil
}

// BuildRow normalises f into a ten column row.
func (w *Writer) BuildRow(t EventType, f Fields) (Row, error) {
	at := w.clock.Now(localtime.Zone)
	if ts := strings.TrimSpace(f.TimestampUTC); ts != "" {
		parsed, err := localtime.ParseInstant(ts)
		if err != nil {
			return Row{}, err
		}
		at = parsed
	}

	country, region := w.norm.Location(f.Country, f.Region)
	return Row{
		TimestampUTC: localtime.FormatISO(at),
		TimestampPR:  localtime.FormatShort(at),
		EventType:    string(t),
		Email:        strings.TrimSpace(f.Email),
		SessionID:    strings.TrimSpace(f.SessionID),
		Country:      country,
		Region:       region,
		LastName:     w.norm.LastName(f.LastName),
		Newsletter:   NormalizeNewsletter(f.Newsletter),
		Ticket:       strings.TrimSpace(f.Ticket),
	}, nil
}

// EnsureHeader writes the current header when the log is empty.
func (w *Writer) EnsureHeader(ctx context.Context) error {
	if w.sheetID == "" {
		return nil
	}
	rows, err := w.sheets.GetAllRows(ctx, w.sheetID, w.rng)
	if err != nil {
		return fmt.Errorf("failed to read event log: %w", err)
	}
	if len(rows) > 0 {
		return nil
	}
	if err := w.sheets.AppendRow(ctx, w.sheetID, w.rng, HeaderV2); err != nil {
		return fmt.Errorf("failed to write event log header: %w", err)
	}
	w.logger.Info("Event log header written", slog.String("sheet", w.sheetID))
	return nil
}
