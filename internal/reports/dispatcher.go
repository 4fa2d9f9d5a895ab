package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"photokiosk/internal/eventlog"
	"photokiosk/internal/mailer"
	"photokiosk/internal/metrics"
)

// Triggers label where a report run came from.
const (
	TriggerDaily    = "daily"
	TriggerNow      = "now"
	TriggerSchedule = "schedule"
	TriggerPreview  = "preview"
)

// StatsSource computes daily statistics.
type StatsSource interface {
	StatsFor(ctx context.Context, day time.Time) (eventlog.DailyStats, error)
	Today() time.Time
}

// Report is a rendered daily report.
type Report struct {
	Day     time.Time           `json:"day"`
	Subject string              `json:"subject"`
	Body    string              `json:"body"`
	Stats   eventlog.DailyStats `json:"stats"`
}

type Dispatcher struct {
	stats      StatsSource
	mail       mailer.Sender
	recipients []string
	logger     *slog.Logger
}

func NewDispatcher(stats StatsSource, mail mailer.Sender, recipients []string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{stats: stats, mail: mail, recipients: recipients, logger: logger}
}

// Build aggregates and renders the report for the kiosk-local day containing day.
func (d *Dispatcher) Build(ctx context.Context, day time.Time) (Report, error) {
	stats, err := d.stats.StatsFor(ctx, day)
	if err != nil {
		return Report{}, fmt.Errorf("failed to aggregate daily stats: %w", err)
	}
	return Report{
		Day:     day,
		Subject: Subject(day),
		Body:    Render(stats, day),
		Stats:   stats,
	}, nil
}

// Preview renders today's report without sending it.
func (d *Dispatcher) Preview(ctx context.Context) (Report, error) {
	report, err := d.Build(ctx, d.stats.Today())
	d.record(TriggerPreview, err)
	return report, err
}

// Send renders today's report and mails it to the configured recipients.
// The bool reports whether mail actually went out; missing recipients or
// SMTP settings only produce a warning.
func (d *Dispatcher) Send(ctx context.Context, trigger string) (Report, bool, error) {
	report, err := d.Build(ctx, d.stats.Today())
	if err != nil {
		d.record(trigger, err)
		return Report{}, false, err
	}

	if len(d.recipients) == 0 || d.mail == nil || !d.mail.Configured() {
		d.logger.Warn("Report mail not configured, skipping dispatch",
			slog.String("trigger", trigger),
			slog.Int("recipients", len(d.recipients)))
		metrics.MailsTotal.WithLabelValues("report", "skipped").Inc()
		d.record(trigger, nil)
		return report, false, nil
	}

	err = d.mail.Send(ctx, mailer.Message{
		To:      d.recipients,
		Subject: report.Subject,
		Body:    report.Body,
	})
	RecordMail("report", err)
	if err != nil {
		d.record(trigger, err)
		return report, false, fmt.Errorf("failed to send daily report: %w", err)
	}

	d.record(trigger, nil)
	d.logger.Info("Daily report sent",
		slog.String("trigger", trigger),
		slog.Int("recipients", len(d.recipients)),
		slog.Int("events", report.Stats.Total))
	return report, true, nil
}

func (d *Dispatcher) record(trigger string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ReportsTotal.WithLabelValues(trigger, result).Inc()
}
