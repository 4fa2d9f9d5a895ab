// Package kiosk assembles the kiosk's components from configuration.
package kiosk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"photokiosk/internal/auth"
	"photokiosk/internal/config"
	"photokiosk/internal/eventlog"
	"photokiosk/internal/jobs"
	"photokiosk/internal/localtime"
	"photokiosk/internal/mailer"
	"photokiosk/internal/pkg/breaker"
	"photokiosk/internal/pkg/geoip"
	"photokiosk/internal/reports"
	"photokiosk/internal/settings"
	"photokiosk/internal/sheets"
	"photokiosk/internal/storage"
	"photokiosk/internal/tickets"
	"photokiosk/internal/uploads"
)

const (
	cleanupSpec      = "@daily"
	confirmTimeout   = 10 * time.Second
	bootstrapTimeout = 30 * time.Second
)

// Services holds every component a request handler or job needs.
type Services struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  localtime.TimeProvider

	Files  storage.Gateway
	Sheets sheets.Gateway
	Mailer mailer.Sender
	Geo    *geoip.Resolver

	Tickets    *tickets.Allocator
	Uploads    *uploads.Orchestrator
	Photos     *uploads.Reviewer
	EventLog   *eventlog.Writer
	Events     *eventlog.AsyncWriter
	Stats      *eventlog.Aggregator
	Reports    *reports.Dispatcher
	Settings   *settings.Store
	Templates  *settings.Templates
	Auth       *auth.Issuer
	Scheduler  *jobs.Scheduler

	sweeper jobs.OrphanSweeper
}

// Option replaces a default backend, mostly for tests.
type Option func(*Services)

func WithFiles(g storage.Gateway) Option {
	return func(s *Services) { s.Files = g }
}

func WithSheets(g sheets.Gateway) Option {
	return func(s *Services) { s.Sheets = g }
}

func WithMailer(m mailer.Sender) Option {
	return func(s *Services) { s.Mailer = m }
}

func WithClock(c localtime.TimeProvider) Option {
	return func(s *Services) { s.Clock = c }
}

func WithGeo(r *geoip.Resolver) Option {
	return func(s *Services) { s.Geo = r }
}

// New builds the services. Gateways not supplied by options are backed by
// db and the blob directory, behind circuit breakers.
func New(cfg *config.Config, db *gorm.DB, logger *slog.Logger, opts ...Option) (*Services, error) {
	s := &Services{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.Clock == nil {
		s.Clock = &localtime.DefaultTimeProvider{}
	}

	brk := breaker.Settings{MaxFailures: cfg.BreakerMaxFailures, Timeout: cfg.GetBreakerTimeout()}
	if s.Files == nil {
		local, err := storage.NewLocalStore(db, cfg.GetBlobDirectory(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		s.sweeper = local
		s.Files = storage.NewBreakerGateway(local, brk, logger)
	}
	if s.Sheets == nil {
		s.Sheets = sheets.NewBreakerGateway(sheets.NewLocalStore(db, logger), brk, logger)
	}
	if s.Mailer == nil {
		s.Mailer = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
		}, logger)
	}
	if s.Geo == nil {
		s.Geo = geoip.Open(cfg.GeoDBPath, logger)
	}

	s.Tickets = tickets.NewAllocator(s.Files, cfg.PendingFolderID, cfg.ApprovedFolderID, cfg.ListPageSize, logger)
	s.Uploads = uploads.NewOrchestrator(s.Files, s.Tickets, uploads.Options{
		PendingFolderID: cfg.PendingFolderID,
		MaxBytes:        cfg.UploadMaxBytes,
		Serialize:       cfg.UploadSerialize,
	}, s.Clock, logger)
	s.Photos = uploads.NewReviewer(s.Files, cfg.PendingFolderID, cfg.ApprovedFolderID, cfg.ListPageSize, logger)

	s.EventLog = eventlog.NewWriter(s.Sheets, cfg.LogSheetID, cfg.LogSheetRange, s.Clock, logger)
	s.Events = eventlog.NewAsyncWriter(s.EventLog, cfg.EventWorkerCount, cfg.EventQueueSize, s.Clock, logger)
	s.Stats = eventlog.NewAggregator(s.Sheets, cfg.LogSheetID, cfg.LogSheetRange, s.Clock, logger)
	s.Reports = reports.NewDispatcher(s.Stats, s.Mailer, cfg.GetReportRecipients(), logger)

	s.Settings = settings.NewStore(s.Sheets, cfg.SettingsSheetID, cfg.SettingsRange, s.Clock, logger)
	s.Templates = settings.NewTemplates(s.Sheets, cfg.SettingsSheetID, cfg.TemplatesRange, logger)
	s.Auth = auth.NewIssuer(cfg.GetSessionSecret(), cfg.AdminPasswordHash, cfg.GetTokenTTL(), s.Clock)

	var entries []jobs.Entry
	if cfg.ReportCron != "" {
		entries = append(entries, jobs.Entry{Spec: cfg.ReportCron, Job: jobs.NewDailyReportJob(s.Reports, logger)})
	}
	if s.sweeper != nil {
		entries = append(entries, jobs.Entry{Spec: cleanupSpec, Job: jobs.NewCleanupJob(s.sweeper, logger)})
	}
	scheduler, err := jobs.NewScheduler(entries, logger)
	if err != nil {
		return nil, err
	}
	s.Scheduler = scheduler

	return s, nil
}

// Workers returns the components that run for the lifetime of the server.
func (s *Services) Workers() []cartridge.BackgroundWorker {
	return []cartridge.BackgroundWorker{s.Events, s.Scheduler}
}

// Bootstrap writes the event log header and seeds the template catalog.
// Failures are logged; the kiosk still serves without them.
func (s *Services) Bootstrap(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	if err := s.EventLog.EnsureHeader(ctx); err != nil {
		s.Logger.Warn("Failed to write event log header", slog.Any("error", err))
	}

	catalog, err := settings.LoadCatalog(s.Config.TemplatesCatalogPath)
	if err != nil {
		s.Logger.Warn("Failed to load template catalog", slog.Any("error", err))
		return
	}
	if _, err := s.Templates.Seed(ctx, catalog); err != nil {
		s.Logger.Warn("Failed to seed templates", slog.Any("error", err))
	}
}

// SendConfirmation mails a registration confirmation to a visitor. It reports
// whether a message went out; errors are logged and swallowed.
func (s *Services) SendConfirmation(ctx context.Context, email, lastName string) bool {
	if email == "" || !s.Mailer.Configured() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	subject, body := reports.RenderConfirmation(lastName, localtime.LocalNow(s.Clock))
	err := s.Mailer.Send(ctx, mailer.Message{To: []string{email}, Subject: subject, Body: body})
	reports.RecordMail("confirmation", err)
	if err != nil {
		s.Logger.Warn("Failed to send confirmation mail", slog.Any("error", err))
		return false
	}
	return true
}

// Close releases resources that outlive the workers.
func (s *Services) Close() error {
	return s.Geo.Close()
}
