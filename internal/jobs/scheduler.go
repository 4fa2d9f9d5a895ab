// Package jobs runs the kiosk's background work on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"photokiosk/internal/localtime"
	"photokiosk/internal/reports"
)

// ReportSender sends the daily report for the current kiosk day.
type ReportSender interface {
	Send(ctx context.Context, trigger string) (reports.Report, bool, error)
}

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry pairs a job with its cron spec.
type Entry struct {
	Spec string
	Job  Job
}

// Scheduler runs jobs in the kiosk time zone. It implements cartridge.BackgroundWorker.
type Scheduler struct {
	logger  *slog.Logger
	cron    *cron.Cron
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	isRunning bool
}

func NewScheduler(entries []Entry, logger *slog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		logger:  logger,
		timeout: 5 * time.Minute,
		ctx:     ctx,
		cancel:  cancel,
		cron: cron.New(
			cron.WithLocation(localtime.Zone),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}

	for _, e := range entries {
		job := e.Job
		if _, err := s.cron.AddFunc(e.Spec, func() { s.execute(job) }); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid schedule %q for job %s: %w", e.Spec, job.Name(), err)
		}
		logger.Info("Scheduled job", slog.String("job", job.Name()), slog.String("spec", e.Spec))
	}
	return s, nil
}

func (s *Scheduler) execute(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
		return
	}
	s.logger.Debug("Job finished", slog.String("job", job.Name()), slog.Duration("took", time.Since(start)))
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}
	s.cron.Start()
	s.isRunning = true
	s.logger.Info("Background jobs started", slog.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop halts the schedule and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.logger.Info("Stopping background jobs...")
	s.cancel()
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// DailyReportJob mails the daily report, same path as GET /session-report-daily.
type DailyReportJob struct {
	reports ReportSender
	logger  *slog.Logger
}

func NewDailyReportJob(r ReportSender, logger *slog.Logger) *DailyReportJob {
	return &DailyReportJob{reports: r, logger: logger}
}

func (j *DailyReportJob) Name() string { return "daily_report" }

func (j *DailyReportJob) Run(ctx context.Context) error {
	report, sent, err := j.reports.Send(ctx, reports.TriggerSchedule)
	if err != nil {
		return err
	}
	j.logger.Info("Scheduled daily report finished",
		slog.String("subject", report.Subject),
		slog.Bool("sent", sent))
	return nil
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
