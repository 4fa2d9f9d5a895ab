package eventlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"photokiosk/internal/localtime"
	"photokiosk/internal/metrics"
)

const writeTimeout = 15 * time.Second

type queuedEvent struct {
	eventType EventType
	fields    Fields
}

// AsyncWriter takes event logging off the request path. Events are stamped
// when queued, so a slow queue does not shift them in time. A full queue drops
// the event. With zero workers every Log call writes inline.
type AsyncWriter struct {
	next    Logger
	workers int
	clock   localtime.TimeProvider
	logger  *slog.Logger

	mu      sync.RWMutex
	queue   chan queuedEvent
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func NewAsyncWriter(next Logger, workers, queueSize int, clock localtime.TimeProvider, logger *slog.Logger) *AsyncWriter {
	if clock == nil {
		clock = &localtime.DefaultTimeProvider{}
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &AsyncWriter{
		next:    next,
		workers: workers,
		clock:   clock,
		logger:  logger,
		queue:   make(chan queuedEvent, queueSize),
	}
}

// Log records the event in the background. It never blocks and never fails.
func (a *AsyncWriter) Log(t EventType, f Fields) {
	if f.TimestampUTC == "" {
		f.TimestampUTC = localtime.FormatISO(a.clock.Now(time.UTC))
	}

	if a.workers <= 0 {
		a.write(queuedEvent{eventType: t, fields: f})
		return
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopped {
		a.logger.Warn("Event logger stopped, dropping event", slog.String("event_type", string(t)))
		metrics.EventQueueDropped.Inc()
		return
	}
	select {
	case a.queue <- queuedEvent{eventType: t, fields: f}:
	default:
		a.logger.Warn("Event queue full, dropping event", slog.String("event_type", string(t)))
		metrics.EventQueueDropped.Inc()
	}
}

// Start launches the workers.
// Implements cartridge.BackgroundWorker interface.
func (a *AsyncWriter) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started || a.stopped || a.workers <= 0 {
		return nil
	}
	a.started = true

	for i := 0; i < a.workers; i++ {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for ev := range a.queue {
				a.write(ev)
			}
		}()
	}
	a.logger.Info("Event log workers started", slog.Int("workers", a.workers))
	return nil
}

// Stop closes the queue and waits for queued events to be written.
// Implements cartridge.BackgroundWorker interface.
func (a *AsyncWriter) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	started := a.started
	close(a.queue)
	a.mu.Unlock()

	if !started {
		// Nobody will drain the queue; write what is left inline.
		for ev := range a.queue {
			a.write(ev)
		}
		return
	}
	a.wg.Wait()
	a.logger.Info("Event log workers stopped")
}

func (a *AsyncWriter) write(ev queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Panic recovered while logging event",
				slog.String("event_type", string(ev.eventType)),
				slog.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := a.next.LogEvent(ctx, ev.eventType, ev.fields); err != nil {
		a.logger.Error("Failed to log event",
			slog.String("event_type", string(ev.eventType)),
			slog.Any("error", err))
	}
}
