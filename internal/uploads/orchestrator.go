// Package uploads stores booth photos under a fresh ticket number and serves
// the admin review workflow on top of the file store.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"sync"

	"photokiosk/internal/localtime"
	"photokiosk/internal/metrics"
	"photokiosk/internal/storage"
	"photokiosk/internal/tickets"
)

var (
	ErrEmptyBody       = errors.New("uploads: empty body")
	ErrUnsupportedType = errors.New("uploads: content type must be image/*")
	ErrTooLarge        = errors.New("uploads: image too large")
)

// TicketAllocator hands out the next ticket number.
type TicketAllocator interface {
	NextIndex(ctx context.Context) (int, error)
}

type Options struct {
	PendingFolderID string
	MaxBytes        int
	// Serialize runs allocate+store under a process-wide lock so two uploads
	// in this process cannot observe the same highest ticket. It does not
	// protect against a second instance sharing the store.
	Serialize bool
}

// Result describes a stored photo.
type Result struct {
	FileID        string `json:"fileId"`
	Filename      string `json:"filename"`
	TicketNumber  int    `json:"ticketIndex"`
	TicketLabel   string `json:"ticketLabel"`
	TicketDisplay string `json:"ticketDisplay"`
}

type Orchestrator struct {
	files   storage.Gateway
	tickets TicketAllocator
	opts    Options
	clock   localtime.TimeProvider
	logger  *slog.Logger
	mu      sync.Mutex
}

func NewOrchestrator(files storage.Gateway, alloc TicketAllocator, opts Options, clock localtime.TimeProvider, logger *slog.Logger) *Orchestrator {
	if clock == nil {
		clock = &localtime.DefaultTimeProvider{}
	}
	return &Orchestrator{
		files:   files,
		tickets: alloc,
		opts:    opts,
		clock:   clock,
		logger:  logger,
	}
}

// Validate checks the payload and returns the bare media type.
func (o *Orchestrator) Validate(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyBody
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if o.opts.MaxBytes > 0 && len(data) > o.opts.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), o.opts.MaxBytes)
	}
	return mediaType, nil
}

// Upload allocates a ticket, names the photo and stores it in the pending
// folder. Nothing is rolled back: a failed store leaves no file behind, so the
// number is simply offered again on the next allocation.
func (o *Orchestrator) Upload(ctx context.Context, data []byte, contentType string) (Result, error) {
	mediaType, err := o.Validate(data, contentType)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return Result{}, err
	}

	if o.opts.Serialize {
		o.mu.Lock()
		defer o.mu.Unlock()
	}

	n, err := o.tickets.NextIndex(ctx)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("failed to allocate ticket: %w", err)
	}

	ticket := tickets.Format(n, localtime.LocalNow(o.clock))
	item, err := o.files.Create(ctx, o.opts.PendingFolderID, ticket.Filename, mediaType, data)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("failed to store %s: %w", ticket.Filename, err)
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	o.logger.Info("Photo stored",
		slog.String("file_id", item.ID),
		slog.String("filename", ticket.Filename),
		slog.Int("ticket", n),
		slog.Int("bytes", len(data)))

	return Result{
		FileID:        item.ID,
		Filename:      ticket.Filename,
		TicketNumber:  ticket.Number,
		TicketLabel:   ticket.Label,
		TicketDisplay: ticket.Display,
	}, nil
}
