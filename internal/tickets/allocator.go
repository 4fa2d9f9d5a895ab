// Package tickets allocates and formats the sequential ticket numbers photos are named after.
//
// There is no stored counter. The next number is derived from the names already
// present in the pending and approved folders, trashed items included, so a number
// stays burned once any file carried it.
package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"photokiosk/internal/metrics"
	"photokiosk/internal/pkg/async"
	"photokiosk/internal/storage"
)

// Partition is one folder and trash state pair the allocator scans.
type Partition struct {
	FolderID string
	Trashed  bool
}

func (p Partition) String() string {
	if p.Trashed {
		return p.FolderID + "/trashed"
	}
	return p.FolderID + "/active"
}

type Allocator struct {
	files      storage.Gateway
	partitions []Partition
	pageSize   int
	pool       *async.Pool
	logger     *slog.Logger
}

func NewAllocator(files storage.Gateway, pendingID, approvedID string, pageSize int, logger *slog.Logger) *Allocator {
	partitions := []Partition{
		{FolderID: pendingID, Trashed: false},
		{FolderID: pendingID, Trashed: true},
		{FolderID: approvedID, Trashed: false},
		{FolderID: approvedID, Trashed: true},
	}
	return &Allocator{
		files:      files,
		partitions: partitions,
		pageSize:   pageSize,
		pool:       async.NewPool(len(partitions)),
		logger:     logger,
	}
}

// Partitions returns the folder and trash pairs scanned, in scan order.
func (a *Allocator) Partitions() []Partition {
	return append([]Partition(nil), a.partitions...)
}

// NextIndex returns one more than the highest ticket number seen in any partition, or 1.
// Any listing failure fails the allocation.
func (a *Allocator) NextIndex(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.TicketAllocationDuration.Observe(time.Since(start).Seconds())
	}()

	highest, err := a.MaxIndex(ctx)
	if err != nil {
		return 0, err
	}
	return highest + 1, nil
}

// MaxIndex returns the highest ticket number across all four partitions, 0 when none.
func (a *Allocator) MaxIndex(ctx context.Context) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make([]async.Task, 0, len(a.partitions))
	for _, p := range a.partitions {
		p := p
		tasks = append(tasks, async.Task{
			Name: p.String(),
			Execute: func(ctx context.Context) (interface{}, error) {
				return a.PartitionMax(ctx, p)
			},
		})
	}

	results := a.pool.Execute(ctx, tasks)

	highest := 0
	for _, p := range a.partitions {
		result, ok := results[p.String()]
		if !ok {
			if err := ctx.Err(); err != nil {
				return 0, fmt.Errorf("ticket allocation interrupted: %w", err)
			}
			return 0, fmt.Errorf("ticket allocation: no result for %s", p.String())
		}
		if result.Err != nil {
			return 0, fmt.Errorf("failed to scan %s: %w", p.String(), result.Err)
		}
		if n := result.Data.(int); n > highest {
			highest = n
		}
	}
	return highest, nil
}

// PartitionMax pages through one partition and returns the highest parsable ticket number.
func (a *Allocator) PartitionMax(ctx context.Context, p Partition) (int, error) {
	highest := 0
	skipped := 0
	err := storage.Walk(ctx, a.files, p.FolderID, p.Trashed, a.pageSize, func(item storage.Item) error {
		n, ok := ParseIndex(item.Name)
		if !ok {
			skipped++
			return nil
		}
		if n > highest {
			highest = n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if skipped > 0 {
		a.logger.Debug("Skipped files without a ticket number",
			slog.String("partition", p.String()),
			slog.Int("skipped", skipped))
	}
	return highest, nil
}
