package jobs

import (
	"context"
	"log/slog"
)

// OrphanSweeper removes stored blobs that lost their metadata.
type OrphanSweeper interface {
	SweepOrphans(ctx context.Context) (int, error)
}

// CleanupJob removes blobs left behind by interrupted uploads.
type CleanupJob struct {
	store  OrphanSweeper
	logger *slog.Logger
}

func NewCleanupJob(store OrphanSweeper, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{store: store, logger: logger}
}

func (j *CleanupJob) Name() string { return "blob_cleanup" }

func (j *CleanupJob) Run(ctx context.Context) error {
	removed, err := j.store.SweepOrphans(ctx)
	if err != nil {
		return err
	}
	if removed == 0 {
		j.logger.Debug("No orphaned blobs to clean up")
		return nil
	}
	j.logger.Info("Cleaned up orphaned blobs", slog.Int("deleted_count", removed))
	return nil
}
