package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/disintegration/imaging"

	"photokiosk/internal/storage"
)

var ErrUnknownFolder = errors.New("uploads: unknown folder")

// Folder names accepted by List.
const (
	FolderPending  = "pending"
	FolderApproved = "approved"
)

const (
	DefaultThumbWidth = 320
	minThumbWidth     = 32
	maxThumbWidth     = 1600
	thumbQuality      = 80
)

// Reviewer is the admin side of the photo workflow.
type Reviewer struct {
	files      storage.Gateway
	pendingID  string
	approvedID string
	pageSize   int
	logger     *slog.Logger
}

func NewReviewer(files storage.Gateway, pendingID, approvedID string, pageSize int, logger *slog.Logger) *Reviewer {
	return &Reviewer{
		files:      files,
		pendingID:  pendingID,
		approvedID: approvedID,
		pageSize:   pageSize,
		logger:     logger,
	}
}

func (r *Reviewer) folderID(folder string) (string, error) {
	switch folder {
	case FolderPending, "":
		return r.pendingID, nil
	case FolderApproved:
		return r.approvedID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFolder, folder)
	}
}

// List returns the active photos of a folder, newest first.
func (r *Reviewer) List(ctx context.Context, folder string) ([]storage.Item, error) {
	id, err := r.folderID(folder)
	if err != nil {
		return nil, err
	}

	items := []storage.Item{}
	err = storage.Walk(ctx, r.files, id, false, r.pageSize, func(item storage.Item) error {
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s photos: %w", folder, err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedTime.After(items[j].CreatedTime)
	})
	return items, nil
}

// Gallery returns up to limit approved photos, newest first. A limit of zero
// or less returns them all.
func (r *Reviewer) Gallery(ctx context.Context, limit int) ([]storage.Item, error) {
	items, err := r.List(ctx, FolderApproved)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Approve moves a pending photo to the approved folder.
func (r *Reviewer) Approve(ctx context.Context, id string) error {
	if err := r.files.Move(ctx, id, r.pendingID, r.approvedID); err != nil {
		return fmt.Errorf("failed to approve %s: %w", id, err)
	}
	r.logger.Info("Photo approved", slog.String("file_id", id))
	return nil
}

// Reject trashes a photo. Its name stays in the store, so its ticket number
// is never handed out again.
func (r *Reviewer) Reject(ctx context.Context, id string) error {
	if err := r.files.Trash(ctx, id); err != nil {
		return fmt.Errorf("failed to reject %s: %w", id, err)
	}
	r.logger.Info("Photo rejected", slog.String("file_id", id))
	return nil
}

// OpenApproved streams an approved, active photo. Anything else is reported
// as not found so pending photos never leak through the public gallery.
func (r *Reviewer) OpenApproved(ctx context.Context, id string) (io.ReadCloser, storage.Item, error) {
	rc, item, err := r.files.Get(ctx, id)
	if err != nil {
		return nil, storage.Item{}, err
	}
	if item.Trashed || item.ParentID != r.approvedID {
		_ = rc.Close()
		return nil, storage.Item{}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return rc, item, nil
}

// Thumbnail decodes the photo, honours its EXIF orientation and scales it to
// width pixels wide as JPEG.
func (r *Reviewer) Thumbnail(ctx context.Context, id string, width int) ([]byte, error) {
	rc, _, err := r.files.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", id, err)
	}

	width = ClampThumbWidth(width)
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func ClampThumbWidth(width int) int {
	switch {
	case width <= 0:
		return DefaultThumbWidth
	case width < minThumbWidth:
		return minThumbWidth
	case width > maxThumbWidth:
		return maxThumbWidth
	default:
		return width
	}
}
