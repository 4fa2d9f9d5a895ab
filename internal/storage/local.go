package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// FileRecord is the metadata row for a stored blob.
type FileRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"not null;index"`
	ParentID  string    `gorm:"not null;index:idx_files_parent_trashed,priority:1"`
	Trashed   bool      `gorm:"not null;default:false;index:idx_files_parent_trashed,priority:2"`
	MimeType  string    `gorm:"not null"`
	Size      int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli;index"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

func (FileRecord) TableName() string {
	return "files"
}

func (r FileRecord) item() Item {
	return Item{
		ID:          r.ID,
		Name:        r.Name,
		ParentID:    r.ParentID,
		MimeType:    r.MimeType,
		Size:        r.Size,
		Trashed:     r.Trashed,
		CreatedTime: r.CreatedAt.UTC(),
	}
}

// LocalStore keeps metadata in sqlite and blobs in a directory.
type LocalStore struct {
	db      *gorm.DB
	blobDir string
	logger  *slog.Logger
}

func NewLocalStore(db *gorm.DB, blobDir string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalStore{db: db, blobDir: blobDir, logger: logger}, nil
}

// List pages by creation order. The page token is the offset of the next page.
func (s *LocalStore) List(ctx context.Context, parentID string, trashed bool, pageToken string, pageSize int) (Page, error) {
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	var records []FileRecord
	err := s.db.WithContext(ctx).
		Where("parent_id = ? AND trashed = ?", parentID, trashed).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(pageSize + 1).
		Find(&records).Error
	if err != nil {
		return Page{}, fmt.Errorf("failed to list folder %s: %w", parentID, err)
	}

	page := Page{}
	if len(records) > pageSize {
		records = records[:pageSize]
		page.NextPageToken = strconv.Itoa(offset + pageSize)
	}
	page.Items = make([]Item, 0, len(records))
	for _, r := range records {
		page.Items = append(page.Items, r.item())
	}
	return page, nil
}

// Create writes the blob first so a metadata row never points at a missing file.
func (s *LocalStore) Create(ctx context.Context, parentID, name, mimeType string, data []byte) (Item, error) {
	record := FileRecord{
		ID:       uuid.NewString(),
		Name:     name,
		ParentID: parentID,
		MimeType: mimeType,
		Size:     int64(len(data)),
	}

	path := s.blobPath(record.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Item{}, fmt.Errorf("failed to write blob: %w", err)
	}

	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(&record).Error
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("Failed to remove orphaned blob", slog.String("path", path), slog.Any("error", rmErr))
		}
		return Item{}, fmt.Errorf("failed to record file %s: %w", name, err)
	}
	return record.item(), nil
}

func (s *LocalStore) Move(ctx context.Context, id, fromParentID, toParentID string) error {
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		record, err := findRecord(tx, id)
		if err != nil {
			return err
		}
		if record.ParentID != fromParentID {
			return fmt.Errorf("%w: %s is in %s", ErrWrongParent, id, record.ParentID)
		}
		if record.Trashed {
			return fmt.Errorf("%w: %s", ErrTrashed, id)
		}
		return tx.Model(&FileRecord{}).Where("id = ?", id).Update("parent_id", toParentID).Error
	})
}

// Trash marks the item trashed. Trashing twice is a no-op.
func (s *LocalStore) Trash(ctx context.Context, id string) error {
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if _, err := findRecord(tx, id); err != nil {
			return err
		}
		return tx.Model(&FileRecord{}).Where("id = ?", id).Update("trashed", true).Error
	})
}

func (s *LocalStore) Get(ctx context.Context, id string) (io.ReadCloser, Item, error) {
	record, err := findRecord(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, Item{}, err
	}
	f, err := os.Open(s.blobPath(record.ID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Item{}, fmt.Errorf("%w: blob for %s", ErrNotFound, id)
		}
		return nil, Item{}, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, record.item(), nil
}

// orphanGrace keeps the sweep away from blobs whose create may still be in flight.
const orphanGrace = 10 * time.Minute

// SweepOrphans removes blobs that have no metadata row, left behind by interrupted creates.
func (s *LocalStore) SweepOrphans(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-orphanGrace)
	entries, err := os.ReadDir(s.blobDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read blob directory: %w", err)
	}

	var ids []string
	if err := s.db.WithContext(ctx).Model(&FileRecord{}).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to load file ids: %w", err)
	}
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := known[entry.Name()]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.blobDir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("Failed to remove orphaned blob", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *LocalStore) blobPath(id string) string {
	return filepath.Join(s.blobDir, id)
}

func findRecord(db *gorm.DB, id string) (FileRecord, error) {
	var record FileRecord
	err := db.Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return FileRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to load file %s: %w", id, err)
	}
	return record, nil
}
