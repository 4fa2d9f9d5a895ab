package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// RowRecord is one stored spreadsheet row.
type RowRecord struct {
	ID        uint      `gorm:"primaryKey"`
	SheetID   string    `gorm:"not null;uniqueIndex:idx_sheet_rows_position,priority:1"`
	Tab       string    `gorm:"not null;uniqueIndex:idx_sheet_rows_position,priority:2"`
	Position  int       `gorm:"not null;uniqueIndex:idx_sheet_rows_position,priority:3"`
	Cells     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

func (RowRecord) TableName() string {
	return "sheet_rows"
}

// LocalStore keeps sheet rows in sqlite.
type LocalStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewLocalStore(db *gorm.DB, logger *slog.Logger) *LocalStore {
	return &LocalStore{db: db, logger: logger}
}

func (s *LocalStore) AppendRow(ctx context.Context, sheetID, rng string, row []string) error {
	r, err := ParseRange(rng)
	if err != nil {
		return err
	}
	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var last int
		err := tx.Model(&RowRecord{}).
			Where("sheet_id = ? AND tab = ?", sheetID, r.Tab).
			Select("COALESCE(MAX(position), 0)").
			Scan(&last).Error
		if err != nil {
			return fmt.Errorf("failed to find last row of %s: %w", r.Tab, err)
		}
		return tx.Create(&RowRecord{
			SheetID:  sheetID,
			Tab:      r.Tab,
			Position: last + 1,
			Cells:    string(cells),
		}).Error
	})
}

func (s *LocalStore) GetAllRows(ctx context.Context, sheetID, rng string) ([][]string, error) {
	r, err := ParseRange(rng)
	if err != nil {
		return nil, err
	}
	var records []RowRecord
	err = s.db.WithContext(ctx).
		Where("sheet_id = ? AND tab = ?", sheetID, r.Tab).
		Order("position ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.Tab, err)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		if !r.Contains(rec.Position) {
			continue
		}
		var cells []string
		if err := json.Unmarshal([]byte(rec.Cells), &cells); err != nil {
			s.logger.Warn("Skipping undecodable sheet row",
				slog.String("tab", r.Tab),
				slog.Int("position", rec.Position),
				slog.Any("error", err))
			continue
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func (s *LocalStore) UpdateRange(ctx context.Context, sheetID, rng string, rows [][]string) error {
	r, err := ParseRange(rng)
	if err != nil {
		return err
	}
	if r.LastRow > 0 && r.FirstRow+len(rows)-1 > r.LastRow {
		return fmt.Errorf("%d rows do not fit in range %s", len(rows), rng)
	}

	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		for i, row := range rows {
			cells, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("failed to encode row: %w", err)
			}
			position := r.FirstRow + i
			res := tx.Model(&RowRecord{}).
				Where("sheet_id = ? AND tab = ? AND position = ?", sheetID, r.Tab, position).
				Update("cells", string(cells))
			if res.Error != nil {
				return fmt.Errorf("failed to update row %d: %w", position, res.Error)
			}
			if res.RowsAffected == 0 {
				if err := tx.Create(&RowRecord{SheetID: sheetID, Tab: r.Tab, Position: position, Cells: string(cells)}).Error; err != nil {
					return fmt.Errorf("failed to insert row %d: %w", position, err)
				}
			}
		}
		return nil
	})
}

func (s *LocalStore) ClearRange(ctx context.Context, sheetID, rng string) error {
	r, err := ParseRange(rng)
	if err != nil {
		return err
	}
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		q := tx.Where("sheet_id = ? AND tab = ? AND position >= ?", sheetID, r.Tab, r.FirstRow)
		if r.LastRow > 0 {
			q = q.Where("position <= ?", r.LastRow)
		}
		return q.Delete(&RowRecord{}).Error
	})
}
