package settings

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/cache"
	"gopkg.in/yaml.v3"

	"photokiosk/internal/sheets"
)

var ErrTemplateNotFound = errors.New("settings: template not found")

//go:embed catalog.yaml
var defaultCatalog []byte

const templatesCacheKey = "templates"

// Template is a photo frame the booth can render over a picture.
type Template struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name" validate:"required,max=80"`
	Overlay string `json:"overlay" yaml:"overlay" validate:"required,max=500"`
	Active  bool   `json:"active" yaml:"active"`
}

type catalogFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadCatalog reads a YAML template catalog. An empty path loads the built-in one.
func LoadCatalog(path string) ([]Template, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read template catalog: %w", err)
		}
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}
	for i, t := range file.Templates {
		if err := validate.Struct(t); err != nil {
			return nil, fmt.Errorf("invalid template %d in catalog: %w", i, err)
		}
		if t.ID == "" {
			file.Templates[i].ID = uuid.NewString()
		}
	}
	return file.Templates, nil
}

// Templates keeps the template list in the settings sheet, one row per template.
type Templates struct {
	sheets  sheets.Gateway
	sheetID string
	rng     string
	logger  *slog.Logger
	cache   *cache.Cache[string, []Template]

	mu     sync.Mutex
	memory []Template
}

func NewTemplates(g sheets.Gateway, sheetID, rng string, logger *slog.Logger) *Templates {
	t := &Templates{sheets: g, sheetID: sheetID, rng: rng, logger: logger}
	t.cache = cache.NewCache[string, []Template](logger, time.Minute, func(string) ([]Template, error) {
		return t.read(context.Background())
	})
	return t
}

// List returns every template in sheet order.
func (t *Templates) List(ctx context.Context) ([]Template, error) {
	if t.sheetID == "" {
		t.mu.Lock()
		defer t.mu.Unlock()
		return append([]Template{}, t.memory...), nil
	}
	list, err := t.cache.Get(templatesCacheKey)
	if err != nil {
		return nil, err
	}
	return append([]Template{}, list...), nil
}

// Save inserts tmpl, or replaces the template with the same ID.
func (t *Templates) Save(ctx context.Context, tmpl Template) (Template, error) {
	tmpl.Name = strings.TrimSpace(tmpl.Name)
	tmpl.Overlay = strings.TrimSpace(tmpl.Overlay)
	if err := validate.Struct(tmpl); err != nil {
		return Template{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	list, err := t.currentLocked(ctx)
	if err != nil {
		return Template{}, err
	}
	replaced := false
	for i := range list {
		if list[i].ID == tmpl.ID {
			list[i] = tmpl
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, tmpl)
	}
	if err := t.writeLocked(ctx, list); err != nil {
		return Template{}, err
	}
	t.logger.Info("Template saved", slog.String("id", tmpl.ID), slog.Bool("new", !replaced))
	return tmpl, nil
}

func (t *Templates) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	list, err := t.currentLocked(ctx)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, tmpl := range list {
		if tmpl.ID != id {
			kept = append(kept, tmpl)
		}
	}
	if len(kept) == len(list) {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err := t.writeLocked(ctx, kept); err != nil {
		return err
	}
	t.logger.Info("Template deleted", slog.String("id", id))
	return nil
}

// Seed writes catalog when no template exists yet and reports how many were written.
func (t *Templates) Seed(ctx context.Context, catalog []Template) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	list, err := t.currentLocked(ctx)
	if err != nil {
		return 0, err
	}
	if len(list) > 0 || len(catalog) == 0 {
		return 0, nil
	}
	if err := t.writeLocked(ctx, catalog); err != nil {
		return 0, err
	}
	t.logger.Info("Template catalog seeded", slog.Int("templates", len(catalog)))
	return len(catalog), nil
}

// currentLocked reads straight from the sheet so writes never start from a stale cache.
func (t *Templates) currentLocked(ctx context.Context) ([]Template, error) {
	if t.sheetID == "" {
		return append([]Template{}, t.memory...), nil
	}
	return t.read(ctx)
}

func (t *Templates) writeLocked(ctx context.Context, list []Template) error {
	if t.sheetID == "" {
		t.memory = append([]Template{}, list...)
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, tmpl := range list {
		rows = append(rows, []string{tmpl.ID, tmpl.Name, tmpl.Overlay, strconv.FormatBool(tmpl.Active)})
	}
	if err := t.sheets.ClearRange(ctx, t.sheetID, t.rng); err != nil {
		return fmt.Errorf("failed to clear templates: %w", err)
	}
	if len(rows) > 0 {
		if err := t.sheets.UpdateRange(ctx, t.sheetID, t.rng, rows); err != nil {
			return fmt.Errorf("failed to write templates: %w", err)
		}
	}
	t.cache.Clear()
	return nil
}

func (t *Templates) read(ctx context.Context) ([]Template, error) {
	rows, err := t.sheets.GetAllRows(ctx, t.sheetID, t.rng)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}
	list := make([]Template, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		tmpl := Template{
			ID:      strings.TrimSpace(row[0]),
			Name:    strings.TrimSpace(row[1]),
			Overlay: strings.TrimSpace(row[2]),
		}
		if len(row) > 3 {
			tmpl.Active, _ = strconv.ParseBool(strings.TrimSpace(row[3]))
		}
		list = append(list, tmpl)
	}
	return list, nil
}
