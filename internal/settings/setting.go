// Package settings holds the booth's admin-editable configuration.
//
// Values start from Defaults, are overlaid once from the settings sheet on
// first access, and are then replaced wholesale by every admin write.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"photokiosk/internal/localtime"
	"photokiosk/internal/sheets"
)

var ErrInvalidSettings = errors.New("settings: invalid settings")

// Sheet keys
const (
	KeyAppEnabled        = "app_enabled"
	KeyTicketOverlay     = "ticket_overlay"
	KeyGalleryLimit      = "gallery_limit"
	KeyFormTitle         = "form_title"
	KeyFormFields        = "form_fields"
	KeyConfirmationEmail = "confirmation_email"
	KeyVersion           = "version"
	KeyUpdatedAt         = "updated_at"
)

// FormField is one input of the visitor registration form.
type FormField struct {
	Name     string `json:"name" yaml:"name" validate:"required,max=64"`
	Label    string `json:"label" yaml:"label" validate:"max=120"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Required bool   `json:"required" yaml:"required"`
}

type AppSettings struct {
	Version           int         `json:"version"`
	AppEnabled        bool        `json:"appEnabled"`
	TicketOverlay     bool        `json:"ticketOverlay"`
	GalleryLimit      int         `json:"galleryLimit" validate:"gte=0,lte=500"`
	FormTitle         string      `json:"formTitle" validate:"max=200"`
	FormFields        []FormField `json:"formFields" validate:"dive"`
	ConfirmationEmail bool        `json:"confirmationEmail"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// FieldEnabled reports whether the form field name is switched on.
func (a AppSettings) FieldEnabled(name string) bool {
	for _, f := range a.FormFields {
		if f.Name == name {
			return f.Enabled
		}
	}
	return false
}

// Defaults is the configuration used until the sheet says otherwise.
func Defaults() AppSettings {
	return AppSettings{
		AppEnabled:    true,
		TicketOverlay: true,
		GalleryLimit:  60,
		FormTitle:     "¡Regístrate para recibir tu foto!",
		FormFields: []FormField{
			{Name: "email", Label: "Correo electrónico", Enabled: true, Required: true},
			{Name: "lastName", Label: "Apellido", Enabled: true},
			{Name: "country", Label: "País", Enabled: true},
			{Name: "region", Label: "Pueblo o estado", Enabled: true},
			{Name: "newsletter", Label: "Quiero recibir noticias", Enabled: true},
		},
		ConfirmationEmail: true,
	}
}

var validate = validator.New()

// Validate checks field bounds and that form field names are unique.
func Validate(a AppSettings) error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	seen := make(map[string]bool, len(a.FormFields))
	for _, f := range a.FormFields {
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate form field %q", ErrInvalidSettings, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Store is the single shared AppSettings instance.
type Store struct {
	sheets  sheets.Gateway
	sheetID string
	rng     string
	clock   localtime.TimeProvider
	logger  *slog.Logger

	mu      sync.RWMutex
	current AppSettings
	loaded  bool
}

// NewStore returns a store that hydrates from sheetID on first access. With
// an empty sheetID settings live in memory only.
func NewStore(g sheets.Gateway, sheetID, rng string, clock localtime.TimeProvider, logger *slog.Logger) *Store {
	if clock == nil {
		clock = &localtime.DefaultTimeProvider{}
	}
	s := &Store{
		sheets:  g,
		sheetID: sheetID,
		rng:     rng,
		clock:   clock,
		logger:  logger,
		current: Defaults(),
	}
	if sheetID == "" {
		logger.Warn("Settings sheet not configured, settings will not survive a restart")
		s.loaded = true
	}
	return s
}

// Get returns the current settings. A failed first load falls back to the
// defaults and is retried on the next call.
func (s *Store) Get(ctx context.Context) AppSettings {
	current, err := s.ensureLoaded(ctx)
	if err != nil {
		s.logger.Error("Failed to load settings, using defaults", slog.Any("error", err))
	}
	return current
}

func (s *Store) ensureLoaded(ctx context.Context) (AppSettings, error) {
	s.mu.RLock()
	if s.loaded {
		current := s.current
		s.mu.RUnlock()
		return current, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.current, nil
	}

	rows, err := s.sheets.GetAllRows(ctx, s.sheetID, s.rng)
	if err != nil {
		return Defaults(), fmt.Errorf("failed to read settings sheet: %w", err)
	}
	s.current = s.decode(rows)
	s.loaded = true
	s.logger.Info("Settings loaded", slog.Int("version", s.current.Version), slog.Int("rows", len(rows)))
	return s.current, nil
}

// Replace overwrites every setting with next and bumps the version. The
// in-memory copy only changes once the sheet write succeeded.
func (s *Store) Replace(ctx context.Context, next AppSettings) (AppSettings, error) {
	if err := Validate(next); err != nil {
		return AppSettings{}, err
	}
	if _, err := s.ensureLoaded(ctx); err != nil {
		return AppSettings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(ctx, next)
}

// ToggleApp flips AppEnabled.
func (s *Store) ToggleApp(ctx context.Context) (AppSettings, error) {
	if _, err := s.ensureLoaded(ctx); err != nil {
		return AppSettings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	next.FormFields = append([]FormField(nil), s.current.FormFields...)
	next.AppEnabled = !next.AppEnabled
	return s.replaceLocked(ctx, next)
}

func (s *Store) replaceLocked(ctx context.Context, next AppSettings) (AppSettings, error) {
	next.Version = s.current.Version + 1
	next.UpdatedAt = s.clock.Now(time.UTC)

	if s.sheetID != "" {
		rows, err := encode(next)
		if err != nil {
			return AppSettings{}, err
		}
		if err := s.sheets.ClearRange(ctx, s.sheetID, s.rng); err != nil {
			return AppSettings{}, fmt.Errorf("failed to clear settings sheet: %w", err)
		}
		if err := s.sheets.UpdateRange(ctx, s.sheetID, s.rng, rows); err != nil {
			return AppSettings{}, fmt.Errorf("failed to write settings sheet: %w", err)
		}
	}

	s.current = next
	s.logger.Info("Settings updated",
		slog.Int("version", next.Version),
		slog.Bool("app_enabled", next.AppEnabled))
	return next, nil
}

func encode(a AppSettings) ([][]string, error) {
	fields, err := json.Marshal(a.FormFields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form fields: %w", err)
	}
	return [][]string{
		{KeyAppEnabled, strconv.FormatBool(a.AppEnabled)},
		{KeyTicketOverlay, strconv.FormatBool(a.TicketOverlay)},
		{KeyGalleryLimit, strconv.Itoa(a.GalleryLimit)},
		{KeyFormTitle, a.FormTitle},
		{KeyFormFields, string(fields)},
		{KeyConfirmationEmail, strconv.FormatBool(a.ConfirmationEmail)},
		{KeyVersion, strconv.Itoa(a.Version)},
		{KeyUpdatedAt, localtime.FormatISO(a.UpdatedAt)},
	}, nil
}

// decode overlays sheet rows on the defaults. Unknown keys and unreadable
// values are skipped.
func (s *Store) decode(rows [][]string) AppSettings {
	out := Defaults()
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		key, value := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])

		var err error
		switch key {
		case KeyAppEnabled:
			out.AppEnabled, err = parseBool(value, out.AppEnabled)
		case KeyTicketOverlay:
			out.TicketOverlay, err = parseBool(value, out.TicketOverlay)
		case KeyConfirmationEmail:
			out.ConfirmationEmail, err = parseBool(value, out.ConfirmationEmail)
		case KeyGalleryLimit:
			out.GalleryLimit, err = parseInt(value, out.GalleryLimit)
		case KeyVersion:
			out.Version, err = parseInt(value, out.Version)
		case KeyFormTitle:
			out.FormTitle = value
		case KeyFormFields:
			var fields []FormField
			if err = json.Unmarshal([]byte(value), &fields); err == nil {
				out.FormFields = fields
			}
		case KeyUpdatedAt:
			if value != "" {
				var t time.Time
				if t, err = localtime.ParseInstant(value); err == nil {
					out.UpdatedAt = t
				}
			}
		}
		if err != nil {
			s.logger.Warn("Ignoring unreadable setting", slog.String("key", key), slog.Any("error", err))
		}
	}
	return out
}

func parseBool(v string, fallback bool) (bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, err
	}
	return b, nil
}

func parseInt(v string, fallback int) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, err
	}
	return n, nil
}
