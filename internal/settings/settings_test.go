package settings_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photokiosk/internal/localtime"
	"photokiosk/internal/settings"
	"photokiosk/internal/testsupport"
)

const (
	sheetID        = "settings"
	settingsRange  = "Settings!A:B"
	templatesRange = "Templates!A:D"
)

var clock = &localtime.FixedTimeProvider{At: time.Date(2025, 12, 3, 15, 0, 0, 0, time.UTC)}

func newStore(g *testsupport.MemorySheets) *settings.Store {
	return settings.NewStore(g, sheetID, settingsRange, clock, testsupport.GetLogger())
}

func TestStoreHydration(t *testing.T) {
	ctx := context.Background()

	t.Run("empty sheet yields defaults", func(t *testing.T) {
		store := newStore(testsupport.NewMemorySheets())
		assert.Equal(t, settings.Defaults(), store.Get(ctx))
	})

	t.Run("sheet values overlay defaults", func(t *testing.T) {
		g := testsupport.NewMemorySheets()
		g.SetRows(sheetID, settingsRange, [][]string{
			{"app_enabled", "false"},
			{"gallery_limit", "12"},
			{"form_title", "Bienvenidos"},
			{"version", "4"},
			{"form_fields", `[{"name":"email","label":"Email","enabled":true,"required":true}]`},
			{"unknown_key", "whatever"},
			{"ticket_overlay", "not-a-bool"},
			{"lonely"},
		})
		store := newStore(g)

		got := store.Get(ctx)
		assert.False(t, got.AppEnabled)
		assert.Equal(t, 12, got.GalleryLimit)
		assert.Equal(t, "Bienvenidos", got.FormTitle)
		assert.Equal(t, 4, got.Version)
		assert.True(t, got.TicketOverlay, "unreadable values keep the default")
		require.Len(t, got.FormFields, 1)
		assert.True(t, got.FieldEnabled("email"))
		assert.False(t, got.FieldEnabled("lastName"))
	})

	t.Run("hydrates only once", func(t *testing.T) {
		g := testsupport.NewMemorySheets()
		g.SetRows(sheetID, settingsRange, [][]string{{"gallery_limit", "5"}})
		store := newStore(g)

		assert.Equal(t, 5, store.Get(ctx).GalleryLimit)
		g.SetRows(sheetID, settingsRange, [][]string{{"gallery_limit", "99"}})
		assert.Equal(t, 5, store.Get(ctx).GalleryLimit)
	})

	t.Run("failed load falls back and retries", func(t *testing.T) {
		g := testsupport.NewMemorySheets()
		g.SetRows(sheetID, settingsRange, [][]string{{"gallery_limit", "7"}})
		g.FailRead(errors.New("sheet down"))
		store := newStore(g)

		assert.Equal(t, settings.Defaults().GalleryLimit, store.Get(ctx).GalleryLimit)

		g.FailRead(nil)
		assert.Equal(t, 7, store.Get(ctx).GalleryLimit)
	})
}

func TestStoreReplace(t *testing.T) {
	ctx := context.Background()

	t.Run("overwrites wholesale and bumps the version", func(t *testing.T) {
		g := testsupport.NewMemorySheets()
		g.SetRows(sheetID, settingsRange, [][]string{{"version", "2"}, {"form_title", "Viejo"}})
		store := newStore(g)

		next := settings.Defaults()
		next.GalleryLimit = 24
		saved, err := store.Replace(ctx, next)
		require.NoError(t, err)
		assert.Equal(t, 3, saved.Version)
		assert.Equal(t, clock.At, saved.UpdatedAt)
		assert.Equal(t, settings.Defaults().FormTitle, saved.FormTitle)

		reloaded := newStore(g).Get(ctx)
		assert.Equal(t, 3, reloaded.Version)
		assert.Equal(t, 24, reloaded.GalleryLimit)
		assert.Equal(t, saved.FormFields, reloaded.FormFields)
		assert.True(t, reloaded.UpdatedAt.Equal(clock.At))
	})

	t.Run("rejects invalid settings", func(t *testing.T) {
		store := newStore(testsupport.NewMemorySheets())

		bad := settings.Defaults()
		bad.GalleryLimit = -1
		_, err := store.Replace(ctx, bad)
		assert.ErrorIs(t, err, settings.ErrInvalidSettings)

		dup := settings.Defaults()
		dup.FormFields = append(dup.FormFields, settings.FormField{Name: "email"})
		_, err = store.Replace(ctx, dup)
		assert.ErrorIs(t, err, settings.ErrInvalidSettings)

		assert.Equal(t, 0, store.Get(ctx).Version)
	})

	t.Run("toggle flips the app switch", func(t *testing.T) {
		store := newStore(testsupport.NewMemorySheets())

		off, err := store.ToggleApp(ctx)
		require.NoError(t, err)
		assert.False(t, off.AppEnabled)
		assert.Equal(t, 1, off.Version)

		on, err := store.ToggleApp(ctx)
		require.NoError(t, err)
		assert.True(t, on.AppEnabled)
		assert.Equal(t, 2, on.Version)
	})

	t.Run("without a sheet settings stay in memory", func(t *testing.T) {
		g := testsupport.NewMemorySheets()
		store := settings.NewStore(g, "", settingsRange, clock, testsupport.GetLogger())

		_, err := store.ToggleApp(ctx)
		require.NoError(t, err)
		assert.False(t, store.Get(ctx).AppEnabled)
		assert.Empty(t, g.Rows("", settingsRange))
	})
}

func TestTemplates(t *testing.T) {
	ctx := context.Background()

	t.Run("save, list and delete", func(t *testing.T) {
		g := testsupport.NewMemorySheets()
		tpl := settings.NewTemplates(g, sheetID, templatesRange, testsupport.GetLogger())

		saved, err := tpl.Save(ctx, settings.Template{Name: " Boda ", Overlay: "overlays/boda.png", Active: true})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "Boda", saved.Name)

		saved.Active = false
		_, err = tpl.Save(ctx, saved)
		require.NoError(t, err)

		list, err := tpl.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.False(t, list[0].Active)

		require.NoError(t, tpl.Delete(ctx, saved.ID))
		list, err = tpl.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		assert.ErrorIs(t, tpl.Delete(ctx, saved.ID), settings.ErrTemplateNotFound)
	})

	t.Run("rejects templates without an overlay", func(t *testing.T) {
		tpl := settings.NewTemplates(testsupport.NewMemorySheets(), sheetID, templatesRange, testsupport.GetLogger())
		_, err := tpl.Save(ctx, settings.Template{Name: "Sin marco"})
		assert.ErrorIs(t, err, settings.ErrInvalidSettings)
	})

	t.Run("seed only fills an empty list", func(t *testing.T) {
		g := testsupport.NewMemorySheets()
		tpl := settings.NewTemplates(g, sheetID, templatesRange, testsupport.GetLogger())
		catalog, err := settings.LoadCatalog("")
		require.NoError(t, err)
		require.NotEmpty(t, catalog)

		n, err := tpl.Seed(ctx, catalog)
		require.NoError(t, err)
		assert.Equal(t, len(catalog), n)

		n, err = tpl.Seed(ctx, catalog)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		list, err := tpl.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, catalog, list)
	})

	t.Run("in-memory templates without a sheet", func(t *testing.T) {
		tpl := settings.NewTemplates(testsupport.NewMemorySheets(), "", templatesRange, testsupport.GetLogger())
		_, err := tpl.Save(ctx, settings.Template{Name: "A", Overlay: "a.png"})
		require.NoError(t, err)

		list, err := tpl.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Run("reads a catalog file and fills missing ids", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("templates:\n  - name: Fiesta\n    overlay: fiesta.png\n    active: true\n"), 0o644))

		catalog, err := settings.LoadCatalog(path)
		require.NoError(t, err)
		require.Len(t, catalog, 1)
		assert.Equal(t, "Fiesta", catalog[0].Name)
		assert.NotEmpty(t, catalog[0].ID)
	})

	t.Run("rejects invalid entries", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("templates:\n  - name: Fiesta\n"), 0o644))

		_, err := settings.LoadCatalog(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := settings.LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
