package uploads_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photokiosk/internal/localtime"
	"photokiosk/internal/storage"
	"photokiosk/internal/testsupport"
	"photokiosk/internal/tickets"
	"photokiosk/internal/uploads"
)

const (
	pendingID  = "pending-folder"
	approvedID = "approved-folder"
)

var clock = &localtime.FixedTimeProvider{At: time.Date(2025, 12, 3, 2, 5, 31, 0, time.UTC)}

type fixture struct {
	files    *testsupport.MemoryFiles
	uploads  *uploads.Orchestrator
	reviewer *uploads.Reviewer
}

func newFixture(t *testing.T, opts uploads.Options) fixture {
	t.Helper()
	logger := testsupport.GetLogger()
	files := testsupport.NewMemoryFiles()
	alloc := tickets.NewAllocator(files, pendingID, approvedID, 2, logger)
	opts.PendingFolderID = pendingID
	return fixture{
		files:    files,
		uploads:  uploads.NewOrchestrator(files, alloc, opts, clock, logger),
		reviewer: uploads.NewReviewer(files, pendingID, approvedID, 2, logger),
	}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("first upload gets ticket one", func(t *testing.T) {
		f := newFixture(t, uploads.Options{MaxBytes: 1024})

		res, err := f.uploads.Upload(ctx, []byte("jpeg"), "image/jpeg")
		require.NoError(t, err)
		assert.Equal(t, 1, res.TicketNumber)
		assert.Equal(t, "T001", res.TicketLabel)
		assert.Equal(t, "#001", res.TicketDisplay)
		assert.Equal(t, "T001-02-12-25-22-05-PR.jpeg", res.Filename)
		assert.NotEmpty(t, res.FileID)

		items := f.files.Items()
		require.Len(t, items, 1)
		assert.Equal(t, pendingID, items[0].ParentID)
		assert.Equal(t, res.Filename, items[0].Name)
		assert.Equal(t, "image/jpeg", items[0].MimeType)
	})

	t.Run("tickets increase across uploads and folders", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})

		first, err := f.uploads.Upload(ctx, []byte("a"), "image/jpeg")
		require.NoError(t, err)
		require.NoError(t, f.reviewer.Approve(ctx, first.FileID))

		var got []int
		for i := 0; i < 4; i++ {
			res, err := f.uploads.Upload(ctx, []byte("b"), "image/png")
			require.NoError(t, err)
			got = append(got, res.TicketNumber)
		}
		assert.Equal(t, []int{2, 3, 4, 5}, got)
	})

	t.Run("rejected photos burn their ticket", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})

		first, err := f.uploads.Upload(ctx, []byte("a"), "image/jpeg")
		require.NoError(t, err)
		require.NoError(t, f.reviewer.Reject(ctx, first.FileID))

		next, err := f.uploads.Upload(ctx, []byte("b"), "image/jpeg")
		require.NoError(t, err)
		assert.Equal(t, 2, next.TicketNumber)
	})

	t.Run("failed store does not burn the ticket", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})
		boom := errors.New("store unavailable")
		f.files.FailCreate(boom)

		_, err := f.uploads.Upload(ctx, []byte("a"), "image/jpeg")
		assert.ErrorIs(t, err, boom)

		f.files.FailCreate(nil)
		res, err := f.uploads.Upload(ctx, []byte("a"), "image/jpeg")
		require.NoError(t, err)
		assert.Equal(t, 1, res.TicketNumber)
	})

	t.Run("allocation failure stores nothing", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})
		boom := errors.New("listing failed")
		f.files.FailList(approvedID, true, boom)

		_, err := f.uploads.Upload(ctx, []byte("a"), "image/jpeg")
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, f.files.Items())
	})

	t.Run("media type parameters are stripped", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})

		_, err := f.uploads.Upload(ctx, []byte("a"), "image/jpeg; charset=binary")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", f.files.Items()[0].MimeType)
	})

	t.Run("serialized concurrent uploads never share a ticket", func(t *testing.T) {
		f := newFixture(t, uploads.Options{Serialize: true})

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = map[int]bool{}
		)
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := f.uploads.Upload(ctx, []byte("x"), "image/jpeg")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				assert.False(t, seen[res.TicketNumber], "ticket %d issued twice", res.TicketNumber)
				seen[res.TicketNumber] = true
			}()
		}
		wg.Wait()
		assert.Len(t, seen, 12)
	})
}

func TestUploadValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		data        []byte
		contentType string
		want        error
	}{
		{"empty body", nil, "image/jpeg", uploads.ErrEmptyBody},
		{"not an image", []byte("x"), "text/plain", uploads.ErrUnsupportedType},
		{"missing content type", []byte("x"), "", uploads.ErrUnsupportedType},
		{"too large", bytes.Repeat([]byte("x"), 11), "image/jpeg", uploads.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, uploads.Options{MaxBytes: 10})

			_, err := f.uploads.Upload(ctx, tt.data, tt.contentType)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, f.files.ListCalls(), "invalid uploads never allocate")
			assert.Empty(t, f.files.Items())
		})
	}
}

func TestReviewer(t *testing.T) {
	ctx := context.Background()

	t.Run("lists active photos newest first", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})
		a := f.files.Seed(pendingID, "T001-a.jpeg", false)
		b := f.files.Seed(pendingID, "T002-b.jpeg", false)
		f.files.Seed(pendingID, "T003-c.jpeg", true)
		c := f.files.Seed(pendingID, "T004-d.jpeg", false)

		items, err := f.reviewer.List(ctx, uploads.FolderPending)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{items[0].ID, items[1].ID, items[2].ID})
	})

	t.Run("unknown folder", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})
		_, err := f.reviewer.List(ctx, "trash")
		assert.ErrorIs(t, err, uploads.ErrUnknownFolder)
	})

	t.Run("approve moves pending to approved once", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})
		item := f.files.Seed(pendingID, "T001-a.jpeg", false)

		require.NoError(t, f.reviewer.Approve(ctx, item.ID))
		approved, err := f.reviewer.List(ctx, uploads.FolderApproved)
		require.NoError(t, err)
		require.Len(t, approved, 1)

		assert.ErrorIs(t, f.reviewer.Approve(ctx, item.ID), storage.ErrWrongParent)
		assert.ErrorIs(t, f.reviewer.Approve(ctx, "missing"), storage.ErrNotFound)
	})

	t.Run("gallery honours the limit", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})
		for i := 0; i < 5; i++ {
			f.files.Seed(approvedID, "photo.jpeg", false)
		}

		limited, err := f.reviewer.Gallery(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, limited, 3)

		all, err := f.reviewer.Gallery(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("public open only serves approved photos", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})
		pending := f.files.Seed(pendingID, "T001-a.jpeg", false)
		approved, err := f.files.Create(ctx, approvedID, "T002-b.jpeg", "image/jpeg", []byte("bytes"))
		require.NoError(t, err)
		trashed := f.files.Seed(approvedID, "T003-c.jpeg", true)

		_, _, err = f.reviewer.OpenApproved(ctx, pending.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, _, err = f.reviewer.OpenApproved(ctx, trashed.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		rc, item, err := f.reviewer.OpenApproved(ctx, approved.ID)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "bytes", string(data))
		assert.Equal(t, "image/jpeg", item.MimeType)
	})

	t.Run("thumbnail scales down to the requested width", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})
		item, err := f.files.Create(ctx, pendingID, "T001-a.jpeg", "image/jpeg", jpegBytes(t, 800, 600))
		require.NoError(t, err)

		thumb, err := f.reviewer.Thumbnail(ctx, item.ID, 200)
		require.NoError(t, err)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 200, cfg.Width)
		assert.Equal(t, 150, cfg.Height)
	})

	t.Run("thumbnail never upscales", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})
		item, err := f.files.Create(ctx, pendingID, "T001-a.jpeg", "image/jpeg", jpegBytes(t, 100, 50))
		require.NoError(t, err)

		thumb, err := f.reviewer.Thumbnail(ctx, item.ID, 400)
		require.NoError(t, err)
		cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.Width)
	})

	t.Run("thumbnail of a non image fails", func(t *testing.T) {
		f := newFixture(t, uploads.Options{})
		item, err := f.files.Create(ctx, pendingID, "T001-a.jpeg", "image/jpeg", []byte("not an image"))
		require.NoError(t, err)

		_, err = f.reviewer.Thumbnail(ctx, item.ID, 100)
		assert.Error(t, err)
	})
}

func TestClampThumbWidth(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, uploads.DefaultThumbWidth},
		{-5, uploads.DefaultThumbWidth},
		{10, 32},
		{500, 500},
		{10000, 1600},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, uploads.ClampThumbWidth(tt.in), "width %d", tt.in)
	}
}
