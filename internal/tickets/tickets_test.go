package tickets_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photokiosk/internal/localtime"
	"photokiosk/internal/testsupport"
	"photokiosk/internal/tickets"
)

const (
	pendingID  = "pending"
	approvedID = "approved"
)

func newAllocator(files *testsupport.MemoryFiles, pageSize int) *tickets.Allocator {
	return tickets.NewAllocator(files, pendingID, approvedID, pageSize, testsupport.GetLogger())
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   int
		wantOK bool
	}{
		{"current pattern", "T001-03-12-25-22-05-PR.jpeg", 1, true},
		{"current pattern above 999", "T1234-03-12-25-22-05-PR.jpeg", 1234, true},
		{"current pattern keeps leading zeros value", "T042-01-01-25-10-00-PR.jpeg", 42, true},
		{"legacy pattern", "07_03_12_25-22_05_31.jpeg", 7, true},
		{"legacy pattern three digits", "112_03_12_25-22_05_31.jpeg", 112, true},
		{"current needs three digits", "T01-03-12-25-22-05-PR.jpeg", 0, false},
		{"legacy needs two digits", "7_03_12_25-22_05_31.jpeg", 0, false},
		{"unrelated file", "IMG_2231.jpeg", 0, false},
		{"number not at start", "photo-T001-03.jpeg", 0, false},
		{"empty", "", 0, false},
		{"overflowing number", "T99999999999999999999999-01-PR.jpeg", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tickets.ParseIndex(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	at := time.Date(2025, 12, 3, 2, 5, 31, 0, time.UTC) // 22:05 on the 2nd, kiosk time

	t.Run("pads to three digits", func(t *testing.T) {
		ticket := tickets.Format(1, at)
		assert.Equal(t, "T001", ticket.Label)
		assert.Equal(t, "#001", ticket.Display)
		assert.Equal(t, "T001-02-12-25-22-05-PR.jpeg", ticket.Filename)
	})

	t.Run("does not truncate large numbers", func(t *testing.T) {
		ticket := tickets.Format(1234, at)
		assert.Equal(t, "T1234", ticket.Label)
		assert.Equal(t, "#1234", ticket.Display)
		assert.Equal(t, "T1234-02-12-25-22-05-PR.jpeg", ticket.Filename)
	})

	t.Run("formatted names parse back", func(t *testing.T) {
		for _, n := range []int{1, 99, 100, 999, 1000, 54321} {
			got, ok := tickets.ParseIndex(tickets.Format(n, at).Filename)
			require.True(t, ok)
			assert.Equal(t, n, got)
		}
	})

	t.Run("uses kiosk time for local input too", func(t *testing.T) {
		local := time.Date(2025, 12, 2, 22, 5, 0, 0, localtime.Zone)
		assert.Equal(t, tickets.Format(5, at).Filename, tickets.Format(5, local).Filename)
	})
}

func TestAllocatorNextIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("empty folders start at one", func(t *testing.T) {
		files := testsupport.NewMemoryFiles()
		n, err := newAllocator(files, 10).NextIndex(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("takes the max across all partitions", func(t *testing.T) {
		files := testsupport.NewMemoryFiles()
		files.Seed(pendingID, "T003-01-12-25-10-00-PR.jpeg", false)
		files.Seed(pendingID, "T009-01-12-25-10-05-PR.jpeg", true)
		files.Seed(approvedID, "T005-01-12-25-10-01-PR.jpeg", false)
		files.Seed(approvedID, "12_01_12_25-09_00_00.jpeg", true)

		n, err := newAllocator(files, 10).NextIndex(ctx)
		require.NoError(t, err)
		assert.Equal(t, 13, n)
	})

	t.Run("trashed in both folders still burns the number", func(t *testing.T) {
		files := testsupport.NewMemoryFiles()
		files.Seed(pendingID, "T001-01-12-25-10-00-PR.jpeg", false)
		files.Seed(pendingID, "T002-01-12-25-10-00-PR.jpeg", true)
		files.Seed(approvedID, "T002-01-12-25-10-00-PR.jpeg", true)

		n, err := newAllocator(files, 10).NextIndex(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("skips malformed names", func(t *testing.T) {
		files := testsupport.NewMemoryFiles()
		files.Seed(pendingID, "notes.txt", false)
		files.Seed(pendingID, "T7-bad.jpeg", false)
		files.Seed(approvedID, "T004-01-12-25-10-00-PR.jpeg", false)

		n, err := newAllocator(files, 10).NextIndex(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("follows continuation tokens", func(t *testing.T) {
		files := testsupport.NewMemoryFiles()
		for i := 1; i <= 25; i++ {
			files.Seed(pendingID, fmt.Sprintf("T%03d-01-12-25-10-00-PR.jpeg", i), false)
		}

		n, err := newAllocator(files, 4).NextIndex(ctx)
		require.NoError(t, err)
		assert.Equal(t, 26, n)
		assert.GreaterOrEqual(t, files.ListCalls(), 7, "25 items at 4 per page need 7 pages")
	})

	t.Run("any listing failure is fatal", func(t *testing.T) {
		files := testsupport.NewMemoryFiles()
		files.Seed(pendingID, "T003-01-12-25-10-00-PR.jpeg", false)
		boom := errors.New("listing unavailable")
		files.FailList(approvedID, true, boom)

		_, err := newAllocator(files, 10).NextIndex(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("sequential uploads are strictly increasing", func(t *testing.T) {
		files := testsupport.NewMemoryFiles()
		alloc := newAllocator(files, 3)
		at := time.Date(2025, 12, 3, 14, 0, 0, 0, time.UTC)

		var issued []int
		for i := 0; i < 10; i++ {
			n, err := alloc.NextIndex(ctx)
			require.NoError(t, err)
			issued = append(issued, n)
			files.Seed(pendingID, tickets.Format(n, at).Filename, false)
		}

		for i, n := range issued {
			assert.Equal(t, i+1, n)
		}
	})
}
