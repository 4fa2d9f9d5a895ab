package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photokiosk/internal/reports"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeReports struct {
	triggers []string
	err      error
}

func (f *fakeReports) Send(ctx context.Context, trigger string) (reports.Report, bool, error) {
	f.triggers = append(f.triggers, trigger)
	if f.err != nil {
		return reports.Report{}, false, f.err
	}
	return reports.Report{Subject: "Reporte diario"}, true, nil
}

type fakeSweeper struct {
	removed int
	err     error
	calls   int
}

func (f *fakeSweeper) SweepOrphans(ctx context.Context) (int, error) {
	f.calls++
	return f.removed, f.err
}

func TestDailyReportJob(t *testing.T) {
	t.Run("sends with the schedule trigger", func(t *testing.T) {
		r := &fakeReports{}
		job := NewDailyReportJob(r, quietLogger())
		require.NoError(t, job.Run(context.Background()))
		assert.Equal(t, []string{reports.TriggerSchedule}, r.triggers)
	})

	t.Run("propagates send errors", func(t *testing.T) {
		r := &fakeReports{err: errors.New("sheet down")}
		job := NewDailyReportJob(r, quietLogger())
		assert.Error(t, job.Run(context.Background()))
	})
}

func TestCleanupJob(t *testing.T) {
	s := &fakeSweeper{removed: 3}
	require.NoError(t, NewCleanupJob(s, quietLogger()).Run(context.Background()))
	assert.Equal(t, 1, s.calls)

	s = &fakeSweeper{err: errors.New("disk gone")}
	assert.Error(t, NewCleanupJob(s, quietLogger()).Run(context.Background()))
}

func TestScheduler(t *testing.T) {
	t.Run("rejects invalid specs", func(t *testing.T) {
		_, err := NewScheduler([]Entry{{Spec: "every day at noon", Job: NewCleanupJob(&fakeSweeper{}, quietLogger())}}, quietLogger())
		assert.Error(t, err)
	})

	t.Run("start and stop are idempotent", func(t *testing.T) {
		s, err := NewScheduler([]Entry{
			{Spec: "0 23 * * *", Job: NewDailyReportJob(&fakeReports{}, quietLogger())},
			{Spec: "@daily", Job: NewCleanupJob(&fakeSweeper{}, quietLogger())},
		}, quietLogger())
		require.NoError(t, err)

		require.NoError(t, s.Start())
		require.NoError(t, s.Start())
		assert.True(t, s.IsRunning())

		s.Stop()
		s.Stop()
		assert.False(t, s.IsRunning())
	})

	t.Run("execute swallows job errors", func(t *testing.T) {
		s, err := NewScheduler(nil, quietLogger())
		require.NoError(t, err)
		sweeper := &fakeSweeper{err: errors.New("boom")}
		s.execute(NewCleanupJob(sweeper, quietLogger()))
		assert.Equal(t, 1, sweeper.calls)
	})
}
