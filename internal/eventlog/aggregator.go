package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"photokiosk/internal/localtime"
	"photokiosk/internal/sheets"
)

// PrimeHour is the kiosk-local hour of day with the most events.
type PrimeHour struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// DailyStats summarises one kiosk-local day of the log.
type DailyStats struct {
	Visits           int        `json:"visits"`
	Forms            int        `json:"forms"`
	Uploads          int        `json:"uploads"`
	PrimeHour        *PrimeHour `json:"primeHour"`
	NewsletterEmails []string   `json:"newsletterEmails"`
	// Total counts every in-window row, including rows with an unknown type.
	Total int `json:"total"`
}

// Aggregator reads the whole log and derives statistics from it.
type Aggregator struct {
	sheets  sheets.Gateway
	sheetID string
	rng     string
	clock   localtime.TimeProvider
	logger  *slog.Logger
}

func NewAggregator(g sheets.Gateway, sheetID, rng string, clock localtime.TimeProvider, logger *slog.Logger) *Aggregator {
	if clock == nil {
		clock = &localtime.DefaultTimeProvider{}
	}
	return &Aggregator{sheets: g, sheetID: sheetID, rng: rng, clock: clock, logger: logger}
}

// Today returns the current kiosk-local day.
func (a *Aggregator) Today() time.Time {
	return localtime.LocalNow(a.clock)
}

// TodayStats aggregates the current kiosk-local day.
func (a *Aggregator) TodayStats(ctx context.Context) (DailyStats, error) {
	return a.StatsFor(ctx, a.Today())
}

// StatsFor aggregates the kiosk-local calendar day containing day.
func (a *Aggregator) StatsFor(ctx context.Context, day time.Time) (DailyStats, error) {
	if a.sheetID == "" {
		a.logger.Warn("Event log sheet not configured, returning empty stats")
		return DailyStats{NewsletterEmails: []string{}}, nil
	}

	rows, err := a.sheets.GetAllRows(ctx, a.sheetID, a.rng)
	if err != nil {
		return DailyStats{}, fmt.Errorf("failed to read event log: %w", err)
	}

	start, end := localtime.DayWindowUTC(day)
	stats := Aggregate(rows, start, end)
	a.logger.Debug("Aggregated event log",
		slog.Int("rows", len(rows)),
		slog.Int("in_window", stats.Total),
		slog.Time("start_utc", start),
		slog.Time("end_utc", end))
	return stats, nil
}

// Aggregate tallies the rows whose UTC timestamp falls in [start, end].
// Header rows switch the layout used for the rows that follow them. Rows with
// an unparsable timestamp are skipped.
func Aggregate(rows [][]string, start, end time.Time) DailyStats {
	stats := DailyStats{NewsletterEmails: []string{}}
	seenEmail := make(map[string]struct{})
	var stamps []time.Time

	hint := SchemaUnknown
	for _, cells := range rows {
		if v := HeaderVersion(cells); v != SchemaUnknown {
			hint = v
			continue
		}

		row := DecodeRow(cells, hint)
		at, err := localtime.ParseInstant(row.TimestampUTC)
		if err != nil || at.Before(start) || at.After(end) {
			continue
		}

		stats.Total++
		stamps = append(stamps, at)

		if t, ok := ParseEventType(row.EventType); ok {
			switch t {
			case EventVisit:
				stats.Visits++
			case EventForm:
				stats.Forms++
			case EventUpload:
				stats.Uploads++
			}
		}

		// Exact match only: differently cased addresses are kept apart.
		if row.Newsletter == "Y" && row.Email != "" {
			if _, dup := seenEmail[row.Email]; !dup {
				seenEmail[row.Email] = struct{}{}
				stats.NewsletterEmails = append(stats.NewsletterEmails, row.Email)
			}
		}
	}

	stats.PrimeHour = primeHour(stamps)
	return stats
}

// primeHour buckets by kiosk-local hour. The strictly largest bucket wins and
// ties go to the hour seen first.
func primeHour(stamps []time.Time) *PrimeHour {
	if len(stamps) == 0 {
		return nil
	}

	var counts [24]int
	order := make([]int, 0, 24)
	for _, at := range stamps {
		h := localtime.ToLocal(at).Hour()
		if counts[h] == 0 {
			order = append(order, h)
		}
		counts[h]++
	}

	best := &PrimeHour{Hour: order[0], Count: counts[order[0]]}
	for _, h := range order[1:] {
		if counts[h] > best.Count {
			best = &PrimeHour{Hour: h, Count: counts[h]}
		}
	}
	return best
}
