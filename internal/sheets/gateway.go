// Package sheets is the spreadsheet-shaped row store behind the event log and settings.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Gateway is the contract the kiosk needs from a spreadsheet service.
type Gateway interface {
	AppendRow(ctx context.Context, sheetID, rng string, row []string) error
	// GetAllRows returns every row of the range's tab in insertion order.
	GetAllRows(ctx context.Context, sheetID, rng string) ([][]string, error)
	// UpdateRange overwrites rows starting at the range's first row.
	UpdateRange(ctx context.Context, sheetID, rng string, rows [][]string) error
	ClearRange(ctx context.Context, sheetID, rng string) error
}

// Range is a parsed A1 range such as "Log!A:J" or "Settings!A2:B".
type Range struct {
	Tab      string
	FirstRow int // 1-based
	LastRow  int // 0 means open ended
}

// ParseRange reads a tab name and optional row bounds. Column letters are accepted but not enforced.
func ParseRange(rng string) (Range, error) {
	tab, cells, found := strings.Cut(rng, "!")
	if !found {
		tab, cells = rng, ""
	}
	tab = strings.Trim(strings.TrimSpace(tab), "'")
	if tab == "" {
		return Range{}, fmt.Errorf("range %q has no tab name", rng)
	}

	r := Range{Tab: tab, FirstRow: 1}
	if cells == "" {
		return r, nil
	}

	from, to, _ := strings.Cut(cells, ":")
	first, err := rowOf(from)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", rng, err)
	}
	if first > 0 {
		r.FirstRow = first
	}
	if to != "" {
		last, err := rowOf(to)
		if err != nil {
			return Range{}, fmt.Errorf("range %q: %w", rng, err)
		}
		if last > 0 && last < r.FirstRow {
			return Range{}, fmt.Errorf("range %q ends before it starts", rng)
		}
		r.LastRow = last
	}
	return r, nil
}

// rowOf returns the row number of a cell reference like "B12", or 0 for a bare column.
func rowOf(ref string) (int, error) {
	i := strings.IndexFunc(ref, func(c rune) bool { return c >= '0' && c <= '9' })
	if i < 0 {
		return 0, nil
	}
	for _, c := range ref[:i] {
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return 0, fmt.Errorf("invalid cell reference %q", ref)
		}
	}
	n, err := strconv.Atoi(ref[i:])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid row in %q", ref)
	}
	return n, nil
}

// Contains reports whether a 1-based row number falls inside the range.
func (r Range) Contains(row int) bool {
	return row >= r.FirstRow && (r.LastRow == 0 || row <= r.LastRow)
}
