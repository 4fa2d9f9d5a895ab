// Package localtime converts instants to the kiosk's civil time and formats them.
//
// The kiosk runs at a fixed UTC-4 offset with no daylight saving adjustment.
package localtime

import (
	"fmt"
	"time"
)

// Offset is the kiosk's fixed offset from UTC.
const Offset = -4 * time.Hour

// Zone is the fixed kiosk time zone.
var Zone = time.FixedZone("PR", int(Offset/time.Second))

const (
	shortLayout = "02/01/2006 15:04:05"
	isoLayout   = "2006-01-02T15:04:05.000Z07:00"
)

// Sunday-indexed, matching time.Weekday
var weekdays = [...]string{
	"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado",
}

var months = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns the same instant, for tests and previews.
type FixedTimeProvider struct {
	At time.Time
}

func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.At.In(loc)
}

// LocalNow returns the current kiosk time.
func LocalNow(p TimeProvider) time.Time {
	if p == nil {
		p = &DefaultTimeProvider{}
	}
	return p.Now(Zone)
}

// ToLocal converts an instant to kiosk time. The instant itself is unchanged.
func ToLocal(t time.Time) time.Time {
	return t.In(Zone)
}

// FormatShort renders t as DD/MM/YYYY HH:MM:SS in kiosk time.
func FormatShort(t time.Time) string {
	return ToLocal(t).Format(shortLayout)
}

// FormatISO renders t as a millisecond precision UTC instant, e.g. 2025-12-03T02:05:31.000Z.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// FormatLongSpanishDate renders t as "<Weekday> <Day> de <Month> de <Year>" in kiosk time.
func FormatLongSpanishDate(t time.Time) string {
	l := ToLocal(t)
	return fmt.Sprintf("%s %d de %s de %d", weekdays[l.Weekday()], l.Day(), months[l.Month()-1], l.Year())
}

// DayWindowUTC returns the first and last millisecond of t's kiosk calendar day, in UTC.
func DayWindowUTC(t time.Time) (time.Time, time.Time) {
	l := ToLocal(t)
	start := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, Zone)
	end := start.Add(24*time.Hour - time.Millisecond)
	return start.UTC(), end.UTC()
}

// ParseInstant accepts the timestamp shapes the booth app and the log use.
func ParseInstant(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, isoLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
