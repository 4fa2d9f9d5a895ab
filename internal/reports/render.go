// Package reports renders the daily session report and dispatches it by mail.
package reports

import (
	"fmt"
	"strings"
	"time"

	"photokiosk/internal/eventlog"
	"photokiosk/internal/localtime"
)

const (
	title              = "Reporte diario de la sesión"
	noPrimeHourLine    = "Hora pico: no se pudo determinar"
	noNewsletterLine   = "Suscripciones al boletín: ninguna"
	newsletterListHead = "Suscripciones al boletín"
)

// Render formats stats for the kiosk-local day containing day. Sections
// always appear in the same order: header, counters, prime hour, newsletter
// opt-ins, total.
func Render(stats eventlog.DailyStats, day time.Time) string {
	var b strings.Builder

	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(localtime.FormatLongSpanishDate(day))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Visitas: %d\n", stats.Visits)
	fmt.Fprintf(&b, "Formularios: %d\n", stats.Forms)
	fmt.Fprintf(&b, "Fotos subidas: %d\n", stats.Uploads)
	b.WriteString("\n")

	b.WriteString(primeHourLine(stats.PrimeHour))
	b.WriteString("\n\n")

	if len(stats.NewsletterEmails) == 0 {
		b.WriteString(noNewsletterLine)
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "%s (%d):\n", newsletterListHead, len(stats.NewsletterEmails))
		for _, email := range stats.NewsletterEmails {
			fmt.Fprintf(&b, "- %s\n", email)
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Total de eventos: %d\n", stats.Total)
	return b.String()
}

func primeHourLine(p *eventlog.PrimeHour) string {
	if p == nil {
		return noPrimeHourLine
	}
	unit := "eventos"
	if p.Count == 1 {
		unit = "evento"
	}
	return fmt.Sprintf("Hora pico: %02d:00 - %02d:59 (%d %s)", p.Hour, p.Hour, p.Count, unit)
}

// Subject is the mail subject for the report of day.
func Subject(day time.Time) string {
	return "Reporte diario: " + localtime.FormatLongSpanishDate(day)
}
