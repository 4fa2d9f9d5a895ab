package reports

import (
	"fmt"
	"strings"
	"time"

	"photokiosk/internal/localtime"
	"photokiosk/internal/metrics"
)

const confirmationSubject = "¡Gracias por visitarnos!"

// RenderConfirmation builds the mail sent to a visitor after registering.
func RenderConfirmation(lastName string, at time.Time) (subject, body string) {
	greeting := "Hola"
	if name := strings.TrimSpace(lastName); name != "" {
		greeting = "Hola, " + name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n\n", greeting)
	b.WriteString("Recibimos tu registro en el kiosco de fotos.\n")
	fmt.Fprintf(&b, "Fecha: %s\n\n", localtime.FormatLongSpanishDate(at))
	b.WriteString("Tus fotos aparecerán en la galería una vez aprobadas.\n")
	return confirmationSubject, b.String()
}

// RecordMail counts one outgoing mail of kind.
func RecordMail(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.MailsTotal.WithLabelValues(kind, result).Inc()
}
