package tickets

import (
	"fmt"
	"time"

	"photokiosk/internal/localtime"
)

const filenameStampLayout = "02-01-06-15-04"

// Ticket is the naming metadata for one photo.
type Ticket struct {
	Number   int
	Label    string // T001
	Display  string // #001
	Filename string // T001-03-12-25-22-05-PR.jpeg
}

// Format names a photo after its ticket number and the kiosk time at which it is stored.
// Numbers above 999 keep all their digits.
func Format(n int, at time.Time) Ticket {
	label := fmt.Sprintf("T%03d", n)
	return Ticket{
		Number:   n,
		Label:    label,
		Display:  fmt.Sprintf("#%03d", n),
		Filename: fmt.Sprintf("%s-%s-PR.jpeg", label, localtime.ToLocal(at).Format(filenameStampLayout)),
	}
}
