// Package eventlog appends kiosk events to a spreadsheet-shaped log and
// derives daily statistics from it.
//
// Rows are never updated in place. Two row layouts exist in older sheets:
// a six column form that carries most fields in a JSON metadata cell, and the
// current ten column form. Writers always produce the ten column form; readers
// accept both.
package eventlog

import (
	"encoding/json"
	"strings"
)

type EventType string

const (
	EventVisit  EventType = "visit"
	EventForm   EventType = "form"
	EventUpload EventType = "upload"
)

func ParseEventType(s string) (EventType, bool) {
	switch t := EventType(strings.ToLower(strings.TrimSpace(s))); t {
	case EventVisit, EventForm, EventUpload:
		return t, true
	default:
		return "", false
	}
}

type SchemaVersion int

const (
	SchemaUnknown SchemaVersion = iota
	SchemaV1
	SchemaV2
)

// HeaderV2 is the header of the current ten column layout.
var HeaderV2 = []string{
	"timestamp_utc", "timestamp_pr", "event_type", "email", "session_id",
	"country", "region", "last_name", "newsletter", "ticket",
}

// HeaderV1 is the header of the legacy six column layout.
var HeaderV1 = []string{
	"timestamp_utc", "timestamp_pr", "event_type", "email", "session_id", "metadata_json",
}

const (
	colTimestampUTC = iota
	colTimestampPR
	colEventType
	colEmail
	colSessionID
	colCountry
	colRegion
	colLastName
	colNewsletter
	colTicket
)

// Row is one event in the log, whatever layout it was read from.
type Row struct {
	TimestampUTC string
	TimestampPR  string
	EventType    string
	Email        string
	SessionID    string
	Country      string
	Region       string
	LastName     string
	Newsletter   string
	Ticket       string
}

// Cells renders the row in the ten column layout.
func (r Row) Cells() []string {
	return []string{
		r.TimestampUTC, r.TimestampPR, r.EventType, r.Email, r.SessionID,
		r.Country, r.Region, r.LastName, r.Newsletter, r.Ticket,
	}
}

// HeaderVersion reports which layout a header row announces, or SchemaUnknown
// when cells is not a header. Any six column header whose last cell starts
// with "metadata" is the legacy layout.
func HeaderVersion(cells []string) SchemaVersion {
	if len(cells) == 0 || !strings.EqualFold(strings.TrimSpace(cells[0]), HeaderV2[0]) {
		return SchemaUnknown
	}
	last := strings.ToLower(strings.TrimSpace(cells[len(cells)-1]))
	if len(cells) == len(HeaderV1) && strings.HasPrefix(last, "metadata") {
		return SchemaV1
	}
	return SchemaV2
}

// DecodeRow maps cells to a Row. The width decides the layout: seven or more
// cells are the current layout, six cells ending in a JSON object are legacy.
// hint, from the last header seen, only settles a six cell row with an empty
// last cell.
func DecodeRow(cells []string, hint SchemaVersion) Row {
	if rowVersion(cells, hint) == SchemaV1 {
		return decodeV1(cells)
	}
	return decodeV2(cells)
}

func rowVersion(cells []string, hint SchemaVersion) SchemaVersion {
	if len(cells) != len(HeaderV1) {
		return SchemaV2
	}
	last := strings.TrimSpace(cells[len(cells)-1])
	switch {
	case strings.HasPrefix(last, "{"):
		return SchemaV1
	case last != "":
		return SchemaV2
	case hint == SchemaV2:
		return SchemaV2
	default:
		return SchemaV1
	}
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return strings.TrimSpace(cells[i])
	}
	return ""
}

func decodeV2(cells []string) Row {
	return Row{
		TimestampUTC: cell(cells, colTimestampUTC),
		TimestampPR:  cell(cells, colTimestampPR),
		EventType:    cell(cells, colEventType),
		Email:        cell(cells, colEmail),
		SessionID:    cell(cells, colSessionID),
		Country:      cell(cells, colCountry),
		Region:       cell(cells, colRegion),
		LastName:     cell(cells, colLastName),
		Newsletter:   cell(cells, colNewsletter),
		Ticket:       cell(cells, colTicket),
	}
}

// legacyMetadata is the JSON object in the sixth column of v1 rows. Values
// were written loosely, so every field is decoded from raw JSON.
type legacyMetadata struct {
	Country    json.RawMessage `json:"country"`
	Region     json.RawMessage `json:"region"`
	LastName   json.RawMessage `json:"lastName"`
	Newsletter json.RawMessage `json:"newsletter"`
	Ticket     json.RawMessage `json:"ticket"`
}

func decodeV1(cells []string) Row {
	row := Row{
		TimestampUTC: cell(cells, colTimestampUTC),
		TimestampPR:  cell(cells, colTimestampPR),
		EventType:    cell(cells, colEventType),
		Email:        cell(cells, colEmail),
		SessionID:    cell(cells, colSessionID),
	}

	raw := cell(cells, 5)
	if raw == "" {
		return row
	}
	var meta legacyMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return row
	}
	row.Country = rawString(meta.Country)
	row.Region = rawString(meta.Region)
	row.LastName = rawString(meta.LastName)
	row.Newsletter = NormalizeNewsletter(rawString(meta.Newsletter))
	row.Ticket = rawString(meta.Ticket)
	return row
}

// rawString turns a JSON scalar into its text form; null and objects become "".
func rawString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			return strings.TrimSpace(v)
		}
		return ""
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return ""
	}
	return s
}
