package attachment

import (
	"errors"
	"strings"

	"github.com/felo/mail-ingest/internal/parser"
)

// extractCalendar scans ICS text line by line, tracking BEGIN:VEVENT /
// END:VEVENT as a flat boundary (nesting is not tracked). Within a block it
// captures SUMMARY, DTSTART, DTEND, LOCATION and DESCRIPTION; property
// parameters (DTSTART;TZID=...) are stripped from the key and empty values
// are dropped. Non-empty content yielding zero events is an extraction error.
func extractCalendar(att parser.Attachment) (Metadata, error) {
	if strings.TrimSpace(string(att.Content)) == "" {
		return Metadata{}, errors.New("calendar attachment is empty")
	}

	var events []CalendarEvent
	var current *CalendarEvent

	for _, line := range strings.Split(string(att.Content), "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.EqualFold(line, "BEGIN:VEVENT"):
			current = &CalendarEvent{}

		case strings.EqualFold(line, "END:VEVENT"):
			if current != nil {
				events = append(events, *current)
				current = nil
			}

		case current != nil:
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			if i := strings.Index(key, ";"); i >= 0 {
				key = key[:i]
			}
			key = strings.ToUpper(strings.TrimSpace(key))
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}

			switch key {
			case "SUMMARY":
				current.Summary = value
			case "DTSTART":
				current.Start = value
			case "DTEND":
				current.End = value
			case "LOCATION":
				current.Location = value
			case "DESCRIPTION":
				current.Description = value
			}
		}
	}

	if len(events) == 0 {
		return Metadata{}, errors.New("no VEVENT blocks found in calendar attachment")
	}

	return Metadata{Calendar: &CalendarMetadata{Events: events}}, nil
}
