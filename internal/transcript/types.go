package transcript

import (
	"errors"
	"strings"
	"time"
)

// UnknownSender is used when a message carries no sender and nothing can be carried forward.
const UnknownSender = "Unknown"

var (
	// ErrMalformedExport means a structured export is not a JSON object with a messages list.
	ErrMalformedExport = errors.New("malformed export")
	// ErrInvalidTimestamp means a markup date title could not be parsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// Kind classifies a source record by its type field.
type Kind int

const (
	KindUnsupported Kind = iota
	KindText
	KindService
)

// KindOf maps a structured record type to a Kind.
func KindOf(recordType string) Kind {
	switch recordType {
	case "message":
		return KindText
	case "service":
		return KindService
	default:
		return KindUnsupported
	}
}

// Message is the normalized form of one record from either export encoding.
type Message struct {
	Kind      Kind
	Timestamp string // already in display form
	Sender    string
	Body      Body
	Edited    bool
	Reactions []Reaction
}

// Reaction is one emoji reaction and the names it is attributed to.
type Reaction struct {
	Emoji string
	From  []string
}

// Line renders the message as a single transcript line, without the trailing newline.
func (m Message) Line() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(m.Timestamp)
	sb.WriteString("] ")
	sb.WriteString(m.Sender)
	sb.WriteString(": ")
	if m.Body != nil {
		sb.WriteString(m.Body.Text())
	}
	for _, r := range m.Reactions {
		sb.WriteString(" (Reaction: ")
		sb.WriteString(r.Emoji)
		sb.WriteString(" from ")
		sb.WriteString(strings.Join(r.From, ", "))
		sb.WriteString(")")
	}
	if m.Edited {
		sb.WriteString(" <This message has been edited>")
	}
	return sb.String()
}

// Options control rendering for both encodings.
type Options struct {
	// Location is the zone timestamps are displayed in. Nil means time.Local.
	Location *time.Location
	// BaseURL is the page URL attachment links are made relative to (markup only).
	BaseURL string
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// Stats counts what an assembler pass did with the messages it saw.
type Stats struct {
	Rendered int
	Skipped  int
}

// Add returns the field-wise sum of two Stats.
func (s Stats) Add(o Stats) Stats {
	return Stats{Rendered: s.Rendered + o.Rendered, Skipped: s.Skipped + o.Skipped}
}
