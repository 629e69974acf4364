package transcript

import (
	"regexp"
	"strconv"
	"strings"
)

// Body is the single content payload of a message. Exactly one variant is set per message.
type Body interface {
	Text() string
	isBody()
}

// includedFile matches paths that end in a plausible file extension.
var includedFile = regexp.MustCompile(`\.\w{1,5}$`)

// IsFileIncluded reports whether an export path points at a file that was actually exported.
// Exporters write a placeholder sentence instead of a path when media was left out.
func IsFileIncluded(path string) bool {
	return includedFile.MatchString(path)
}

// PlainText is unformatted message text.
type PlainText string

func (PlainText) isBody()        {}
func (p PlainText) Text() string { return string(p) }

// Style is the formatting of one text run.
type Style int

const (
	StylePlain Style = iota
	StyleBold
)

// Run is a contiguous piece of text with one style.
type Run struct {
	Style Style
	Text  string
}

// FormattedRuns is text assembled from styled runs. Bold runs are wrapped in asterisks.
type FormattedRuns []Run

func (FormattedRuns) isBody() {}

func (f FormattedRuns) Text() string {
	var sb strings.Builder
	for _, r := range f {
		switch r.Style {
		case StyleBold:
			sb.WriteString("*")
			sb.WriteString(r.Text)
			sb.WriteString("*")
		default:
			sb.WriteString(r.Text)
		}
	}
	return sb.String()
}

// Attachment references an exported media file.
type Attachment struct {
	Path     string
	Included bool
}

func (Attachment) isBody() {}

func (a Attachment) Text() string {
	if !a.Included {
		return "<attachment not included>"
	}
	return "<attachment: " + a.Path + ">"
}

// attachmentFor applies the inclusion test to an export path.
func attachmentFor(path string) Attachment {
	return Attachment{Path: path, Included: IsFileIncluded(path)}
}

// Location is a shared geographic point.
type Location struct {
	Lat float64
	Lon float64
}

func (Location) isBody() {}

func (l Location) Text() string {
	return "Location: https://maps.google.com/?q=" + formatNumber(l.Lat) + "," + formatNumber(l.Lon)
}

// LocationLink is a shared location already rendered as a map link.
type LocationLink struct {
	Href string
}

func (LocationLink) isBody()        {}
func (l LocationLink) Text() string { return "Location: " + l.Href }

// Contact is a shared contact card with separate name fields.
type Contact struct {
	First string
	Last  string
	Phone string
}

func (Contact) isBody() {}

func (c Contact) Text() string {
	return "Contact: " + c.First + " " + c.Last + " - " + c.Phone
}

// ContactCard is a shared contact as displayed: a name title and a phone status line.
type ContactCard struct {
	Title  string
	Status string
}

func (ContactCard) isBody()        {}
func (c ContactCard) Text() string { return "Contact: " + c.Title + " - " + c.Status }

// CallType distinguishes voice from video calls.
type CallType int

const (
	CallVoice CallType = iota
	CallVideo
)

// MediaAction is a call recorded as a service record.
type MediaAction struct {
	Call     CallType
	Answered bool
	Seconds  float64
}

func (MediaAction) isBody() {}

func (m MediaAction) Text() string {
	if m.Call == CallVideo {
		return "Missed video call. Tap to call back"
	}
	if m.Answered {
		return "Voice call. " + formatNumber(m.Seconds) + " seconds"
	}
	return "Missed voice call. Tap to call back"
}

// CallSummary is a call as displayed in a rendered transcript.
type CallSummary struct {
	Type   string
	Status string
}

func (CallSummary) isBody() {}

// Text keeps the status only for incoming and cancelled calls.
func (c CallSummary) Text() string {
	if strings.Contains(c.Status, "Incoming") || strings.Contains(c.Status, "Cancelled") {
		return c.Type + " " + c.Status
	}
	return c.Type
}

// Labeled is titled media shown with its status line, e.g. a self-destructing photo.
type Labeled struct {
	Title  string
	Status string
}

func (Labeled) isBody()        {}
func (l Labeled) Text() string { return l.Title + ": " + l.Status }

// formatNumber prints a float in its shortest exact form, without a trailing ".0".
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
