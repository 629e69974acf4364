package transcript

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Export is the top-level object of a structured chat export.
type Export struct {
	Messages []Record `json:"messages"`
}

// Record is one entry of a structured export's messages list.
type Record struct {
	Type            string          `json:"type"`
	Date            string          `json:"date"`
	DateUnixtime    UnixTime        `json:"date_unixtime"`
	From            string          `json:"from"`
	Actor           string          `json:"actor"`
	Text            json.RawMessage `json:"text"` // string, or an array of runs
	TextEntities    []TextEntity    `json:"text_entities"`
	Photo           string          `json:"photo"`
	File            string          `json:"file"`
	MediaType       string          `json:"media_type"`
	Location        *LocationInfo   `json:"location_information"`
	Contact         *ContactInfo    `json:"contact_information"`
	Reactions       []ReactionInfo  `json:"reactions"`
	Edited          json.RawMessage `json:"edited"`
	Action          string          `json:"action"`
	DurationSeconds float64         `json:"duration_seconds"`
}

// TextEntity is one styled run of a message's text.
type TextEntity struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// LocationInfo is a shared point.
type LocationInfo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ContactInfo is a shared contact.
type ContactInfo struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

// ReactionInfo is one emoji reaction with its most recent reactors.
type ReactionInfo struct {
	Emoji  string          `json:"emoji"`
	Recent []RecentReactor `json:"recent"`
}

// RecentReactor is one entry of a reaction's recent list.
type RecentReactor struct {
	From string `json:"from"`
}

// UnixTime is epoch seconds that exports write either as a number or as a numeric string.
type UnixTime struct {
	Seconds int64
	Valid   bool
}

func (u *UnixTime) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if s == "" || s == "null" {
		*u = UnixTime{}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// An unreadable date renders as InvalidDate rather than failing the file.
		*u = UnixTime{}
		return nil
	}
	*u = UnixTime{Seconds: int64(f), Valid: true}
	return nil
}

// mediaAttachmentTypes are the media_type values rendered through the attachment test.
var mediaAttachmentTypes = map[string]bool{
	"voice_message": true,
	"sticker":       true,
	"animation":     true,
}

// ClassifyRecord selects the body variant of a structured record. The first matching rule
// wins: attachments, then location, then contact, then voice/sticker/animation media, over
// the text itself. Call services replace whatever was selected.
func ClassifyRecord(rec Record) Body {
	body := textBody(rec)

	switch {
	case rec.Photo != "":
		body = attachmentFor(rec.Photo)
	case rec.File != "":
		body = attachmentFor(rec.File)
	case rec.Location != nil:
		body = Location{Lat: rec.Location.Latitude, Lon: rec.Location.Longitude}
	case rec.Contact != nil:
		body = Contact{
			First: rec.Contact.FirstName,
			Last:  rec.Contact.LastName,
			Phone: rec.Contact.PhoneNumber,
		}
	case mediaAttachmentTypes[rec.MediaType]:
		body = attachmentFor(rec.File)
	}

	if KindOf(rec.Type) == KindService {
		switch rec.Action {
		case "phone_call":
			body = MediaAction{Call: CallVoice, Answered: rec.DurationSeconds != 0, Seconds: rec.DurationSeconds}
		case "video_call":
			body = MediaAction{Call: CallVideo}
		}
	}

	return body
}

// textBody uses text when it is a non-empty string and falls back to the entity runs.
func textBody(rec Record) Body {
	var s string
	if len(rec.Text) > 0 && json.Unmarshal(rec.Text, &s) == nil && s != "" {
		return PlainText(s)
	}

	runs := make(FormattedRuns, 0, len(rec.TextEntities))
	for _, e := range rec.TextEntities {
		switch e.Type {
		case "plain":
			runs = append(runs, Run{Style: StylePlain, Text: e.Text})
		case "bold":
			runs = append(runs, Run{Style: StyleBold, Text: e.Text})
		}
	}
	return runs
}

// BuildRecord converts a structured record into a Message.
func BuildRecord(rec Record, opts Options) Message {
	msg := Message{
		Kind:      KindOf(rec.Type),
		Timestamp: recordTimestamp(rec, opts.location()),
		Sender:    recordSender(rec),
		Body:      ClassifyRecord(rec),
		Edited:    truthy(rec.Edited),
	}
	for _, r := range rec.Reactions {
		if len(r.Recent) == 0 {
			continue
		}
		msg.Reactions = append(msg.Reactions, Reaction{Emoji: r.Emoji, From: []string{r.Recent[0].From}})
	}
	return msg
}

// RenderRecord renders one structured record as a transcript line without a newline.
func RenderRecord(rec Record, opts Options) string {
	return BuildRecord(rec, opts).Line()
}

func recordSender(rec Record) string {
	if rec.From != "" {
		return rec.From
	}
	if rec.Actor != "" {
		return rec.Actor
	}
	return UnknownSender
}

func recordTimestamp(rec Record, loc *time.Location) string {
	if rec.DateUnixtime.Valid {
		return FormatUnix(rec.DateUnixtime.Seconds, loc)
	}
	if rec.Date != "" {
		if t, err := time.ParseInLocation(isoLayout, rec.Date, loc); err == nil {
			return FormatTime(t, loc)
		}
	}
	return InvalidDate
}

// truthy reports whether a raw JSON value is set to anything other than null, false, 0 or "".
func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", `""`:
		return false
	}
	if f, err := strconv.ParseFloat(string(v), 64); err == nil {
		return f != 0
	}
	return true
}
