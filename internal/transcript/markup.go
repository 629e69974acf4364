package transcript

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// role names an element of a rendered message by the class the export gives it.
type role string

const (
	roleMessage     role = ".message"
	roleDate        role = ".date"
	roleFromName    role = ".from_name"
	roleText        role = ".text"
	roleMedia       role = ".media_wrap"
	roleDescription role = ".description"
	rolePhotoLink   role = ".photo_wrap"
	roleVoiceLink   role = ".media_voice_message"
	roleFileLink    role = ".media_file"
	roleLocation    role = ".media_location"
	roleCall        role = ".media_call"
	roleVideoLink   role = ".media_video"
	roleAnimated    role = ".animated_wrap"
	roleStickerLink role = ".sticker_wrap"
	rolePhoto       role = ".media_photo"
	roleTimedMedia  role = ".media_photo, .media_video"
	roleContact     role = ".media_contact"
	roleTitle       role = ".title"
	roleStatus      role = ".status"
	roleReactions   role = ".reactions"
	roleReaction    role = ".reaction"
	roleEmoji       role = ".emoji"
	roleUserpics    role = ".userpics"
	roleInitials    role = ".initials"
)

// first returns the first descendant of sel playing r, which may be empty.
func first(sel *goquery.Selection, r role) *goquery.Selection {
	return sel.Find(string(r)).First()
}

func present(sel *goquery.Selection) bool {
	return sel.Length() > 0
}

func trimmedText(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

// MarkupState is carried from one rendered markup message to the next within a document.
type MarkupState struct {
	LastSender string
}

// NewMarkupState returns the state at the start of a document.
func NewMarkupState() *MarkupState {
	return &MarkupState{LastSender: UnknownSender}
}

// BuildNode converts one message container into a Message. It returns false, and leaves
// state untouched, when the container has no parseable date.
func BuildNode(node *goquery.Selection, state *MarkupState, opts Options) (Message, bool) {
	title, ok := first(node, roleDate).Attr("title")
	if !ok || title == "" {
		return Message{}, false
	}
	ts, err := ParseDisplayTime(title, opts.location())
	if err != nil {
		return Message{}, false
	}

	sender := state.LastSender
	if name := first(node, roleFromName); present(name) {
		sender = trimmedText(name)
	}
	state.LastSender = sender

	return Message{
		Kind:      KindText,
		Timestamp: FormatTime(ts, opts.location()),
		Sender:    sender,
		Body:      classifyNode(node, opts.BaseURL),
		Reactions: nodeReactions(node),
	}, true
}

// RenderNode renders one message container as a transcript line without a newline.
func RenderNode(node *goquery.Selection, state *MarkupState, opts Options) (string, bool) {
	msg, ok := BuildNode(node, state, opts)
	if !ok {
		return "", false
	}
	return msg.Line(), true
}

// classifyNode selects the body of a message container: its text, unless the media block
// resolves to something else.
func classifyNode(node *goquery.Selection, baseURL string) Body {
	var body Body = PlainText("")
	if text := first(node, roleText); present(text) {
		body = PlainText(trimmedText(text))
	}

	media := first(node, roleMedia)
	if !present(media) {
		return body
	}
	if present(first(media, roleDescription)) {
		return Attachment{}
	}
	for _, resolve := range mediaResolvers {
		if b, ok := resolve(media, baseURL); ok {
			body = b
		}
	}
	return body
}

// mediaResolver turns a media block into a body when the block holds its kind of media.
type mediaResolver func(media *goquery.Selection, baseURL string) (Body, bool)

// mediaResolvers run in order; each one that applies overrides the ones before it.
var mediaResolvers = []mediaResolver{
	linkResolver(rolePhotoLink),
	linkResolver(roleVoiceLink),
	linkResolver(roleFileLink),
	resolveLocation,
	resolveCall,
	linkResolver(roleVideoLink),
	linkResolver(roleAnimated),
	linkResolver(roleStickerLink),
	resolvePhoto,
	resolveSelfDestructing,
	resolveContact,
}

func linkResolver(r role) mediaResolver {
	return func(media *goquery.Selection, baseURL string) (Body, bool) {
		el := first(media, r)
		if !present(el) {
			return nil, false
		}
		return linkAttachment(el, baseURL), true
	}
}

// linkAttachment points at the exported file an element links to. Exported files are
// always included; a link without a target is treated as missing media.
func linkAttachment(el *goquery.Selection, baseURL string) Attachment {
	href, ok := el.Attr("href")
	if !ok || href == "" {
		return Attachment{}
	}
	return Attachment{Path: RelativePath(href, baseURL), Included: true}
}

func resolveLocation(media *goquery.Selection, _ string) (Body, bool) {
	el := first(media, roleLocation)
	if !present(el) {
		return nil, false
	}
	href, _ := el.Attr("href")
	return LocationLink{Href: href}, true
}

func resolveCall(media *goquery.Selection, _ string) (Body, bool) {
	el := first(media, roleCall)
	if !present(el) {
		return nil, false
	}
	return CallSummary{Type: trimmedText(first(el, roleTitle)), Status: trimmedText(first(el, roleStatus))}, true
}

func resolvePhoto(media *goquery.Selection, baseURL string) (Body, bool) {
	el := first(media, rolePhoto)
	title, status := first(el, roleTitle), first(el, roleStatus)
	if !present(title) || !present(status) {
		return nil, false
	}
	if trimmedText(title) == "Sticker" {
		return linkAttachment(el, baseURL), true
	}
	return Labeled{Title: trimmedText(title), Status: trimmedText(status)}, true
}

func resolveSelfDestructing(media *goquery.Selection, _ string) (Body, bool) {
	el := first(media, roleTimedMedia)
	title, status := first(el, roleTitle), first(el, roleStatus)
	if !present(title) || !present(status) || !strings.Contains(trimmedText(title), "Self-destructing") {
		return nil, false
	}
	return Labeled{Title: trimmedText(title), Status: trimmedText(status)}, true
}

func resolveContact(media *goquery.Selection, _ string) (Body, bool) {
	el := first(media, roleContact)
	if !present(el) {
		return nil, false
	}
	return ContactCard{Title: trimmedText(first(el, roleTitle)), Status: trimmedText(first(el, roleStatus))}, true
}

// nodeReactions collects reactions in document order. Reactions without a userpic list
// are dropped.
func nodeReactions(node *goquery.Selection) []Reaction {
	block := first(node, roleReactions)
	if !present(block) {
		return nil
	}
	var out []Reaction
	block.Find(string(roleReaction)).Each(func(_ int, r *goquery.Selection) {
		userpics := first(r, roleUserpics)
		if !present(userpics) {
			return
		}
		users := userpics.Find(string(roleInitials)).Map(func(_ int, s *goquery.Selection) string {
			title, _ := s.Attr("title")
			return title
		})
		out = append(out, Reaction{Emoji: trimmedText(first(r, roleEmoji)), From: users})
	})
	return out
}

// RelativePath strips the directory of baseURL from href when href lies under it.
func RelativePath(href, baseURL string) string {
	dir := baseURL[:strings.LastIndex(baseURL, "/")+1]
	if strings.HasPrefix(href, dir) {
		return href[len(dir):]
	}
	return href
}
