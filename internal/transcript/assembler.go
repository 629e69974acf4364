package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RenderStructured renders a structured export, one newline-terminated line per message
// or service record.
func RenderStructured(r io.Reader, opts Options) (string, error) {
	out, _, err := RenderStructuredWithStats(r, opts)
	return out, err
}

// RenderStructuredWithStats is RenderStructured that also reports how many records were
// rendered and how many were filtered out.
func RenderStructuredWithStats(r io.Reader, opts Options) (string, Stats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", Stats{}, fmt.Errorf("read: %w", err)
	}

	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return "", Stats{}, fmt.Errorf("%w: %v", ErrMalformedExport, err)
	}
	if export.Messages == nil {
		return "", Stats{}, fmt.Errorf("%w: no messages list", ErrMalformedExport)
	}

	var sb strings.Builder
	var stats Stats
	for _, rec := range export.Messages {
		if KindOf(rec.Type) == KindUnsupported {
			stats.Skipped++
			continue
		}
		sb.WriteString(RenderRecord(rec, opts))
		sb.WriteString("\n")
		stats.Rendered++
	}
	return sb.String(), stats, nil
}

// RenderMarkup renders an HTML export, one newline-terminated line per message container
// with a readable date.
func RenderMarkup(r io.Reader, opts Options) (string, error) {
	out, _, err := RenderMarkupWithStats(r, opts)
	return out, err
}

// RenderMarkupWithStats is RenderMarkup that also reports rendered and skipped containers.
func RenderMarkupWithStats(r io.Reader, opts Options) (string, Stats, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", Stats{}, fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	var stats Stats
	state := NewMarkupState()
	doc.Find(string(roleMessage)).Each(func(_ int, node *goquery.Selection) {
		line, ok := RenderNode(node, state, opts)
		if !ok {
			stats.Skipped++
			return
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		stats.Rendered++
	})
	return sb.String(), stats, nil
}
