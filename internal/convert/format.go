package convert

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFormatMismatch means a batch mixes structured and markup exports.
	ErrFormatMismatch = errors.New("all files must be of the same format (all JSON or all HTML)")
	// ErrUnsupportedFormat means a file name has neither a .json nor an .html extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyBatch means no inputs were supplied.
	ErrEmptyBatch = errors.New("no input files")
)

// Format is the encoding of an export file.
type Format int

const (
	FormatUnknown Format = iota
	FormatStructured
	FormatMarkup
)

func (f Format) String() string {
	switch f {
	case FormatStructured:
		return "json"
	case FormatMarkup:
		return "html"
	default:
		return "unknown"
	}
}

// DetectFormat picks a format from the text after the last dot of a file name.
func DetectFormat(name string) Format {
	ext := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = name[i+1:]
	}
	switch strings.ToLower(ext) {
	case "json":
		return FormatStructured
	case "html":
		return FormatMarkup
	default:
		return FormatUnknown
	}
}

// Route resolves the single format of a batch. The first name fixes the expected format.
func Route(names []string) (Format, error) {
	if len(names) == 0 {
		return FormatUnknown, ErrEmptyBatch
	}

	expected := DetectFormat(names[0])
	for _, name := range names[1:] {
		if DetectFormat(name) != expected {
			return FormatUnknown, fmt.Errorf("%s: %w", name, ErrFormatMismatch)
		}
	}
	if expected == FormatUnknown {
		return FormatUnknown, fmt.Errorf("%s: %w", names[0], ErrUnsupportedFormat)
	}
	return expected, nil
}
