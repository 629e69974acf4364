package backfill

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/chattxt/internal/convert"
)

// Export is one chat export folder found under the backfill root.
type Export struct {
	Dir    string
	Files  []string // in natural order
	Format convert.Format
}

// FindExports walks root and returns every directory that holds a chat export: a
// result.json, or one or more messages*.html pages. Directories are returned in
// walk (lexical) order.
func FindExports(root string) ([]Export, error) {
	var exports []Export
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		exp, ok, err := exportIn(path)
		if err != nil {
			return err
		}
		if ok {
			exports = append(exports, exp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return exports, nil
}

// exportIn reports the export held directly in dir, if any. A folder with both
// encodings is treated as a structured export.
func exportIn(dir string) (Export, bool, error) {
	files, err := convert.DiscoverFiles([]string{dir})
	if err != nil {
		return Export{}, false, err
	}

	var structured, markup []string
	for _, f := range files {
		name := filepath.Base(f)
		switch {
		case strings.EqualFold(name, "result.json"):
			structured = append(structured, f)
		case strings.HasPrefix(strings.ToLower(name), "messages") && convert.DetectFormat(name) == convert.FormatMarkup:
			markup = append(markup, f)
		}
	}

	switch {
	case len(structured) > 0:
		return Export{Dir: dir, Files: structured, Format: convert.FormatStructured}, true, nil
	case len(markup) > 0:
		return Export{Dir: dir, Files: markup, Format: convert.FormatMarkup}, true, nil
	default:
		return Export{}, false, nil
	}
}
