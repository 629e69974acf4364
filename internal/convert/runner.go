package convert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// RunConfig holds the configuration of a command-line conversion.
type RunConfig struct {
	Inputs []string // files and directories, in the order given
	Output string   // output file, directory, or "-" for stdout; empty means ./_chat.txt
}

// Runner converts files from disk and writes the combined transcript.
type Runner struct {
	cfg    RunConfig
	conv   *Converter
	stdout io.Writer
	logger *slog.Logger
}

// NewRunner creates a Runner that writes "-" output to stdout.
func NewRunner(cfg RunConfig, conv *Converter, stdout io.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, conv: conv, stdout: stdout, logger: logger}
}

// Run discovers inputs, converts them as one batch, and writes the output. Nothing is
// written when the batch fails.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	paths, err := DiscoverFiles(r.cfg.Inputs)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	r.logger.Info("files discovered", "count", len(paths))

	sources := make([]Source, len(paths))
	for i, p := range paths {
		sources[i] = FileSource(p)
	}

	res, err := r.conv.Convert(ctx, sources)
	if err != nil {
		return nil, err
	}

	if r.cfg.Output == "-" {
		if _, err := io.WriteString(r.stdout, res.Text); err != nil {
			return nil, fmt.Errorf("write stdout: %w", err)
		}
		return res, nil
	}

	dest, err := OutputPath(r.cfg.Output)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dest, []byte(res.Text), 0o644); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	r.logger.Info("transcript written", "path", dest, "lines", res.Lines())
	return res, nil
}

// OutputPath resolves where the transcript goes: an existing directory (or a path ending
// in a separator) receives OutputName, anything else is used as the file path.
func OutputPath(output string) (string, error) {
	if output == "" {
		return OutputName, nil
	}
	if strings.HasSuffix(output, string(os.PathSeparator)) || strings.HasSuffix(output, "/") {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return "", fmt.Errorf("mkdir: %w", err)
		}
		return filepath.Join(output, OutputName), nil
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, OutputName), nil
	}
	return output, nil
}

// DiscoverFiles expands directories to the export files they contain, in natural name
// order, and keeps explicit file arguments as given.
func DiscoverFiles(inputs []string) ([]string, error) {
	var paths []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", in, err)
		}
		if !info.IsDir() {
			paths = append(paths, in)
			continue
		}

		entries, err := os.ReadDir(in)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", in, err)
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() || DetectFormat(e.Name()) == FormatUnknown {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
		for _, n := range names {
			paths = append(paths, filepath.Join(in, n))
		}
	}
	return paths, nil
}

// naturalLess orders names so that numbered export pages sort by number:
// messages.html, messages2.html, ..., messages10.html.
func naturalLess(a, b string) bool {
	sa, sb := strings.TrimSuffix(a, filepath.Ext(a)), strings.TrimSuffix(b, filepath.Ext(b))
	if c := compareNatural(sa, sb); c != 0 {
		return c < 0
	}
	return a < b
}

func compareNatural(a, b string) int {
	for a != "" && b != "" {
		ca, restA := nextChunk(a)
		cb, restB := nextChunk(b)
		na, errA := strconv.Atoi(ca)
		nb, errB := strconv.Atoi(cb)
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		case ca != cb:
			if ca < cb {
				return -1
			}
			return 1
		}
		a, b = restA, restB
	}
	return len(a) - len(b)
}

// nextChunk splits off the leading run of digits or non-digits.
func nextChunk(s string) (string, string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
