package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/chattxt/internal/metrics"
	"github.com/MikeSquared-Agency/chattxt/internal/transcript"
)

const (
	// OutputName is the file name the combined transcript is delivered under.
	OutputName = "_chat.txt"
	// ContentType is the MIME type of the combined transcript.
	ContentType = "text/plain"

	defaultConcurrency = 4
)

// Options configure a Converter.
type Options struct {
	Location    *time.Location
	BaseURL     string
	Concurrency int // max files read at once; 0 means the default
}

// Result is the outcome of one successful batch.
type Result struct {
	ID       uuid.UUID
	Format   Format
	Files    int
	Text     string
	Stats    transcript.Stats
	Duration time.Duration
}

// Lines is the number of transcript lines in the result.
func (r *Result) Lines() int {
	return strings.Count(r.Text, "\n")
}

// Converter turns batches of export files into one transcript.
type Converter struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Converter. logger and m may be nil.
func New(opts Options, logger *slog.Logger, m *metrics.Metrics) *Converter {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{opts: opts, logger: logger, metrics: m}
}

// Convert routes, reads and renders every source, and joins the per-file transcripts in
// the order the sources were given. Files are read concurrently, but nothing is returned
// until all of them are done; any failure discards the whole batch.
func (c *Converter) Convert(ctx context.Context, sources []Source) (*Result, error) {
	start := time.Now()

	format, err := Route(sourceNames(sources))
	if err != nil {
		c.fail(format, err)
		return nil, err
	}

	parts := make([]string, len(sources))
	stats := make([]transcript.Stats, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, st, err := c.renderSource(src, format)
			if err != nil {
				return fmt.Errorf("%s: %w", src.Name(), err)
			}
			parts[i], stats[i] = text, st
			c.logger.Debug("file rendered",
				"file", src.Name(),
				"format", format.String(),
				"rendered", st.Rendered,
				"skipped", st.Skipped,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.fail(format, err)
		return nil, err
	}

	res := &Result{
		ID:     uuid.New(),
		Format: format,
		Files:  len(sources),
		Text:   strings.Join(parts, ""),
	}
	for _, st := range stats {
		res.Stats = res.Stats.Add(st)
	}
	res.Duration = time.Since(start)

	c.metrics.ObserveConversion(format.String(), res.Files, res.Stats.Rendered, res.Stats.Skipped, res.Duration)
	c.logger.Info("conversion complete",
		"conversion_id", res.ID,
		"format", format.String(),
		"files", res.Files,
		"rendered", res.Stats.Rendered,
		"skipped", res.Stats.Skipped,
		"duration", res.Duration,
	)
	return res, nil
}

func (c *Converter) renderSource(src Source, format Format) (string, transcript.Stats, error) {
	rc, err := src.Open()
	if err != nil {
		return "", transcript.Stats{}, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	opts := transcript.Options{Location: c.opts.Location, BaseURL: c.opts.BaseURL}
	switch format {
	case FormatStructured:
		return transcript.RenderStructuredWithStats(rc, opts)
	case FormatMarkup:
		return transcript.RenderMarkupWithStats(rc, opts)
	default:
		return "", transcript.Stats{}, ErrUnsupportedFormat
	}
}

func (c *Converter) fail(format Format, err error) {
	c.metrics.ObserveFailure(format.String(), FailureReason(err))
	c.logger.Warn("conversion failed", "format", format.String(), "error", err)
}

// FailureReason is a short label for a batch error, used in metrics and events.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrFormatMismatch):
		return "format_mismatch"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported"
	case errors.Is(err, ErrEmptyBatch):
		return "empty"
	case errors.Is(err, transcript.ErrMalformedExport):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// IsInputError reports whether err was caused by the inputs rather than the environment.
func IsInputError(err error) bool {
	return errors.Is(err, ErrFormatMismatch) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, transcript.ErrMalformedExport)
}
