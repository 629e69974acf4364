package backfill

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MikeSquared-Agency/chattxt/internal/convert"
	"github.com/MikeSquared-Agency/chattxt/internal/slack"
	"github.com/MikeSquared-Agency/chattxt/internal/store"
)

// Config holds the backfill command configuration.
type Config struct {
	Root      string
	StatePath string // default DefaultStatePath
	DryRun    bool   // convert but write neither transcripts nor state
	Force     bool   // reconvert exports already recorded as processed
	Source    string // source label for history records (default: "backfill")
}

// Recorder persists conversion history.
type Recorder interface {
	RecordConversion(ctx context.Context, c store.Conversion) error
}

// Notifier reports finished runs.
type Notifier interface {
	PostBackfillReport(ctx context.Context, r slack.BackfillReport) (string, error)
}

// Summary counts what a run did.
type Summary struct {
	Found       int
	Converted   int
	AlreadyDone int
	Duplicates  int
	Failed      int
	Lines       int
}

// Runner converts every export folder under a root into a _chat.txt next to it.
// One failing export does not stop the others.
type Runner struct {
	cfg      Config
	conv     *convert.Converter
	recorder Recorder
	notifier Notifier
	out      io.Writer
	logger   *slog.Logger
}

// NewRunner creates a backfill runner. rec may be nil.
func NewRunner(cfg Config, conv *convert.Converter, rec Recorder, out io.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{cfg: cfg, conv: conv, recorder: rec, out: out, logger: logger}
}

// WithNotifier sets where the run summary is posted.
func (r *Runner) WithNotifier(n Notifier) *Runner {
	r.notifier = n
	return r
}

// sourceLabel returns the source string to use for history records.
func (r *Runner) sourceLabel() string {
	if r.cfg.Source != "" {
		return r.cfg.Source
	}
	return "backfill"
}

// Run executes the backfill process.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	exports, err := FindExports(r.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("discover exports: %w", err)
	}

	sum := &Summary{Found: len(exports)}
	r.logger.Info("exports discovered", "root", r.cfg.Root, "count", len(exports))

	var pending []Export
	fingerprints := make(map[string]string)
	for _, exp := range exports {
		if !r.cfg.Force && state.IsProcessed(exp.Dir) {
			sum.AlreadyDone++
			continue
		}
		fp, err := Fingerprint(exp)
		if err != nil {
			r.logger.Warn("failed to fingerprint export", "dir", exp.Dir, "error", err)
			state.AddError(fmt.Sprintf("fingerprint %s: %v", exp.Dir, err))
			sum.Failed++
			continue
		}
		fingerprints[exp.Dir] = fp
		pending = append(pending, exp)
	}

	seen := state.Fingerprints
	if r.cfg.Force {
		seen = nil
	}
	duplicates := FindDuplicates(pending, fingerprints, seen)

	state.ExportsRemaining = len(pending) - len(duplicates)
	r.logger.Info("exports to convert",
		"total", state.ExportsRemaining,
		"already_done", sum.AlreadyDone,
		"duplicates", len(duplicates),
	)

	for _, exp := range pending {
		select {
		case <-ctx.Done():
			r.logger.Info("backfill interrupted, saving state")
			r.save(state)
			r.notify(context.WithoutCancel(ctx), sum, state)
			return sum, ctx.Err()
		default:
		}

		if duplicates[exp.Dir] {
			r.logger.Info("skipping duplicate export", "dir", exp.Dir)
			sum.Duplicates++
			continue
		}

		res, err := r.convertExport(ctx, exp)
		if err != nil {
			r.logger.Error("export failed", "dir", exp.Dir, "error", err)
			state.AddError(fmt.Sprintf("convert %s: %v", exp.Dir, err))
			sum.Failed++
			state.ExportsRemaining--
			r.save(state)
			continue
		}

		r.record(ctx, exp, res)

		sum.Converted++
		sum.Lines += res.Lines()
		state.MarkProcessed(exp.Dir)
		state.Fingerprints[fingerprints[exp.Dir]] = exp.Dir
		state.LinesWritten += res.Lines()
		state.ExportsRemaining--
		r.save(state)
	}

	r.save(state)
	r.notify(ctx, sum, state)

	r.logger.Info("backfill complete",
		"converted", sum.Converted,
		"failed", sum.Failed,
		"duplicates", sum.Duplicates,
		"lines", sum.Lines,
		"dry_run", r.cfg.DryRun,
	)

	fmt.Fprintf(r.out, "\n=== Backfill Summary ===\n")
	fmt.Fprintf(r.out, "Exports found: %d\n", sum.Found)
	fmt.Fprintf(r.out, "Converted: %d\n", sum.Converted)
	fmt.Fprintf(r.out, "Already done: %d\n", sum.AlreadyDone)
	fmt.Fprintf(r.out, "Duplicates skipped: %d\n", sum.Duplicates)
	fmt.Fprintf(r.out, "Failed: %d\n", sum.Failed)
	fmt.Fprintf(r.out, "Lines written: %d\n", sum.Lines)
	if r.cfg.DryRun {
		fmt.Fprintf(r.out, "Mode: DRY RUN (nothing written)\n")
	} else {
		fmt.Fprintf(r.out, "State file: %s\n", state.Path())
	}

	return sum, nil
}

func (r *Runner) convertExport(ctx context.Context, exp Export) (*convert.Result, error) {
	sources := make([]convert.Source, len(exp.Files))
	for i, f := range exp.Files {
		sources[i] = convert.FileSource(f)
	}

	res, err := r.conv.Convert(ctx, sources)
	if err != nil {
		return nil, err
	}
	if r.cfg.DryRun {
		return res, nil
	}

	dest, err := convert.OutputPath(exp.Dir)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dest, []byte(res.Text), 0o644); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	r.logger.Info("transcript written", "path", dest, "lines", res.Lines())
	return res, nil
}

func (r *Runner) record(ctx context.Context, exp Export, res *convert.Result) {
	if r.recorder == nil || r.cfg.DryRun {
		return
	}
	names := make([]string, len(exp.Files))
	for i, f := range exp.Files {
		names[i] = convert.FileSource(f).Name()
	}
	err := r.recorder.RecordConversion(ctx, store.Conversion{
		ID:        res.ID,
		Format:    res.Format.String(),
		Files:     res.Files,
		FileNames: names,
		Lines:     res.Lines(),
		Skipped:   res.Stats.Skipped,
		Bytes:     int64(len(res.Text)),
		Source:    r.sourceLabel(),
	})
	if err != nil {
		r.logger.Warn("failed to record conversion", "dir", exp.Dir, "error", err)
	}
}

func (r *Runner) save(state *BackfillState) {
	if r.cfg.DryRun {
		return
	}
	if err := state.Save(); err != nil {
		r.logger.Warn("failed to save backfill state", "path", state.Path(), "error", err)
	}
}

// notify posts the run summary. If no notifier is configured it does nothing.
func (r *Runner) notify(ctx context.Context, sum *Summary, state *BackfillState) {
	if r.notifier == nil {
		return
	}
	_, err := r.notifier.PostBackfillReport(ctx, slack.BackfillReport{
		Root:        r.cfg.Root,
		Found:       sum.Found,
		Converted:   sum.Converted,
		AlreadyDone: sum.AlreadyDone,
		Duplicates:  sum.Duplicates,
		Failed:      sum.Failed,
		Lines:       sum.Lines,
		DryRun:      r.cfg.DryRun,
		Errors:      state.Errors,
	})
	if err != nil {
		r.logger.Warn("failed to post backfill report", "error", err)
	}
}
