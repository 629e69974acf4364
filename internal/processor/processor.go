package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/chattxt/internal/convert"
	"github.com/MikeSquared-Agency/chattxt/internal/hermes"
	"github.com/MikeSquared-Agency/chattxt/internal/metrics"
	"github.com/MikeSquared-Agency/chattxt/internal/store"
)

// Origins of a conversion request.
const (
	OriginAPI  = "api"
	OriginNATS = "nats"
)

// Recorder persists conversion history.
type Recorder interface {
	RecordConversion(ctx context.Context, c store.Conversion) error
}

// Publisher announces conversion outcomes.
type Publisher interface {
	PublishConversion(ev hermes.ConversionEvent) error
	PublishFailure(ev hermes.FailureEvent) error
}

// Request is one batch to convert.
type Request struct {
	Sources   []convert.Source
	BaseURL   string // overrides the configured base URL when set
	Origin    string
	RequestID string
}

// Processor runs conversions for the service and fans the outcome out to the
// history store and the event bus. Both are optional.
type Processor struct {
	opts      convert.Options
	metrics   *metrics.Metrics
	recorder  Recorder
	publisher Publisher
	logger    *slog.Logger
}

func New(opts convert.Options, m *metrics.Metrics, rec Recorder, pub Publisher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		opts:      opts,
		metrics:   m,
		recorder:  rec,
		publisher: pub,
		logger:    logger,
	}
}

// Convert converts req as one batch. Recording and publishing failures are logged
// and never fail the conversion.
func (p *Processor) Convert(ctx context.Context, req Request) (*convert.Result, error) {
	return p.run(ctx, req, false)
}

// HandleConvertRequest converts a batch received over NATS. The transcript is
// delivered on the converted event.
func (p *Processor) HandleConvertRequest(ctx context.Context, cr hermes.ConvertRequest) {
	sources := make([]convert.Source, len(cr.Files))
	for i, f := range cr.Files {
		sources[i] = convert.BytesSource{Filename: f.Name, Data: f.Content}
	}

	p.logger.Info("processing convert request", "request_id", cr.RequestID, "files", len(sources))

	_, _ = p.run(ctx, Request{
		Sources:   sources,
		BaseURL:   cr.BaseURL,
		Origin:    OriginNATS,
		RequestID: cr.RequestID,
	}, true)
}

func (p *Processor) run(ctx context.Context, req Request, withTranscript bool) (*convert.Result, error) {
	opts := p.opts
	if req.BaseURL != "" {
		opts.BaseURL = req.BaseURL
	}
	names := sourceNames(req.Sources)

	res, err := convert.New(opts, p.logger, p.metrics).Convert(ctx, req.Sources)
	if err != nil {
		p.publishFailure(req, names, err)
		return nil, err
	}

	p.record(ctx, req, names, res)
	transcript := ""
	if withTranscript {
		transcript = res.Text
	}
	p.publishConversion(req, names, res, transcript)
	return res, nil
}

func (p *Processor) record(ctx context.Context, req Request, names []string, res *convert.Result) {
	if p.recorder == nil {
		return
	}
	err := p.recorder.RecordConversion(ctx, store.Conversion{
		ID:        res.ID,
		Format:    res.Format.String(),
		Files:     res.Files,
		FileNames: names,
		Lines:     res.Lines(),
		Skipped:   res.Stats.Skipped,
		Bytes:     int64(len(res.Text)),
		Source:    req.Origin,
	})
	if err != nil {
		p.logger.Error("failed to record conversion", "conversion_id", res.ID, "error", err)
	}
}

func (p *Processor) publishConversion(req Request, names []string, res *convert.Result, transcript string) {
	if p.publisher == nil {
		return
	}
	err := p.publisher.PublishConversion(hermes.ConversionEvent{
		ConversionID: res.ID.String(),
		RequestID:    req.RequestID,
		Format:       res.Format.String(),
		Files:        names,
		Lines:        res.Lines(),
		Skipped:      res.Stats.Skipped,
		Bytes:        len(res.Text),
		Origin:       req.Origin,
		Transcript:   transcript,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn("failed to publish conversion event", "conversion_id", res.ID, "error", err)
	}
}

func (p *Processor) publishFailure(req Request, names []string, cause error) {
	if p.publisher == nil {
		return
	}
	err := p.publisher.PublishFailure(hermes.FailureEvent{
		RequestID: req.RequestID,
		Format:    batchFormat(names),
		Files:     names,
		Reason:    convert.FailureReason(cause),
		Error:     cause.Error(),
		Origin:    req.Origin,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn("failed to publish failure event", "error", err)
	}
}

// batchFormat is the format the batch was routed as, taken from its first file.
func batchFormat(names []string) string {
	if len(names) == 0 {
		return convert.FormatUnknown.String()
	}
	return convert.DetectFormat(names[0]).String()
}

func sourceNames(sources []convert.Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return names
}
