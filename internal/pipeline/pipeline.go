package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/deepscan/internal/model"
	"github.com/ppiankov/deepscan/internal/score"
)

// Observer receives analysis outcomes, e.g. for metrics
type Observer interface {
	ObserveAnalysis(report *model.AnalysisReport)
	ObserveCanceled(mt model.MediaType)
}

// Pipeline orchestrates one analysis: sample, score, classify, narrate, assemble
type Pipeline struct {
	sampler    score.Sampler
	catalog    *score.Catalog
	scorer     *score.Scorer
	classifier *score.Classifier
	templater  *score.Templater
	renderer   *Renderer
	delay      time.Duration
	logger     *slog.Logger
	observer   Observer
	now        func() time.Time
}

// Option customizes a Pipeline
type Option func(*pipelineOptions)

type pipelineOptions struct {
	source   score.Source
	sampler  score.Sampler
	catalog  *score.Catalog
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// WithSource sets the randomness for both sampling and feature scoring
func WithSource(src score.Source) Option {
	return func(o *pipelineOptions) { o.source = src }
}

// WithSampler replaces the probability sampler, e.g. with score.FixedSampler in tests
func WithSampler(s score.Sampler) Option {
	return func(o *pipelineOptions) { o.sampler = s }
}

// WithCatalog replaces the built-in feature catalog
func WithCatalog(c *score.Catalog) Option {
	return func(o *pipelineOptions) { o.catalog = c }
}

// WithLogger sets the structured logger (nil = discard)
func WithLogger(l *slog.Logger) Option {
	return func(o *pipelineOptions) { o.logger = l }
}

// WithObserver registers an outcome observer
func WithObserver(obs Observer) Option {
	return func(o *pipelineOptions) { o.observer = obs }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(o *pipelineOptions) { o.now = now }
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) *Pipeline {
	o := pipelineOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.source == nil {
		o.source = score.NewSource(cfg.Analysis.Seed)
	}
	if o.sampler == nil {
		o.sampler = score.NewBimodalSampler(o.source)
	}
	if o.catalog == nil {
		o.catalog = score.DefaultCatalog()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.now == nil {
		o.now = time.Now
	}

	thresholds := score.ThresholdsFromConfig(cfg.Scoring)

	return &Pipeline{
		sampler:    o.sampler,
		catalog:    o.catalog,
		scorer:     score.NewScorer(o.source, thresholds),
		classifier: score.NewClassifier(thresholds),
		templater:  score.NewTemplater(thresholds),
		renderer:   NewRenderer(cfg.Output.IncludeFooter),
		delay:      cfg.Analysis.Delay,
		logger:     o.logger,
		observer:   o.observer,
		now:        o.now,
	}
}

// Analyze produces a report immediately, without simulated latency
func (p *Pipeline) Analyze(mt model.MediaType, media model.MediaHandle) (*model.AnalysisReport, error) {
	if !mt.Valid() {
		return nil, &model.InvalidMediaTypeError{Value: string(mt)}
	}
	report, err := p.BuildReport(mt, media, p.sampler.Sample())
	if err != nil {
		return nil, err
	}
	p.record(report)
	return report, nil
}

// BuildReport assembles a report for a given fake-probability.
// Only feature scores consume randomness.
func (p *Pipeline) BuildReport(mt model.MediaType, media model.MediaHandle, fakeProbability int) (*model.AnalysisReport, error) {
	// 1. Catalog lookup doubles as media type validation
	defs, err := p.catalog.DefinitionsFor(mt)
	if err != nil {
		return nil, err
	}

	// 2. Feature scores conditioned on the probability
	features := p.scorer.Score(defs, fakeProbability)

	// 3. Narrative
	conclusion, err := p.templater.Describe(mt, fakeProbability)
	if err != nil {
		return nil, fmt.Errorf("describe: %w", err)
	}

	// 4. Assemble
	return &model.AnalysisReport{
		ID:              "analysis_" + uuid.NewString(),
		MediaType:       mt,
		Media:           media,
		OverallScore:    100 - fakeProbability,
		FakeProbability: fakeProbability,
		Features:        features,
		Conclusion:      conclusion,
		Verdict:         p.classifier.Classify(fakeProbability),
		CreatedAt:       p.now().UTC(),
	}, nil
}

// AnalyzeWithDelay runs a delayed analysis and waits for it.
// If ctx ends first the timer is stopped and model.ErrCanceled is returned with no report.
func (p *Pipeline) AnalyzeWithDelay(ctx context.Context, mt model.MediaType, media model.MediaHandle) (*model.AnalysisReport, error) {
	task, err := p.Start(ctx, mt, media)
	if err != nil {
		return nil, err
	}
	return task.Wait(ctx)
}

// Start launches a delayed analysis in the background
func (p *Pipeline) Start(ctx context.Context, mt model.MediaType, media model.MediaHandle) (*Task, error) {
	if !mt.Valid() {
		return nil, &model.InvalidMediaTypeError{Value: string(mt)}
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		mediaType: mt,
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	go t.run(ctx, p, media)

	return t, nil
}

// Delay returns the simulated processing latency
func (p *Pipeline) Delay() time.Duration {
	return p.delay
}

func (p *Pipeline) record(report *model.AnalysisReport) {
	p.logger.Debug("analysis complete",
		"id", report.ID,
		"media_type", report.MediaType,
		"fake_probability", report.FakeProbability,
		"verdict", report.Verdict,
		"processing_time", report.ProcessingTime,
	)
	if p.observer != nil {
		p.observer.ObserveAnalysis(report)
	}
}

// Task is a pending analysis waiting out its simulated latency.
// A cancelled task never exposes a report.
type Task struct {
	mediaType model.MediaType
	done      chan struct{}
	cancel    context.CancelFunc

	// written once before done is closed
	report *model.AnalysisReport
	err    error
}

func (t *Task) run(ctx context.Context, p *Pipeline, media model.MediaHandle) {
	defer close(t.done)
	defer t.cancel()

	start := time.Now()
	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		t.canceled(p)
		return
	case <-timer.C:
	}

	// cancellation racing the timer still wins
	if ctx.Err() != nil {
		t.canceled(p)
		return
	}

	report, err := p.BuildReport(t.mediaType, media, p.sampler.Sample())
	if err != nil {
		t.err = err
		return
	}
	report.ProcessingTime = time.Since(start)
	p.record(report)
	t.report = report
}

func (t *Task) canceled(p *Pipeline) {
	t.err = model.ErrCanceled
	p.logger.Debug("analysis canceled", "media_type", t.mediaType)
	if p.observer != nil {
		p.observer.ObserveCanceled(t.mediaType)
	}
}

// Done is closed when the task finishes or is cancelled
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel stops the task. It is a no-op once the report is ready.
func (t *Task) Cancel() {
	t.cancel()
}

// Result returns the outcome; it blocks until Done is closed
func (t *Task) Result() (*model.AnalysisReport, error) {
	<-t.done
	return t.report, t.err
}

// Wait blocks until the task finishes or ctx ends. On ctx end the task is cancelled
// and drained so no timer or goroutine outlives the call.
func (t *Task) Wait(ctx context.Context) (*model.AnalysisReport, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		t.cancel()
		<-t.done
	}
	return t.report, t.err
}
