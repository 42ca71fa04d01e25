// Package enrich attaches AI-derived classification, embedding, and priority
// metadata to a citizen submission before it is persisted.
//
// Every step is best-effort: a failed, timed-out, or malformed step leaves its
// slot in the Result empty and the pipeline carries on.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gauravmishra2744/Awaaj/internal/models"
)

// Classifier is the external AI dependency.
type Classifier interface {
	Classify(ctx context.Context, text string) (*models.Classification, error)
	Embed(ctx context.Context, text string) (*models.Embedding, error)
	Prioritize(ctx context.Context, req models.PriorityRequest) (*models.PriorityAssessment, error)
}

// Step names.
const (
	StepClassify   = "classify"
	StepEmbed      = "embed"
	StepPrioritize = "prioritize"
)

// Step statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ErrUnsupported is wrapped by classifiers that do not offer a step at all.
// Such steps are recorded as skipped rather than failed.
var ErrUnsupported = errors.New("step not supported by provider")

// DefaultTimeout bounds each classifier call when none is configured.
const DefaultTimeout = 30 * time.Second

// StepResult holds the outcome of a single pipeline step.
type StepResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result bundles whichever enrichment steps succeeded. A nil field means the
// step failed or was skipped.
type Result struct {
	Classification *models.Classification     `json:"classification,omitempty"`
	Embedding      *models.Embedding          `json:"embedding,omitempty"`
	Priority       *models.PriorityAssessment `json:"priority,omitempty"`
	Steps          []StepResult               `json:"steps"`
}

// Category returns the classified category, or "Other" when classification failed.
func (r *Result) Category() string {
	if r == nil || r.Classification == nil || r.Classification.Category == "" {
		return models.CategoryOther
	}
	return r.Classification.Category
}

// Confidence returns the classifier confidence, or 0 when classification failed.
func (r *Result) Confidence() float64 {
	if r == nil || r.Classification == nil {
		return 0
	}
	return r.Classification.Confidence
}

// SLAHours returns the SLA window hint, falling back to the 24 hour default.
func (r *Result) SLAHours() int {
	if r == nil || r.Priority == nil || r.Priority.SLAHours <= 0 {
		return models.DefaultSLAHours
	}
	return r.Priority.SLAHours
}

// Step returns the recorded outcome of the named step.
func (r *Result) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Pipeline orchestrates the classify, embed, and prioritize calls.
type Pipeline struct {
	classifier Classifier
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout sets the per-step timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger used for degraded-step warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pipeline. A nil classifier disables AI enrichment entirely.
func New(classifier Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		classifier: classifier,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enrich runs every step against sub and never fails.
//
// Embedding runs concurrently with the classify then prioritize sequence;
// prioritize always sees the resolved (or defaulted) category.
func (p *Pipeline) Enrich(ctx context.Context, sub models.Submission) *Result {
	res := &Result{}
	if p.classifier == nil {
		res.Steps = []StepResult{
			{Name: StepClassify, Status: StatusSkipped},
			{Name: StepEmbed, Status: StatusSkipped},
			{Name: StepPrioritize, Status: StatusSkipped},
		}
		return res
	}

	text := sub.Text()

	var (
		g            errgroup.Group
		embedding    *models.Embedding
		classified   *models.Classification
		prioritized  *models.PriorityAssessment
		embedStep    StepResult
		classifyStep StepResult
		priorityStep StepResult
	)

	g.Go(func() error {
		embedStep = p.run(ctx, StepEmbed, func(ctx context.Context) error {
			var err error
			embedding, err = p.classifier.Embed(ctx, text)
			return emptyResult(embedding == nil, err)
		})
		return nil
	})

	classifyStep = p.run(ctx, StepClassify, func(ctx context.Context) error {
		var err error
		classified, err = p.classifier.Classify(ctx, text)
		return emptyResult(classified == nil, err)
	})
	if classifyStep.Status == StatusOK {
		res.Classification = classified
	}

	req := models.PriorityRequest{
		Title:        sub.Title,
		Description:  sub.Description,
		Text:         text,
		Category:     res.Category(),
		Location:     sub.Location,
		Upvotes:      sub.Upvotes,
		CommentCount: sub.CommentCount,
	}
	priorityStep = p.run(ctx, StepPrioritize, func(ctx context.Context) error {
		var err error
		prioritized, err = p.classifier.Prioritize(ctx, req)
		return emptyResult(prioritized == nil, err)
	})

	_ = g.Wait() // steps report through StepResult, never through the group

	if embedStep.Status == StatusOK {
		res.Embedding = embedding
	}
	if priorityStep.Status == StatusOK {
		res.Priority = prioritized
	}
	res.Steps = []StepResult{classifyStep, embedStep, priorityStep}
	return res
}

// run executes one step under its own timeout. A timeout is reported like any
// other failure.
func (p *Pipeline) run(ctx context.Context, name string, fn func(context.Context) error) StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := fn(stepCtx)
	sr := StepResult{Name: name, Status: StatusOK, Duration: time.Since(start)}
	switch {
	case errors.Is(err, ErrUnsupported):
		sr.Status = StatusSkipped
		p.logger.Debug("enrichment step skipped", "step", name, "reason", err)
	case err != nil:
		sr.Status = StatusFailed
		sr.Err = err.Error()
		p.logger.Warn("enrichment step failed", "step", name, "error", err, "duration", sr.Duration)
	}
	return sr
}

var errEmptyResult = errors.New("classifier returned no result")

func emptyResult(empty bool, err error) error {
	if err == nil && empty {
		return errEmptyResult
	}
	return err
}
