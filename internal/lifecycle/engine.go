// Package lifecycle owns issue state: initialization, status transitions,
// SLA evaluation, local priority scoring, upvotes, and the notifications those
// changes trigger.
//
// Mutating operations work on an *models.Issue owned by the caller, normally
// inside a store.UpdateIssue callback so each change is applied atomically.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/gauravmishra2744/Awaaj/internal/enrich"
	"github.com/gauravmishra2744/Awaaj/internal/models"
	"github.com/gauravmishra2744/Awaaj/internal/notify"
)

// Factor weights for the local priority score.
const (
	WeightCategoryRisk    = 0.35
	WeightLocationDensity = 0.25
	WeightCitizenUpvotes  = 0.20
	WeightAgeInDays       = 0.10
	WeightSafetyRating    = 0.10
)

// atRiskFraction is the share of the SLA window below which an open issue is At-Risk.
const atRiskFraction = 0.25

// ActorSystem is recorded on system-initiated history entries.
const ActorSystem = "system"

// Engine applies lifecycle rules. The zero value is not usable; use New.
type Engine struct {
	dispatcher notify.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger used for notification failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine. A nil dispatcher disables notifications.
func New(dispatcher notify.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		dispatcher: dispatcher,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

// Initialize builds a new Pending issue from a validated submission and its
// enrichment result. The ID is left empty for the store to assign.
func (e *Engine) Initialize(sub models.Submission, res *enrich.Result) *models.Issue {
	now := e.Now()
	issue := &models.Issue{
		Title:         sub.Title,
		Description:   sub.Description,
		Phone:         sub.Phone,
		Email:         sub.Email,
		MediaURL:      sub.MediaURL,
		NotifyByEmail: sub.NotifyByEmail,
		Location:      sub.ParsedLocation(),

		Category:           res.Category(),
		CategoryConfidence: res.Confidence(),
		PriorityLevel:      models.PriorityMedium,

		Status: models.IssueStatusPending,
		StatusHistory: []models.StatusEntry{{
			Status:    models.IssueStatusPending,
			ChangedAt: now,
			ChangedBy: ActorSystem,
			Comment:   "Issue submitted",
		}},

		Upvotes:      0,
		UpvotedBy:    []string{},
		CitizenCount: 1,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if res != nil {
		if res.Classification != nil {
			issue.CategoryScores = res.Classification.Scores
		}
		if res.Embedding != nil {
			issue.Embedding = res.Embedding
		}
		if p := res.Priority; p != nil {
			score := p.Score
			issue.PriorityScore = &score
			issue.PriorityLevel = p.Level
			issue.PriorityFactors = p.Factors
			issue.PriorityReasoning = p.Reasoning
		}
	}

	deadline := now.Add(time.Duration(res.SLAHours()) * time.Hour)
	issue.SLADeadline = &deadline
	issue.SLAStatus = models.SLAOnTrack
	return issue
}

// Transition moves issue to status to on behalf of actor. Any known status
// may follow any other; only unknown statuses are rejected. Exactly one
// history entry is appended and the SLA deadline is left untouched.
func (e *Engine) Transition(issue *models.Issue, to models.IssueStatus, actor, comment string) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrValidation, to)
	}
	at := e.Now()

	issue.Status = to
	issue.StatusHistory = append(issue.StatusHistory, models.StatusEntry{
		Status:    to,
		ChangedAt: at,
		ChangedBy: actor,
		Comment:   comment,
	})

	switch to {
	case models.IssueStatusInProgress:
		issue.AssignedAt = firstTime(issue.AssignedAt, at)
	case models.IssueStatusResolved:
		issue.ResolvedAt = firstTime(issue.ResolvedAt, at)
	case models.IssueStatusClosed:
		issue.ClosedAt = firstTime(issue.ClosedAt, at)
	}

	issue.UpdatedAt = at
	e.EvaluateSLA(issue, at)
	return nil
}

func firstTime(current *time.Time, at time.Time) *time.Time {
	if current != nil {
		return current
	}
	return &at
}

// Score returns the weighted 0-100 priority score for f. A nil f scores 0.
func Score(f *models.PriorityFactors) int {
	if f == nil {
		return 0
	}
	sum := f.CategoryRisk*WeightCategoryRisk +
		f.LocationDensity*WeightLocationDensity +
		f.CitizenUpvotes*WeightCitizenUpvotes +
		f.AgeInDays*WeightAgeInDays +
		f.SafetyRating*WeightSafetyRating
	return int(math.Round(sum))
}

// RecomputePriority replaces the issue's score and level with the local
// weighted computation over its current factors.
func (e *Engine) RecomputePriority(issue *models.Issue) {
	score := Score(issue.PriorityFactors)
	issue.PriorityScore = &score
	issue.PriorityLevel = models.LevelForScore(float64(score))
	issue.UpdatedAt = e.Now()
}

// DeriveFactors fills factors from what the issue itself knows: the category
// risk table, its upvotes, and its age. Location density and safety rating
// are kept from existing factors.
func (e *Engine) DeriveFactors(issue *models.Issue) *models.PriorityFactors {
	f := &models.PriorityFactors{}
	if issue.PriorityFactors != nil {
		*f = *issue.PriorityFactors
	}
	f.CategoryRisk = models.CategoryRisk(issue.Category)
	f.CitizenUpvotes = math.Min(float64(issue.Upvotes)*10, 100)
	f.AgeInDays = math.Min(float64(issue.AgeDays(e.Now())), 100)
	return f
}

// Upvote records voter's support. It reports whether the voter was new;
// repeat votes change nothing.
func (e *Engine) Upvote(issue *models.Issue, voter string) bool {
	if voter == "" || slices.Contains(issue.UpvotedBy, voter) {
		return false
	}
	issue.UpvotedBy = append(issue.UpvotedBy, voter)
	issue.Upvotes = len(issue.UpvotedBy)
	issue.UpdatedAt = e.Now()
	return true
}

// EvaluateSLA refreshes issue.SLAStatus relative to now.
func (e *Engine) EvaluateSLA(issue *models.Issue, now time.Time) {
	issue.SLAStatus = SLAStatusAt(issue, now)
}

// SLAStatusAt derives the SLA status of issue at now without mutating it.
func SLAStatusAt(issue *models.Issue, now time.Time) models.SLAStatus {
	if issue.SLADeadline == nil {
		return models.SLAOnTrack
	}
	deadline := *issue.SLADeadline

	switch issue.Status {
	case models.IssueStatusResolved, models.IssueStatusClosed:
		done := issue.ResolvedAt
		if done == nil {
			done = issue.ClosedAt
		}
		if done != nil && done.After(deadline) {
			return models.SLAOverdue
		}
		if done == nil && now.After(deadline) {
			return models.SLAOverdue
		}
		return models.SLAOnTrack
	}

	if now.After(deadline) {
		return models.SLAOverdue
	}
	window := deadline.Sub(issue.CreatedAt)
	if window > 0 && float64(deadline.Sub(now)) < float64(window)*atRiskFraction {
		return models.SLAAtRisk
	}
	return models.SLAOnTrack
}

// NotifySubmitted tells the citizen their issue was received.
func (e *Engine) NotifySubmitted(ctx context.Context, issue *models.Issue) {
	msg := e.message(issue)
	e.dispatch(ctx, issue, "Issue Submitted Successfully", notify.TemplateSubmitted, msg)
}

// NotifyStatusChanged tells the citizen about the latest status transition.
func (e *Engine) NotifyStatusChanged(ctx context.Context, issue *models.Issue) {
	msg := e.message(issue)
	if n := len(issue.StatusHistory); n > 0 {
		last := issue.StatusHistory[n-1]
		msg.ChangedBy = last.ChangedBy
		msg.Comment = last.Comment
	}
	e.dispatch(ctx, issue, "Issue Status Update: "+string(issue.Status), notify.TemplateStatus, msg)
}

// NotifyUpdated tells the citizen which fields of their issue were edited.
func (e *Engine) NotifyUpdated(ctx context.Context, issue *models.Issue, changes []models.FieldChange) {
	if len(changes) == 0 {
		return
	}
	msg := e.message(issue)
	for _, c := range changes {
		msg.Changes = append(msg.Changes, notify.Change{Field: c.Field, OldValue: c.OldValue, NewValue: c.NewValue})
	}
	e.dispatch(ctx, issue, "Issue Updated", notify.TemplateUpdated, msg)
}

func (e *Engine) message(issue *models.Issue) notify.Message {
	m := notify.Message{
		Title:    issue.Title,
		IssueID:  issue.ID,
		Status:   string(issue.Status),
		Category: issue.Category,
		Priority: string(issue.PriorityLevel),
	}
	if issue.SLADeadline != nil {
		m.Deadline = issue.SLADeadline.Format("02 Jan 2006 15:04 MST")
	}
	return m
}

// dispatch sends at most one message. Failures are logged and swallowed.
func (e *Engine) dispatch(ctx context.Context, issue *models.Issue, subject, tmpl string, msg notify.Message) {
	if e.dispatcher == nil || !issue.NotifyByEmail || issue.Email == "" {
		return
	}
	body, err := notify.Render(tmpl, msg)
	if err != nil {
		e.logger.Warn("notification render failed", "issue", issue.ID, "error", err)
		return
	}
	if err := e.dispatcher.Send(ctx, issue.Email, subject, body); err != nil {
		e.logger.Warn("notification send failed", "issue", issue.ID, "to", issue.Email, "error", err)
	}
}
