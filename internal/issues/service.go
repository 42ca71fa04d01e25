// Package issues is the application layer shared by the REST API, the MCP
// server, and the CLI. It sequences validation, enrichment, lifecycle rules,
// persistence, and notifications.
package issues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gauravmishra2744/Awaaj/internal/analytics"
	"github.com/gauravmishra2744/Awaaj/internal/enrich"
	"github.com/gauravmishra2744/Awaaj/internal/lifecycle"
	"github.com/gauravmishra2744/Awaaj/internal/models"
	"github.com/gauravmishra2744/Awaaj/internal/store"
)

// HealthChecker reports whether the AI dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Service implements the issue use cases.
type Service struct {
	store    store.Store
	pipeline *enrich.Pipeline
	engine   *lifecycle.Engine
	health   HealthChecker
	logger   *slog.Logger
}

// NewService wires a Service. health may be nil when AI is disabled.
func NewService(s store.Store, p *enrich.Pipeline, e *lifecycle.Engine, health HealthChecker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, pipeline: p, engine: e, health: health, logger: logger}
}

// Submission is the outcome of Submit.
type Submission struct {
	Issue      *models.Issue  `json:"issue"`
	Enrichment *enrich.Result `json:"aiAnalysis"`
}

// Submit validates, enriches, initializes, and stores a new issue. Only
// validation and persistence errors are returned; AI failures degrade to defaults.
func (s *Service) Submit(ctx context.Context, sub models.Submission) (*Submission, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	res := s.pipeline.Enrich(ctx, sub)
	issue := s.engine.Initialize(sub, res)
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("store issue: %w", err)
	}
	s.logger.Info("issue submitted", "id", issue.ID, "category", issue.Category, "priority", issue.PriorityLevel)

	s.engine.NotifySubmitted(ctx, issue)
	return &Submission{Issue: issue, Enrichment: res}, nil
}

// Get returns one issue with its SLA status refreshed.
func (s *Service) Get(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	s.engine.EvaluateSLA(issue, s.engine.Now())
	return issue, nil
}

// Find resolves an issue by full ID or unique case-insensitive ID prefix.
func (s *Service) Find(ctx context.Context, idOrPrefix string) (*models.Issue, error) {
	if issue, err := s.Get(ctx, idOrPrefix); err == nil {
		return issue, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	all, err := s.store.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}
	upper := strings.ToUpper(idOrPrefix)
	var matches []*models.Issue
	for _, issue := range all {
		if strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue %s: %w", idOrPrefix, store.ErrNotFound)
	case 1:
		s.engine.EvaluateSLA(matches[0], s.engine.Now())
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: ambiguous issue ID %s matches %d issues", models.ErrValidation, idOrPrefix, len(matches))
	}
}

// List returns issues matching filter with SLA statuses refreshed.
func (s *Service) List(ctx context.Context, filter store.IssueListFilter) ([]*models.Issue, error) {
	issues, err := s.store.ListIssues(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.engine.Now()
	for _, issue := range issues {
		s.engine.EvaluateSLA(issue, now)
	}
	return issues, nil
}

// UpdateStatus transitions an issue and, once committed, notifies the citizen.
func (s *Service) UpdateStatus(ctx context.Context, id string, to models.IssueStatus, actor, comment string) (*models.Issue, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, to)
	}
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("%w: changedBy required", models.ErrValidation)
	}

	issue, err := s.store.UpdateIssue(ctx, id, func(issue *models.Issue) error {
		return s.engine.Transition(issue, to, actor, comment)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("issue status changed", "id", id, "status", to, "by", actor)

	s.engine.NotifyStatusChanged(ctx, issue)
	return issue, nil
}

// Patch holds editable fields; nil fields are left unchanged.
type Patch struct {
	Title         *string `json:"title,omitempty"`
	Description   *string `json:"description,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	MediaURL      *string `json:"mediaUrl,omitempty"`
	Location      *string `json:"location,omitempty"`
	Ward          *string `json:"ward,omitempty"`
	City          *string `json:"city,omitempty"`
	PostalCode    *string `json:"postalCode,omitempty"`
	Category      *string `json:"category,omitempty"`
	NotifyByEmail *bool   `json:"notifyByEmail,omitempty"`
	UpdatedBy     string  `json:"updatedBy,omitempty"`
}

// Edit applies patch, records one FieldChange per changed field, and notifies
// the citizen of the changes.
func (s *Service) Edit(ctx context.Context, id string, patch Patch) (*models.Issue, []models.FieldChange, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, nil, fmt.Errorf("%w: title cannot be empty", models.ErrValidation)
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return nil, nil, fmt.Errorf("%w: description cannot be empty", models.ErrValidation)
	}
	if patch.Category != nil && strings.TrimSpace(*patch.Category) == "" {
		return nil, nil, fmt.Errorf("%w: category cannot be empty", models.ErrValidation)
	}

	var changes []models.FieldChange
	issue, err := s.store.UpdateIssue(ctx, id, func(issue *models.Issue) error {
		changes = changes[:0]
		now := s.engine.Now()
		record := func(field, oldValue, newValue string) {
			changes = append(changes, models.FieldChange{
				Field: field, OldValue: oldValue, NewValue: newValue, UpdatedAt: now, UpdatedBy: patch.UpdatedBy,
			})
		}
		setString := func(field string, dst *string, v *string) {
			if v != nil && *v != *dst {
				record(field, *dst, *v)
				*dst = *v
			}
		}

		setString("title", &issue.Title, patch.Title)
		setString("description", &issue.Description, patch.Description)
		setString("phone", &issue.Phone, patch.Phone)
		setString("mediaUrl", &issue.MediaURL, patch.MediaURL)
		setString("category", &issue.Category, patch.Category)
		if patch.Location != nil {
			old := ""
			if issue.Location != nil {
				old = issue.Location.Address
			}
			if *patch.Location != old {
				record("location", old, *patch.Location)
				loc := models.ParseLocation(*patch.Location)
				if issue.Location != nil {
					if loc == nil {
						loc = &models.Location{}
					}
					loc.Ward, loc.City, loc.PostalCode = issue.Location.Ward, issue.Location.City, issue.Location.PostalCode
				}
				issue.Location = loc
			}
		}
		setArea := func(field string, pick func(*models.Location) *string, v *string) {
			if v == nil {
				return
			}
			val := strings.TrimSpace(*v)
			old := ""
			if issue.Location != nil {
				old = *pick(issue.Location)
			}
			if val == old {
				return
			}
			if issue.Location == nil {
				issue.Location = &models.Location{}
			}
			record(field, old, val)
			*pick(issue.Location) = val
		}
		setArea("ward", func(l *models.Location) *string { return &l.Ward }, patch.Ward)
		setArea("city", func(l *models.Location) *string { return &l.City }, patch.City)
		setArea("postalCode", func(l *models.Location) *string { return &l.PostalCode }, patch.PostalCode)
		if patch.NotifyByEmail != nil && *patch.NotifyByEmail != issue.NotifyByEmail {
			record("notifyByEmail", strconv.FormatBool(issue.NotifyByEmail), strconv.FormatBool(*patch.NotifyByEmail))
			issue.NotifyByEmail = *patch.NotifyByEmail
		}

		if len(changes) > 0 {
			issue.UpdateHistory = append(issue.UpdateHistory, changes...)
			issue.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.engine.NotifyUpdated(ctx, issue, changes)
	return issue, changes, nil
}

// Upvote records voter's support; repeat votes are no-ops. The returned bool
// reports whether the vote was new.
func (s *Service) Upvote(ctx context.Context, id, voter string) (*models.Issue, bool, error) {
	if strings.TrimSpace(voter) == "" {
		return nil, false, fmt.Errorf("%w: voterId required", models.ErrValidation)
	}
	var added bool
	issue, err := s.store.UpdateIssue(ctx, id, func(issue *models.Issue) error {
		added = s.engine.Upvote(issue, voter)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return issue, added, nil
}

// RecomputePriority scores the issue locally. With factors nil the factors
// are derived from the issue's category, upvotes, and age.
func (s *Service) RecomputePriority(ctx context.Context, id string, factors *models.PriorityFactors) (*models.Issue, error) {
	return s.store.UpdateIssue(ctx, id, func(issue *models.Issue) error {
		if factors != nil {
			f := *factors
			issue.PriorityFactors = &f
		} else {
			issue.PriorityFactors = s.engine.DeriveFactors(issue)
		}
		s.engine.RecomputePriority(issue)
		issue.PriorityReasoning = "Recomputed locally from weighted factors"
		return nil
	})
}

// Delete removes an issue permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteIssue(ctx, id); err != nil {
		return err
	}
	s.logger.Info("issue deleted", "id", id)
	return nil
}

// Overview aggregates dashboard analytics over all stored issues.
func (s *Service) Overview(ctx context.Context) (*analytics.Overview, error) {
	issues, err := s.List(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}
	return analytics.Summarize(issues, s.engine.Now()), nil
}

// AIPerformance reports classifier confidence and the priority score histogram.
func (s *Service) AIPerformance(ctx context.Context) (*analytics.AIPerformance, error) {
	issues, err := s.List(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}
	return analytics.Performance(issues), nil
}

// LocationInsights groups stored issues by ward and city.
func (s *Service) LocationInsights(ctx context.Context) ([]analytics.LocationInsight, error) {
	issues, err := s.List(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}
	return analytics.LocationInsights(issues), nil
}

// AIHealthy reports whether the AI dependency answers its health check.
func (s *Service) AIHealthy(ctx context.Context) bool {
	if s.health == nil {
		return false
	}
	return s.health.Healthy(ctx)
}
