package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrValidation marks errors caused by bad caller input.
var ErrValidation = errors.New("validation failed")

// IssueStatus represents the lifecycle state of an issue.
type IssueStatus string

const (
	IssueStatusPending    IssueStatus = "Pending"
	IssueStatusInProgress IssueStatus = "In Progress"
	IssueStatusResolved   IssueStatus = "Resolved"
	IssueStatusClosed     IssueStatus = "Closed"
	IssueStatusOnHold     IssueStatus = "On Hold"
)

// IssueStatuses lists every status in lifecycle order.
var IssueStatuses = []IssueStatus{
	IssueStatusPending,
	IssueStatusInProgress,
	IssueStatusResolved,
	IssueStatusClosed,
	IssueStatusOnHold,
}

// Valid reports whether s is one of the known statuses.
func (s IssueStatus) Valid() bool {
	return slices.Contains(IssueStatuses, s)
}

// ParseIssueStatus accepts the canonical names as well as snake/kebab/lower-case
// variants ("in_progress", "on-hold", "resolved").
func ParseIssueStatus(s string) (IssueStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	for _, st := range IssueStatuses {
		if strings.ToLower(string(st)) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// PriorityLevel is the coarse priority bucket derived from a priority score.
type PriorityLevel string

const (
	PriorityHigh   PriorityLevel = "High"
	PriorityMedium PriorityLevel = "Medium"
	PriorityLow    PriorityLevel = "Low"
)

// LevelForScore maps a 0-100 score onto a priority level.
// 70 and above is High, 40 up to 70 is Medium, everything else is Low.
func LevelForScore(score float64) PriorityLevel {
	switch {
	case score >= 70:
		return PriorityHigh
	case score >= 40:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ParsePriorityLevel parses a level name case-insensitively.
func ParsePriorityLevel(s string) (PriorityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	}
	return "", fmt.Errorf("%w: unknown priority level %q", ErrValidation, s)
}

// SLAStatus describes how an issue is tracking against its SLA deadline.
type SLAStatus string

const (
	SLAOnTrack SLAStatus = "On-Track"
	SLAAtRisk  SLAStatus = "At-Risk"
	SLAOverdue SLAStatus = "Overdue"
)

// CategoryOther is the category used when classification is unavailable.
const CategoryOther = "Other"

// DefaultSLAHours is the SLA window applied when no priority hint is available.
const DefaultSLAHours = 24

// Location is where an issue was reported.
type Location struct {
	Coordinates []float64 `json:"coordinates,omitempty"` // [longitude, latitude]
	Address     string    `json:"address,omitempty"`
	Ward        string    `json:"ward,omitempty"`
	City        string    `json:"city,omitempty"`
	PostalCode  string    `json:"postalCode,omitempty"`
}

// PriorityFactors are the 0-100 inputs to the weighted priority score.
type PriorityFactors struct {
	CategoryRisk    float64 `json:"categoryRisk"`
	LocationDensity float64 `json:"locationDensity"`
	CitizenUpvotes  float64 `json:"citizenUpvotes"`
	AgeInDays       float64 `json:"ageInDays"`
	SafetyRating    float64 `json:"safetyRating"`
}

// StatusEntry is one append-only record in an issue's status history.
type StatusEntry struct {
	Status    IssueStatus `json:"status"`
	ChangedAt time.Time   `json:"changedAt"`
	ChangedBy string      `json:"changedBy"`
	Comment   string      `json:"comment,omitempty"`
}

// FieldChange records a single edited field.
type FieldChange struct {
	Field     string    `json:"field"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// Embedding is a semantic vector used by the external deduplication service.
type Embedding struct {
	Vector []float64 `json:"vector"`
	Model  string    `json:"model,omitempty"`
}

// Issue is a citizen-submitted civic complaint.
type Issue struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email"`
	MediaURL      string    `json:"mediaUrl,omitempty"`
	NotifyByEmail bool      `json:"notifyByEmail"`
	Location      *Location `json:"location,omitempty"`

	Category           string             `json:"category"`
	CategoryConfidence float64            `json:"categoryConfidence"`
	CategoryScores     map[string]float64 `json:"categoryScores,omitempty"`

	PriorityScore     *int             `json:"priorityScore,omitempty"`
	PriorityLevel     PriorityLevel    `json:"priorityLevel"`
	PriorityFactors   *PriorityFactors `json:"priorityFactors,omitempty"`
	PriorityReasoning string           `json:"priorityReasoning,omitempty"`

	SLADeadline *time.Time `json:"slaDeadline,omitempty"`
	SLAStatus   SLAStatus  `json:"slaStatus"`

	Status        IssueStatus   `json:"status"`
	StatusHistory []StatusEntry `json:"statusHistory"`
	AssignedAt    *time.Time    `json:"assignedAt,omitempty"`
	ResolvedAt    *time.Time    `json:"resolvedAt,omitempty"`
	ClosedAt      *time.Time    `json:"closedAt,omitempty"`

	Upvotes      int      `json:"upvotes"`
	UpvotedBy    []string `json:"upvotedBy"`
	CitizenCount int      `json:"citizenCount"`

	Embedding     *Embedding    `json:"embedding,omitempty"`
	UpdateHistory []FieldChange `json:"updateHistory,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AgeDays returns the number of whole days since the issue was created.
func (i *Issue) AgeDays(now time.Time) int {
	if i.CreatedAt.IsZero() {
		return 0
	}
	return int(now.Sub(i.CreatedAt).Hours() / 24)
}

// ResolutionMinutes returns the minutes from creation to resolution, or -1
// when the issue has not been resolved.
func (i *Issue) ResolutionMinutes() int {
	if i.ResolvedAt == nil || i.CreatedAt.IsZero() {
		return -1
	}
	return int(i.ResolvedAt.Sub(i.CreatedAt).Minutes())
}

// SLABreached reports whether the issue is currently overdue.
func (i *Issue) SLABreached() bool {
	return i.SLAStatus == SLAOverdue
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (i *Issue) Clone() *Issue {
	c := *i
	if i.Location != nil {
		loc := *i.Location
		loc.Coordinates = slices.Clone(i.Location.Coordinates)
		c.Location = &loc
	}
	if i.CategoryScores != nil {
		c.CategoryScores = make(map[string]float64, len(i.CategoryScores))
		for k, v := range i.CategoryScores {
			c.CategoryScores[k] = v
		}
	}
	if i.PriorityScore != nil {
		score := *i.PriorityScore
		c.PriorityScore = &score
	}
	if i.PriorityFactors != nil {
		f := *i.PriorityFactors
		c.PriorityFactors = &f
	}
	c.SLADeadline = cloneTime(i.SLADeadline)
	c.AssignedAt = cloneTime(i.AssignedAt)
	c.ResolvedAt = cloneTime(i.ResolvedAt)
	c.ClosedAt = cloneTime(i.ClosedAt)
	c.StatusHistory = slices.Clone(i.StatusHistory)
	c.UpvotedBy = slices.Clone(i.UpvotedBy)
	c.UpdateHistory = slices.Clone(i.UpdateHistory)
	if i.Embedding != nil {
		e := *i.Embedding
		e.Vector = slices.Clone(i.Embedding.Vector)
		c.Embedding = &e
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
