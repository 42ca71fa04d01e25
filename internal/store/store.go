package store

import (
	"context"
	"errors"

	"github.com/gauravmishra2744/Awaaj/internal/models"
)

// ErrNotFound is returned when an issue id does not exist.
var ErrNotFound = errors.New("not found")

// IssueListFilter specifies filters for listing issues.
type IssueListFilter struct {
	Status        models.IssueStatus
	Category      string
	PriorityLevel models.PriorityLevel
	Email         string
	Limit         int
}

// UpdateFunc mutates an issue inside an atomic read-modify-write. Returning
// an error aborts the update and leaves the stored issue unchanged.
type UpdateFunc func(issue *models.Issue) error

// Store defines the persistence interface for issues.
type Store interface {
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	// UpdateIssue loads the issue, applies fn, and persists the result in a
	// single transaction. Status history entries may only be appended and
	// upvoters only added.
	UpdateIssue(ctx context.Context, id string, fn UpdateFunc) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
