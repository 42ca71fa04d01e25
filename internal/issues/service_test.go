package issues

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauravmishra2744/Awaaj/internal/enrich"
	"github.com/gauravmishra2744/Awaaj/internal/lifecycle"
	"github.com/gauravmishra2744/Awaaj/internal/models"
	"github.com/gauravmishra2744/Awaaj/internal/store"
)

type stubClassifier struct {
	err error
}

func (c *stubClassifier) Classify(ctx context.Context, text string) (*models.Classification, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &models.Classification{Category: "Roads & Infrastructure", Confidence: 0.92}, nil
}

func (c *stubClassifier) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &models.Embedding{Vector: []float64{0.3, 0.4}}, nil
}

func (c *stubClassifier) Prioritize(ctx context.Context, req models.PriorityRequest) (*models.PriorityAssessment, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &models.PriorityAssessment{Score: 85, Level: models.PriorityHigh, SLAHours: 12}, nil
}

type recordingDispatcher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (d *recordingDispatcher) Send(ctx context.Context, to, subject, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subjects = append(d.subjects, subject)
	return d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subjects)
}

func newTestService(t *testing.T, classifier enrich.Classifier) (*Service, *recordingDispatcher) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	d := &recordingDispatcher{}
	return NewService(s, enrich.New(classifier), lifecycle.New(d), nil, nil), d
}

var pothole = models.Submission{
	Title:         "Pothole on Main St",
	Description:   "Large pothole causing damage",
	Email:         "a@b.com",
	NotifyByEmail: true,
}

func TestSubmit(t *testing.T) {
	svc, d := newTestService(t, &stubClassifier{})
	ctx := context.Background()

	out, err := svc.Submit(ctx, pothole)
	require.NoError(t, err)
	issue := out.Issue
	require.NotEmpty(t, issue.ID)
	assert.Equal(t, "Roads & Infrastructure", issue.Category)
	assert.Equal(t, 85, *issue.PriorityScore)
	assert.Equal(t, issue.CreatedAt.Add(12*time.Hour), *issue.SLADeadline)
	assert.Equal(t, 1, d.count())

	got, err := svc.Get(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.Title, got.Title)
	assert.Equal(t, models.SLAOnTrack, got.SLAStatus)
	require.NotNil(t, got.Embedding)
}

func TestSubmit_AIOutageStillAccepts(t *testing.T) {
	svc, _ := newTestService(t, &stubClassifier{err: errors.New("connection refused")})

	out, err := svc.Submit(context.Background(), pothole)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, out.Issue.Category)
	assert.Zero(t, out.Issue.CategoryConfidence)
	assert.Nil(t, out.Issue.PriorityScore)
	assert.Equal(t, out.Issue.CreatedAt.Add(24*time.Hour), *out.Issue.SLADeadline)
}

func TestSubmit_ValidationRejectsBeforeEnrichment(t *testing.T) {
	svc, d := newTestService(t, &stubClassifier{})

	_, err := svc.Submit(context.Background(), models.Submission{Title: "No email", Description: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Zero(t, d.count())

	list, err := svc.List(context.Background(), store.IssueListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateStatus(t *testing.T) {
	svc, d := newTestService(t, nil)
	ctx := context.Background()
	out, err := svc.Submit(ctx, pothole)
	require.NoError(t, err)
	id := out.Issue.ID

	_, err = svc.UpdateStatus(ctx, id, models.IssueStatusInProgress, "officer42", "")
	require.NoError(t, err)
	issue, err := svc.UpdateStatus(ctx, id, models.IssueStatusResolved, "officer42", "Patched")
	require.NoError(t, err)

	assert.Equal(t, models.IssueStatusResolved, issue.Status)
	require.Len(t, issue.StatusHistory, 3)
	assert.Equal(t, "officer42", issue.StatusHistory[2].ChangedBy)
	assert.NotNil(t, issue.ResolvedAt)
	assert.NotNil(t, issue.AssignedAt)
	assert.Equal(t, 3, d.count(), "one submit mail plus one per transition")

	_, err = svc.UpdateStatus(ctx, id, models.IssueStatus("Escalated"), "officer42", "")
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = svc.UpdateStatus(ctx, id, models.IssueStatusClosed, " ", "")
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = svc.UpdateStatus(ctx, "missing", models.IssueStatusClosed, "officer42", "")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestUpdateStatus_NotificationFailureKeepsTransition(t *testing.T) {
	svc, d := newTestService(t, nil)
	ctx := context.Background()
	out, err := svc.Submit(ctx, pothole)
	require.NoError(t, err)

	d.err = errors.New("smtp down")
	issue, err := svc.UpdateStatus(ctx, out.Issue.ID, models.IssueStatusInProgress, "officer42", "")
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusInProgress, issue.Status)

	got, err := svc.Get(ctx, out.Issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusInProgress, got.Status)
}

func TestEdit(t *testing.T) {
	svc, d := newTestService(t, nil)
	ctx := context.Background()
	out, err := svc.Submit(ctx, pothole)
	require.NoError(t, err)

	title := "Pothole on Main Street"
	loc := "12.97, 77.59"
	same := pothole.Description
	issue, changes, err := svc.Edit(ctx, out.Issue.ID, Patch{Title: &title, Location: &loc, Description: &same, UpdatedBy: "a@b.com"})
	require.NoError(t, err)

	require.Len(t, changes, 2)
	assert.Equal(t, "title", changes[0].Field)
	assert.Equal(t, "Pothole on Main St", changes[0].OldValue)
	assert.Equal(t, "location", changes[1].Field)
	assert.Equal(t, title, issue.Title)
	assert.Equal(t, []float64{77.59, 12.97}, issue.Location.Coordinates)
	assert.Len(t, issue.UpdateHistory, 2)
	assert.Equal(t, 2, d.count())

	_, changes, err = svc.Edit(ctx, out.Issue.ID, Patch{Title: &title})
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, 2, d.count(), "no-op edits send nothing")

	empty := ""
	_, _, err = svc.Edit(ctx, out.Issue.ID, Patch{Title: &empty})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestEdit_RejectsBlankCategory(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	out, err := svc.Submit(ctx, pothole)
	require.NoError(t, err)

	for _, c := range []string{"", "   "} {
		_, _, err = svc.Edit(ctx, out.Issue.ID, Patch{Category: &c})
		assert.True(t, errors.Is(err, models.ErrValidation), "category %q", c)
	}

	got, err := svc.Get(ctx, out.Issue.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Issue.Category, got.Category)
}

func TestEdit_AreaFields(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	out, err := svc.Submit(ctx, pothole)
	require.NoError(t, err)
	require.Nil(t, out.Issue.Location)

	ward, city := "Ward 12", " Pune "
	issue, changes, err := svc.Edit(ctx, out.Issue.ID, Patch{Ward: &ward, City: &city})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "ward", changes[0].Field)
	assert.Equal(t, "city", changes[1].Field)
	assert.Equal(t, "Pune", changes[1].NewValue)
	require.NotNil(t, issue.Location)
	assert.Equal(t, "Ward 12", issue.Location.Ward)
	assert.Equal(t, "Pune", issue.Location.City)

	loc := "18.52, 73.85"
	issue, changes, err = svc.Edit(ctx, out.Issue.ID, Patch{Location: &loc, City: &city})
	require.NoError(t, err)
	require.Len(t, changes, 1, "unchanged city is not recorded")
	assert.Equal(t, []float64{73.85, 18.52}, issue.Location.Coordinates)
	assert.Equal(t, "Ward 12", issue.Location.Ward, "location edits keep the area")
	assert.Equal(t, "Pune", issue.Location.City)
}

func TestSubmit_AreaFields(t *testing.T) {
	svc, _ := newTestService(t, nil)
	sub := pothole
	sub.Ward, sub.City, sub.PostalCode = "Ward 3", "Nagpur", "440001"
	out, err := svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.NotNil(t, out.Issue.Location)
	assert.Equal(t, "Ward 3", out.Issue.Location.Ward)
	assert.Equal(t, "Nagpur", out.Issue.Location.City)
	assert.Equal(t, "440001", out.Issue.Location.PostalCode)
	assert.Empty(t, out.Issue.Location.Address)
}

func TestAIPerformanceAndLocationInsights(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	for _, city := range []string{"Pune", "Pune", "Nagpur"} {
		sub := pothole
		sub.Ward, sub.City = "Ward 1", city
		_, err := svc.Submit(ctx, sub)
		require.NoError(t, err)
	}

	perf, err := svc.AIPerformance(ctx)
	require.NoError(t, err)
	assert.Len(t, perf.PriorityDistribution, 5)

	insights, err := svc.LocationInsights(ctx)
	require.NoError(t, err)
	require.Len(t, insights, 2)
	assert.Equal(t, "Pune", insights[0].City)
	assert.Equal(t, 2, insights[0].IssueCount)
	assert.Equal(t, "Nagpur", insights[1].City)
}

func TestUpvote(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	out, err := svc.Submit(ctx, pothole)
	require.NoError(t, err)

	issue, added, err := svc.Upvote(ctx, out.Issue.ID, "v1")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, issue.Upvotes)

	issue, added, err = svc.Upvote(ctx, out.Issue.ID, "v1")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, issue.Upvotes)

	_, _, err = svc.Upvote(ctx, out.Issue.ID, "")
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestRecomputePriority(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	out, err := svc.Submit(ctx, pothole)
	require.NoError(t, err)

	issue, err := svc.RecomputePriority(ctx, out.Issue.ID, &models.PriorityFactors{CategoryRisk: 100, LocationDensity: 100, AgeInDays: 100})
	require.NoError(t, err)
	assert.Equal(t, 70, *issue.PriorityScore)
	assert.Equal(t, models.PriorityHigh, issue.PriorityLevel)

	issue, err = svc.RecomputePriority(ctx, out.Issue.ID, nil)
	require.NoError(t, err)
	// Category "Other" risks 30; location density 100 is kept from the previous factors.
	assert.Equal(t, 36, *issue.PriorityScore)
	assert.Equal(t, models.PriorityLow, issue.PriorityLevel)
}

func TestDeleteAndOverview(t *testing.T) {
	svc, _ := newTestService(t, &stubClassifier{})
	ctx := context.Background()
	a, err := svc.Submit(ctx, pothole)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, pothole)
	require.NoError(t, err)

	o, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, o.TotalIssues)
	assert.Len(t, o.HighPriorityRecent, 2)

	require.NoError(t, svc.Delete(ctx, a.Issue.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, a.Issue.ID), store.ErrNotFound))

	o, err = svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, o.TotalIssues)
	assert.False(t, svc.AIHealthy(ctx))
}

func TestFind_ByPrefix(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	out, err := svc.Submit(ctx, pothole)
	require.NoError(t, err)
	id := out.Issue.ID

	got, err := svc.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	got, err = svc.Find(ctx, strings.ToLower(id[:20]))
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	_, err = svc.Find(ctx, "ZZZZ")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
