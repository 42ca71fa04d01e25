package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauravmishra2744/Awaaj/internal/models"
	"github.com/gauravmishra2744/Awaaj/internal/store"
)

// reportTestIssue files an issue through the report command and returns it.
func reportTestIssue(t *testing.T, title string) *models.Issue {
	t.Helper()
	issueTitle = title
	issueDesc = "Streetlight has been out for a week"
	issueEmail = "citizen@example.com"
	issueLocation = "12.9716, 77.5946"
	issueNotify = true
	t.Cleanup(func() {
		issueTitle, issueDesc, issueEmail, issueLocation, issueNotify = "", "", "", "", false
	})
	require.NoError(t, issueReportRun())

	svc, err := getService()
	require.NoError(t, err)
	list, err := svc.List(context.Background(), store.IssueListFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, list)
	return list[0]
}

func TestIssueReport(t *testing.T) {
	_, out := testEnv(t)
	issue := reportTestIssue(t, "Broken streetlight")

	assert.Contains(t, out.String(), "Reported issue")
	assert.Equal(t, models.CategoryOther, issue.Category)
	assert.Equal(t, models.IssueStatusPending, issue.Status)
	assert.Equal(t, []float64{77.5946, 12.9716}, issue.Location.Coordinates)
}

func TestIssueReport_Invalid(t *testing.T) {
	testEnv(t)
	issueTitle = "Missing email"
	issueDesc = "d"
	t.Cleanup(func() { issueTitle, issueDesc = "", "" })

	err := issueReportRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestIssueReport_DryRun(t *testing.T) {
	dir, _ := testEnv(t)
	dryRun = true
	ui.DryRun = true
	issueTitle, issueDesc, issueEmail = "t", "d", "a@b.com"
	t.Cleanup(func() { issueTitle, issueDesc, issueEmail = "", "", "" })

	require.NoError(t, issueReportRun())
	_, err := os.Stat(filepath.Join(dir, "awaaz.db"))
	assert.True(t, os.IsNotExist(err), "dry run should not open the database")
}

func TestIssueListAndShow(t *testing.T) {
	_, out := testEnv(t)

	require.NoError(t, issueListRun())
	assert.Contains(t, out.String(), "No issues found")

	issue := reportTestIssue(t, "Overflowing drain")
	out.Reset()
	require.NoError(t, issueListRun())
	assert.Contains(t, out.String(), "Overflowing drain")
	assert.Contains(t, out.String(), shortID(issue.ID))

	out.Reset()
	require.NoError(t, issueShowRun(issue.ID[:14]))
	assert.Contains(t, out.String(), "Overflowing drain")
	assert.Contains(t, out.String(), "Issue submitted")

	issueStatus = "bogus"
	t.Cleanup(func() { issueStatus = "" })
	assert.Error(t, issueListRun())
}

func TestIssueStatus(t *testing.T) {
	_, out := testEnv(t)
	issue := reportTestIssue(t, "Open manhole")

	issueChangedBy = "ward-officer"
	issueComment = "Barricaded"
	t.Cleanup(func() { issueChangedBy, issueComment = "", "" })

	require.NoError(t, issueStatusRun(issue.ID, "in_progress"))
	assert.Contains(t, out.String(), "In Progress")

	got, err := service.Get(context.Background(), issue.ID)
	require.NoError(t, err)
	require.Len(t, got.StatusHistory, 2)
	assert.Equal(t, "Barricaded", got.StatusHistory[1].Comment)
	assert.NotNil(t, got.AssignedAt)

	assert.Error(t, issueStatusRun(issue.ID, "escalated"))
	assert.Error(t, issueStatusRun("ZZZZ", "closed"))
}

func TestIssueUpvote(t *testing.T) {
	_, out := testEnv(t)
	issue := reportTestIssue(t, "Fallen tree")

	issueVoter = "voter-1"
	t.Cleanup(func() { issueVoter = "" })

	require.NoError(t, issueUpvoteRun(issue.ID))
	require.NoError(t, issueUpvoteRun(issue.ID))
	assert.Contains(t, out.String(), "already upvoted")

	got, err := service.Get(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Upvotes)
}

func TestIssuePriority(t *testing.T) {
	testEnv(t)
	issue := reportTestIssue(t, "Exposed wiring")

	cmd := &cobra.Command{}
	cmd.Flags().Float64Var(&factorCategoryRisk, "category-risk", 0, "")
	cmd.Flags().Float64Var(&factorLocationDensity, "location-density", 0, "")
	cmd.Flags().Float64Var(&factorCitizenUpvotes, "citizen-upvotes", 0, "")
	cmd.Flags().Float64Var(&factorAgeInDays, "age", 0, "")
	cmd.Flags().Float64Var(&factorSafetyRating, "safety", 0, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--category-risk=100", "--location-density=100", "--safety=100"}))

	require.NoError(t, issuePriorityRun(cmd, issue.ID))
	got, err := service.Get(context.Background(), issue.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PriorityScore)
	assert.Equal(t, 70, *got.PriorityScore)
	assert.Equal(t, models.PriorityHigh, got.PriorityLevel)
}

func TestIssueEdit(t *testing.T) {
	_, out := testEnv(t)
	issue := reportTestIssue(t, "Pothole")

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&issueTitle, "title", "", "")
	cmd.Flags().StringVar(&issueDesc, "desc", "", "")
	cmd.Flags().StringVar(&issuePhone, "phone", "", "")
	cmd.Flags().StringVar(&issueMedia, "media", "", "")
	cmd.Flags().StringVar(&issueLocation, "location", "", "")
	cmd.Flags().StringVar(&issueWard, "ward", "", "")
	cmd.Flags().StringVar(&issueCity, "city", "", "")
	cmd.Flags().StringVar(&issuePostal, "postal-code", "", "")
	cmd.Flags().StringVar(&issueCategory, "category", "", "")
	cmd.Flags().BoolVar(&issueNotify, "notify", false, "")
	t.Cleanup(func() { issueCategory, issueWard, issueCity, issuePostal = "", "", "", "" })

	require.NoError(t, cmd.Flags().Parse([]string{"--title=Pothole on Main St", "--category=Roads & Infrastructure", "--city=Bengaluru"}))
	require.NoError(t, issueEditRun(cmd, issue.ID))
	assert.Contains(t, out.String(), "title, category, city")

	got, err := service.Get(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pothole on Main St", got.Title)
	assert.Equal(t, "Roads & Infrastructure", got.Category)
	assert.Equal(t, "Bengaluru", got.Location.City)
	assert.Equal(t, []float64{77.5946, 12.9716}, got.Location.Coordinates)

	out.Reset()
	require.NoError(t, issueShowRun(issue.ID))
	assert.Contains(t, out.String(), "Bengaluru")

	empty := &cobra.Command{}
	empty.Flags().StringVar(&issueTitle, "title", "", "")
	err = issueEditRun(empty, issue.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no updates specified")
}

func TestIssueDelete(t *testing.T) {
	testEnv(t)
	issue := reportTestIssue(t, "Duplicate report")

	dryRun = true
	ui.DryRun = true
	require.NoError(t, issueDeleteRun(issue.ID))
	_, err := service.Get(context.Background(), issue.ID)
	require.NoError(t, err, "dry run keeps the issue")

	dryRun = false
	ui.DryRun = false
	require.NoError(t, issueDeleteRun(issue.ID))
	_, err = service.Get(context.Background(), issue.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "01HZX0000000", shortID("01HZX00000000000000000000A"))
	assert.Equal(t, "short", shortID("short"))
}
