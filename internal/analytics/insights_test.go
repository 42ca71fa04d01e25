package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauravmishra2744/Awaaj/internal/models"
)

func TestPerformance(t *testing.T) {
	issues := []*models.Issue{
		issue("1", "Roads & Infrastructure", models.PriorityLow, intp(0), models.IssueStatusPending, time.Hour),
		issue("2", "Roads & Infrastructure", models.PriorityMedium, intp(45), models.IssueStatusPending, time.Hour),
		issue("3", "Environment", models.PriorityHigh, intp(80), models.IssueStatusPending, time.Hour),
		issue("4", "Environment", models.PriorityHigh, intp(100), models.IssueStatusPending, time.Hour),
		issue("5", "Other", models.PriorityMedium, nil, models.IssueStatusPending, time.Hour),
	}
	issues[0].CategoryConfidence = 0.9
	issues[1].CategoryConfidence = 0.6
	issues[2].CategoryConfidence = 0.3
	issues[3].CategoryConfidence = 0.6
	issues[4].CategoryConfidence = 0

	p := Performance(issues)

	assert.Equal(t, 4, p.Classification.Total, "defaulted issues are not classified")
	require.NotNil(t, p.Classification.AvgConfidence)
	assert.Equal(t, 0.6, *p.Classification.AvgConfidence)
	assert.Equal(t, 0.3, *p.Classification.MinConfidence)
	assert.Equal(t, 0.9, *p.Classification.MaxConfidence)

	require.Len(t, p.PriorityDistribution, 5)
	assert.Equal(t, "0-19", p.PriorityDistribution[0].Label)
	assert.Equal(t, "80-100", p.PriorityDistribution[4].Label)
	counts := make([]int, len(p.PriorityDistribution))
	for i, b := range p.PriorityDistribution {
		counts[i] = b.Count
	}
	assert.Equal(t, []int{1, 0, 1, 0, 2}, counts)
	assert.Equal(t, 1, p.Unscored)
}

func TestPerformance_Empty(t *testing.T) {
	p := Performance(nil)
	assert.Zero(t, p.Classification.Total)
	assert.Nil(t, p.Classification.AvgConfidence)
	assert.Len(t, p.PriorityDistribution, 5)
}

func TestLocationInsights(t *testing.T) {
	at := func(id, cat, ward, city string, score *int) *models.Issue {
		is := issue(id, cat, models.PriorityMedium, score, models.IssueStatusPending, time.Hour)
		is.Location = &models.Location{Ward: ward, City: city}
		return is
	}
	issues := []*models.Issue{
		at("1", "Environment", "Ward 5", "Bengaluru", intp(40)),
		at("2", "Waste Management", "Ward 5", "Bengaluru", intp(60)),
		at("3", "Environment", "Ward 5", "Bengaluru", nil),
		at("4", "Roads & Infrastructure", "Ward 9", "Mumbai", nil),
		at("5", "Other", "", "", nil),
		issue("6", "Other", models.PriorityLow, nil, models.IssueStatusPending, time.Hour),
	}

	got := LocationInsights(issues)
	require.Len(t, got, 2)

	assert.Equal(t, "Ward 5", got[0].Ward)
	assert.Equal(t, "Bengaluru", got[0].City)
	assert.Equal(t, 3, got[0].IssueCount)
	require.NotNil(t, got[0].AvgPriority)
	assert.Equal(t, 50.0, *got[0].AvgPriority)
	assert.Equal(t, []string{"Environment", "Waste Management"}, got[0].Categories)

	assert.Equal(t, "Mumbai", got[1].City)
	assert.Nil(t, got[1].AvgPriority)
}

func TestLocationInsights_Capped(t *testing.T) {
	var issues []*models.Issue
	for i := range 15 {
		is := issue(string(rune('a'+i)), "Other", models.PriorityLow, nil, models.IssueStatusPending, time.Hour)
		is.Location = &models.Location{Ward: string(rune('A' + i)), City: "Pune"}
		issues = append(issues, is)
	}
	assert.Len(t, LocationInsights(issues), locationInsightLimit)
}
