package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score    float64
		expected PriorityLevel
	}{
		{100, PriorityHigh},
		{70, PriorityHigh},
		{69.99, PriorityMedium},
		{40, PriorityMedium},
		{39.5, PriorityLow},
		{0, PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, LevelForScore(tt.score), "score %v", tt.score)
	}
}

func TestParseIssueStatus(t *testing.T) {
	tests := []struct {
		in       string
		expected IssueStatus
	}{
		{"Pending", IssueStatusPending},
		{"in_progress", IssueStatusInProgress},
		{"In Progress", IssueStatusInProgress},
		{"resolved", IssueStatusResolved},
		{"CLOSED", IssueStatusClosed},
		{"on-hold", IssueStatusOnHold},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIssueStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseIssueStatus("archived")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestSubmissionValidate(t *testing.T) {
	valid := Submission{Title: "Pothole on Main St", Description: "Large pothole", Email: "a@b.com"}
	assert.NoError(t, valid.Validate())

	missing := Submission{Title: "Only a title"}
	err := missing.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "description")
	assert.Contains(t, err.Error(), "email")

	bad := valid
	bad.Email = "not-an-email"
	err = bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestSubmissionText(t *testing.T) {
	s := Submission{Title: "Pothole on Main St", Description: "Large pothole causing damage"}
	assert.Equal(t, "Pothole on Main St. Large pothole causing damage", s.Text())
}

func TestSubmissionParsedLocation(t *testing.T) {
	assert.Nil(t, Submission{Location: " ", Ward: " "}.ParsedLocation())

	loc := Submission{Location: "28.6139, 77.2090", Ward: " Ward 5 ", City: "Delhi"}.ParsedLocation()
	require.NotNil(t, loc)
	assert.Equal(t, []float64{77.2090, 28.6139}, loc.Coordinates)
	assert.Equal(t, "Ward 5", loc.Ward)
	assert.Equal(t, "Delhi", loc.City)

	loc = Submission{PostalCode: "110001"}.ParsedLocation()
	require.NotNil(t, loc)
	assert.Empty(t, loc.Address)
	assert.Equal(t, "110001", loc.PostalCode)
}

func TestParseLocation(t *testing.T) {
	assert.Nil(t, ParseLocation("   "))

	loc := ParseLocation("28.6139, 77.2090")
	require.NotNil(t, loc)
	assert.Equal(t, []float64{77.2090, 28.6139}, loc.Coordinates, "coordinates are [lon, lat]")
	assert.Equal(t, "28.6139, 77.2090", loc.Address)

	loc = ParseLocation("MG Road, Bengaluru")
	require.NotNil(t, loc)
	assert.Nil(t, loc.Coordinates)
	assert.Equal(t, "MG Road, Bengaluru", loc.Address)

	loc = ParseLocation("123, 456")
	require.NotNil(t, loc)
	assert.Nil(t, loc.Coordinates, "out-of-range pair is an address")
}

func TestIssueDerivedFields(t *testing.T) {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	issue := &Issue{CreatedAt: created}

	assert.Equal(t, 3, issue.AgeDays(created.Add(75*time.Hour)))
	assert.Equal(t, -1, issue.ResolutionMinutes())

	resolved := created.Add(90 * time.Minute)
	issue.ResolvedAt = &resolved
	assert.Equal(t, 90, issue.ResolutionMinutes())

	assert.False(t, issue.SLABreached())
	issue.SLAStatus = SLAOverdue
	assert.True(t, issue.SLABreached())
}

func TestIssueClone_NoAliasing(t *testing.T) {
	score := 55
	orig := &Issue{
		PriorityScore: &score,
		StatusHistory: []StatusEntry{{Status: IssueStatusPending}},
		UpvotedBy:     []string{"u1"},
		Location:      &Location{Coordinates: []float64{1, 2}},
	}
	c := orig.Clone()
	*c.PriorityScore = 90
	c.StatusHistory[0].Status = IssueStatusClosed
	c.UpvotedBy[0] = "u2"
	c.Location.Coordinates[0] = 9

	assert.Equal(t, 55, *orig.PriorityScore)
	assert.Equal(t, IssueStatusPending, orig.StatusHistory[0].Status)
	assert.Equal(t, "u1", orig.UpvotedBy[0])
	assert.Equal(t, 1.0, orig.Location.Coordinates[0])
}

func TestIssueJSON_PreservesHistoryOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	issue := Issue{
		ID:     "01TEST",
		Status: IssueStatusResolved,
		StatusHistory: []StatusEntry{
			{Status: IssueStatusPending, ChangedAt: base, ChangedBy: "system"},
			{Status: IssueStatusInProgress, ChangedAt: base.Add(time.Hour), ChangedBy: "officer42"},
			{Status: IssueStatusOnHold, ChangedAt: base.Add(2 * time.Hour), ChangedBy: "officer42", Comment: "waiting on parts"},
			{Status: IssueStatusResolved, ChangedAt: base.Add(3 * time.Hour), ChangedBy: "officer7"},
		},
	}

	data, err := json.Marshal(issue)
	require.NoError(t, err)

	var back Issue
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, issue.StatusHistory, back.StatusHistory)
	assert.Nil(t, back.PriorityScore, "absent score stays absent")
}
