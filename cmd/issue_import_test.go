package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauravmishra2744/Awaaj/internal/store"
)

const sampleReports = `
- title: Pothole on Main St
  description: Large pothole near the bus stop
  email: one@example.com
  location: "12.97, 77.59"
  ward: Ward 12
  city: Bengaluru
  notifyByEmail: true
- title: Garbage pile
  description: Not collected for three days
  email: two@example.com
- title: Missing email
  description: This one is invalid
`

func TestParseReports(t *testing.T) {
	reports, err := parseReports([]byte(sampleReports))
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, "Pothole on Main St", reports[0].Title)
	assert.Equal(t, "12.97, 77.59", reports[0].Location)
	assert.True(t, reports[0].NotifyByEmail)
	assert.False(t, reports[1].NotifyByEmail)

	sub := reports[0].submission()
	assert.NoError(t, sub.Validate())
	assert.Equal(t, "Ward 12", sub.Ward)
	assert.Equal(t, "Bengaluru", sub.City)
	assert.Error(t, reports[2].submission().Validate())
}

func TestParseReports_Errors(t *testing.T) {
	_, err := parseReports([]byte("   \n"))
	assert.Error(t, err)

	_, err = parseReports([]byte("title: not a list"))
	assert.Error(t, err)
}

func TestIssueImport(t *testing.T) {
	dir, out := testEnv(t)
	path := filepath.Join(dir, "reports.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleReports), 0644))

	require.NoError(t, issueImportRun(path))
	assert.Contains(t, out.String(), "Imported 2, skipped 1")

	list, err := service.List(context.Background(), store.IssueListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestIssueImport_NothingValid(t *testing.T) {
	dir, _ := testEnv(t)
	path := filepath.Join(dir, "reports.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- title: only a title\n"), 0644))

	err := issueImportRun(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reports imported")
}

func TestIssueImport_MissingFile(t *testing.T) {
	testEnv(t)
	err := issueImportRun("/nonexistent/reports.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file")
}
