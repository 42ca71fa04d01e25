package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauravmishra2744/Awaaj/internal/models"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("done %d", 42)
	assert.Contains(t, out.String(), "done 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog(t *testing.T) {
	u, out, _ := newTestUI()
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())

	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestDryRunMsg(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRunMsg("would delete %s", "issue")
	assert.Empty(t, errOut.String())

	u.DryRun = true
	u.DryRunMsg("would delete %s", "issue")
	assert.Contains(t, errOut.String(), "[DRY-RUN]")
	assert.Contains(t, errOut.String(), "would delete issue")
}

func TestField(t *testing.T) {
	u, out, _ := newTestUI()
	u.Field("Category", "Water & Sanitation")
	u.Field("Phone", "")
	assert.Contains(t, out.String(), "Water & Sanitation")
	assert.NotContains(t, out.String(), "Phone")
}

func TestColorHelpers(t *testing.T) {
	assert.Contains(t, StatusColor(models.IssueStatusPending), "Pending")
	assert.Contains(t, StatusColor(models.IssueStatusOnHold), "On Hold")
	assert.Equal(t, "Closed", StatusColor(models.IssueStatusClosed))

	assert.Contains(t, PriorityColor(models.PriorityHigh), "High")
	assert.Equal(t, "Urgent", PriorityColor("Urgent"))

	assert.Contains(t, SLAColor(models.SLAOverdue), "Overdue")
	assert.Contains(t, SLAColor(models.SLAAtRisk), "At-Risk")
}

func TestScoreColor(t *testing.T) {
	assert.Equal(t, "-", ScoreColor(nil))
	score := 72
	assert.Contains(t, ScoreColor(&score), "72")
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"ID", "Title"})
	require.NotNil(t, table)

	table.Append([]string{"01HZX", "Broken streetlight"})
	table.Append([]string{"01HZY", "Open manhole"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.True(t, strings.Contains(result, "Broken streetlight"), "table output should contain titles")
	assert.True(t, strings.Contains(result, "Open manhole"), "table output should contain titles")
}
