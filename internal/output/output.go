package output

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/gauravmishra2744/Awaaj/internal/models"
)

// UI writes colored CLI output and respects verbose/dry-run modes.
type UI struct {
	Verbose bool
	DryRun  bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	bold          = color.New(color.Bold).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// StatusColor colors an issue status.
func StatusColor(status models.IssueStatus) string {
	s := string(status)
	switch status {
	case models.IssueStatusPending:
		return yellow(s)
	case models.IssueStatusInProgress:
		return cyan(s)
	case models.IssueStatusResolved:
		return green(s)
	case models.IssueStatusOnHold:
		return red(s)
	default:
		return s
	}
}

// PriorityColor colors a priority level.
func PriorityColor(level models.PriorityLevel) string {
	s := string(level)
	switch level {
	case models.PriorityHigh:
		return red(s)
	case models.PriorityMedium:
		return yellow(s)
	case models.PriorityLow:
		return green(s)
	default:
		return s
	}
}

// SLAColor colors an SLA status.
func SLAColor(status models.SLAStatus) string {
	s := string(status)
	switch status {
	case models.SLAOnTrack:
		return green(s)
	case models.SLAAtRisk:
		return yellow(s)
	case models.SLAOverdue:
		return red(s)
	default:
		return s
	}
}

// ScoreColor formats a priority score, "-" when unscored.
func ScoreColor(score *int) string {
	if score == nil {
		return "-"
	}
	s := strconv.Itoa(*score)
	switch models.LevelForScore(float64(*score)) {
	case models.PriorityHigh:
		return red(s)
	case models.PriorityMedium:
		return yellow(s)
	default:
		return green(s)
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
	}
}

// Field prints one "label: value" detail line. Empty values are skipped.
func (u *UI) Field(label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(u.Out, "%-14s %s\n", bold(label+":"), value)
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}
