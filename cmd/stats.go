package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gauravmishra2744/Awaaj/internal/analytics"
	"github.com/gauravmishra2744/Awaaj/internal/output"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard analytics",
	Long:  "Summarize stored issues by category, priority, and status with SLA metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statsRun()
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print the overview as JSON")
	rootCmd.AddCommand(statsCmd)
}

func statsRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}
	o, err := svc.Overview(context.Background())
	if err != nil {
		return err
	}

	if statsJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(o)
	}
	printOverview(o)
	return nil
}

func printOverview(o *analytics.Overview) {
	ui.Info("%d issues", o.TotalIssues)
	if o.TotalIssues == 0 {
		return
	}

	ui.Field("On time", strconv.Itoa(o.SLAMetrics.OnTime))
	ui.Field("At risk", output.Yellow(strconv.Itoa(o.SLAMetrics.AtRisk)))
	ui.Field("Overdue", output.Red(strconv.Itoa(o.SLAMetrics.Overdue)))
	if m := o.PriorityMetrics; m.AvgScore != nil {
		ui.Field("Scores", fmt.Sprintf("avg %.1f, min %d, max %d over %d issues", *m.AvgScore, *m.MinScore, *m.MaxScore, m.Scored))
	}

	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Category", "Count", "Avg confidence"})
	for _, c := range o.ByCategory {
		_ = table.Append([]string{c.Category, strconv.Itoa(c.Count), fmt.Sprintf("%.2f", c.AvgConfidence)})
	}
	_ = table.Render()

	fmt.Fprintln(ui.Out)
	table = ui.Table([]string{"Status", "Count"})
	for _, s := range o.ByStatus {
		_ = table.Append([]string{output.StatusColor(s.Status), strconv.Itoa(s.Count)})
	}
	_ = table.Render()

	if len(o.HighPriorityRecent) > 0 {
		fmt.Fprintln(ui.Out)
		ui.Info("Recent high-priority issues")
		table = ui.Table([]string{"ID", "Title", "Category", "Score"})
		for _, is := range o.HighPriorityRecent {
			_ = table.Append([]string{shortID(is.ID), is.Title, is.Category, output.ScoreColor(is.PriorityScore)})
		}
		_ = table.Render()
	}
}
