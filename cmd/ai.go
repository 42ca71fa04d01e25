package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gauravmishra2744/Awaaj/internal/enrich"
	"github.com/gauravmishra2744/Awaaj/internal/models"
	"github.com/gauravmishra2744/Awaaj/internal/output"
)

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Inspect the AI provider",
}

var aiCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the AI provider is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return aiCheckRun()
	},
}

var aiClassifyCmd = &cobra.Command{
	Use:   "classify <title> [description]",
	Short: "Run the enrichment pipeline on text without storing anything",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub := models.Submission{Title: args[0]}
		if len(args) > 1 {
			sub.Description = args[1]
		}
		return aiClassifyRun(sub)
	},
}

func init() {
	aiCmd.AddCommand(aiCheckCmd)
	aiCmd.AddCommand(aiClassifyCmd)
	rootCmd.AddCommand(aiCmd)
}

func aiCheckRun() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, health, err := newClassifier(cfg)
	if err != nil {
		return err
	}

	ui.Info("AI provider: %s", cfg.AI.Provider)
	if health == nil {
		ui.Info("Provider has no health endpoint")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.AI.Timeout)
	defer cancel()
	if !health.Healthy(ctx) {
		return fmt.Errorf("AI service at %s is unavailable", cfg.AI.BaseURL)
	}
	ui.Success("AI service at %s is healthy", cfg.AI.BaseURL)
	return nil
}

func aiClassifyRun(sub models.Submission) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	classifier, _, err := newClassifier(cfg)
	if err != nil {
		return err
	}
	if classifier == nil {
		return fmt.Errorf("AI is disabled (ai.provider is %q)", cfg.AI.Provider)
	}

	res := enrich.New(classifier, enrich.WithTimeout(cfg.AI.Timeout)).Enrich(context.Background(), sub)
	printEnrichment(res)
	return nil
}

func printEnrichment(res *enrich.Result) {
	ui.Field("Category", fmt.Sprintf("%s (%.0f%%)", res.Category(), res.Confidence()*100))
	if res.Classification != nil && len(res.Classification.Scores) > 0 {
		var parts []string
		for _, name := range models.Categories {
			if score, ok := res.Classification.Scores[name]; ok {
				parts = append(parts, fmt.Sprintf("%s %.2f", name, score))
			}
		}
		ui.Field("Scores", strings.Join(parts, ", "))
	}
	if p := res.Priority; p != nil {
		score := p.Score
		ui.Field("Priority", fmt.Sprintf("%s %s", output.PriorityColor(p.Level), output.ScoreColor(&score)))
		ui.Field("Reasoning", p.Reasoning)
	}
	ui.Field("SLA hours", fmt.Sprintf("%d", res.SLAHours()))
	if res.Embedding != nil {
		ui.Field("Embedding", fmt.Sprintf("%d dimensions", len(res.Embedding.Vector)))
	}

	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Step", "Status", "Duration", "Error"})
	for _, s := range res.Steps {
		status := s.Status
		switch s.Status {
		case enrich.StatusOK:
			status = output.Green(status)
		case enrich.StatusFailed:
			status = output.Red(status)
		}
		_ = table.Append([]string{s.Name, status, s.Duration.Round(time.Millisecond).String(), s.Err})
	}
	_ = table.Render()
}
