package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gauravmishra2744/Awaaj/internal/issues"
	"github.com/gauravmishra2744/Awaaj/internal/models"
	"github.com/gauravmishra2744/Awaaj/internal/output"
)

var issueImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import issue reports from a YAML file",
	Long: `Import issue reports in bulk from a YAML file. Every report is validated,
enriched, and stored exactly as if it had been submitted individually.

The file holds a list of reports:

  - title: Pothole on Main St
    description: Large pothole near the bus stop
    email: citizen@example.com
    location: "12.97, 77.59"
    ward: Ward 12
    city: Bengaluru
    notifyByEmail: true`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueImportRun(args[0])
	},
}

func init() {
	issueCmd.AddCommand(issueImportCmd)
}

// importedReport is one YAML entry.
type importedReport struct {
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	Email         string `yaml:"email"`
	Phone         string `yaml:"phone"`
	MediaURL      string `yaml:"mediaUrl"`
	Location      string `yaml:"location"`
	Ward          string `yaml:"ward"`
	City          string `yaml:"city"`
	PostalCode    string `yaml:"postalCode"`
	NotifyByEmail bool   `yaml:"notifyByEmail"`
}

func (r importedReport) submission() models.Submission {
	return models.Submission{
		Title:         r.Title,
		Description:   r.Description,
		Email:         r.Email,
		Phone:         r.Phone,
		MediaURL:      r.MediaURL,
		Location:      r.Location,
		Ward:          r.Ward,
		City:          r.City,
		PostalCode:    r.PostalCode,
		NotifyByEmail: r.NotifyByEmail,
	}
}

// parseReports decodes the import file.
func parseReports(data []byte) ([]importedReport, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("file is empty")
	}
	var reports []importedReport
	if err := yaml.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("parse reports: %w", err)
	}
	return reports, nil
}

func issueImportRun(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	reports, err := parseReports(data)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	if dryRun {
		for i, r := range reports {
			if err := r.submission().Validate(); err != nil {
				ui.Warning("Report %d (%s): %v", i+1, r.Title, err)
				continue
			}
			ui.DryRunMsg("Would import: %s", r.Title)
		}
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	return importReports(context.Background(), svc, reports)
}

// importReports submits each report, skipping invalid ones. It fails only
// when nothing could be imported.
func importReports(ctx context.Context, svc *issues.Service, reports []importedReport) error {
	var imported, skipped int
	for i, r := range reports {
		out, err := svc.Submit(ctx, r.submission())
		if err != nil {
			ui.Warning("Skipped report %d (%s): %v", i+1, r.Title, err)
			skipped++
			continue
		}
		ui.Success("Imported %s: %s [%s]", output.Cyan(shortID(out.Issue.ID)), out.Issue.Title, out.Issue.Category)
		imported++
	}

	ui.Info("Imported %d, skipped %d", imported, skipped)
	if imported == 0 && skipped > 0 {
		return fmt.Errorf("no reports imported")
	}
	return nil
}
