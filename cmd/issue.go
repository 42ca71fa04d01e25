package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gauravmishra2744/Awaaj/internal/issues"
	"github.com/gauravmishra2744/Awaaj/internal/models"
	"github.com/gauravmishra2744/Awaaj/internal/output"
	"github.com/gauravmishra2744/Awaaj/internal/store"
)

var (
	issueTitle    string
	issueDesc     string
	issueEmail    string
	issuePhone    string
	issueMedia    string
	issueLocation string
	issueWard     string
	issueCity     string
	issuePostal   string
	issueCategory string
	issueNotify   bool

	issueStatus   string
	issuePriority string
	issueLimit    int

	issueChangedBy string
	issueComment   string
	issueVoter     string

	factorCategoryRisk    float64
	factorLocationDensity float64
	factorCitizenUpvotes  float64
	factorAgeInDays       float64
	factorSafetyRating    float64
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Report and manage civic issues",
	Long:  "Report issues, move them through their lifecycle, and inspect their history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a new issue",
	Long:  "Report a new issue. The configured AI provider classifies and prioritizes it before it is stored.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueReportRun()
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details and status history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueStatusCmd = &cobra.Command{
	Use:   "status <issue-id> <status>",
	Short: "Move an issue to a new status",
	Long: `Move an issue to a new status and notify the reporter if they opted in.

Statuses: pending, in_progress, resolved, closed, on_hold`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueStatusRun(args[0], args[1])
	},
}

var issueUpvoteCmd = &cobra.Command{
	Use:   "upvote <issue-id>",
	Short: "Record a citizen upvote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpvoteRun(args[0])
	},
}

var issuePriorityCmd = &cobra.Command{
	Use:   "priority <issue-id>",
	Short: "Recompute an issue's priority locally",
	Long: `Recompute the priority score from weighted factors.

Without factor flags the factors are derived from the issue's category,
upvotes, and age. With any factor flag set, the given factors are used as-is.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issuePriorityRun(cmd, args[0])
	},
}

var issueEditCmd = &cobra.Command{
	Use:   "edit <issue-id>",
	Short: "Edit issue fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueEditRun(cmd, args[0])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:   "delete <issue-id>",
	Short: "Delete an issue permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0])
	},
}

func init() {
	issueReportCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueReportCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description (required)")
	issueReportCmd.Flags().StringVar(&issueEmail, "email", "", "Reporter email (required)")
	issueReportCmd.Flags().StringVar(&issuePhone, "phone", "", "Reporter phone")
	issueReportCmd.Flags().StringVar(&issueMedia, "media", "", "Photo or video URL")
	issueReportCmd.Flags().StringVar(&issueLocation, "location", "", `Address or "lat, lon"`)
	issueReportCmd.Flags().StringVar(&issueWard, "ward", "", "Ward or locality")
	issueReportCmd.Flags().StringVar(&issueCity, "city", "", "City")
	issueReportCmd.Flags().StringVar(&issuePostal, "postal-code", "", "Postal code")
	issueReportCmd.Flags().BoolVar(&issueNotify, "notify", false, "Email the reporter on updates")
	_ = issueReportCmd.MarkFlagRequired("title")
	_ = issueReportCmd.MarkFlagRequired("desc")
	_ = issueReportCmd.MarkFlagRequired("email")

	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status")
	issueListCmd.Flags().StringVar(&issueCategory, "category", "", "Filter by category")
	issueListCmd.Flags().StringVar(&issuePriority, "priority", "", "Filter by priority level: high, medium, low")
	issueListCmd.Flags().StringVar(&issueEmail, "email", "", "Filter by reporter email")
	issueListCmd.Flags().IntVar(&issueLimit, "limit", 0, "Maximum issues to show (0 for all)")

	issueStatusCmd.Flags().StringVar(&issueChangedBy, "by", "", "Who made the change (required)")
	issueStatusCmd.Flags().StringVar(&issueComment, "comment", "", "Note recorded in the history")
	_ = issueStatusCmd.MarkFlagRequired("by")

	issueUpvoteCmd.Flags().StringVar(&issueVoter, "voter", "", "Voter identifier (required)")
	_ = issueUpvoteCmd.MarkFlagRequired("voter")

	issuePriorityCmd.Flags().Float64Var(&factorCategoryRisk, "category-risk", 0, "Category risk factor (0-100)")
	issuePriorityCmd.Flags().Float64Var(&factorLocationDensity, "location-density", 0, "Location density factor (0-100)")
	issuePriorityCmd.Flags().Float64Var(&factorCitizenUpvotes, "citizen-upvotes", 0, "Citizen upvotes factor (0-100)")
	issuePriorityCmd.Flags().Float64Var(&factorAgeInDays, "age", 0, "Age factor (0-100)")
	issuePriorityCmd.Flags().Float64Var(&factorSafetyRating, "safety", 0, "Safety rating factor (0-100)")

	issueEditCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueEditCmd.Flags().StringVar(&issueDesc, "desc", "", "New description")
	issueEditCmd.Flags().StringVar(&issuePhone, "phone", "", "New phone")
	issueEditCmd.Flags().StringVar(&issueMedia, "media", "", "New media URL")
	issueEditCmd.Flags().StringVar(&issueLocation, "location", "", "New location")
	issueEditCmd.Flags().StringVar(&issueWard, "ward", "", "New ward")
	issueEditCmd.Flags().StringVar(&issueCity, "city", "", "New city")
	issueEditCmd.Flags().StringVar(&issuePostal, "postal-code", "", "New postal code")
	issueEditCmd.Flags().StringVar(&issueCategory, "category", "", "Override the category")
	issueEditCmd.Flags().BoolVar(&issueNotify, "notify", false, "Email the reporter on updates")
	issueEditCmd.Flags().StringVar(&issueChangedBy, "by", "", "Who made the edit")

	issueCmd.AddCommand(issueReportCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueStatusCmd)
	issueCmd.AddCommand(issueUpvoteCmd)
	issueCmd.AddCommand(issuePriorityCmd)
	issueCmd.AddCommand(issueEditCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueReportRun() error {
	sub := models.Submission{
		Title:         issueTitle,
		Description:   issueDesc,
		Email:         issueEmail,
		Phone:         issuePhone,
		MediaURL:      issueMedia,
		Location:      issueLocation,
		Ward:          issueWard,
		City:          issueCity,
		PostalCode:    issuePostal,
		NotifyByEmail: issueNotify,
	}
	if err := sub.Validate(); err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would report issue: %s", sub.Title)
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	out, err := svc.Submit(context.Background(), sub)
	if err != nil {
		return err
	}

	issue := out.Issue
	ui.Success("Reported issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	ui.Field("Category", fmt.Sprintf("%s (%.0f%%)", issue.Category, issue.CategoryConfidence*100))
	ui.Field("Priority", fmt.Sprintf("%s %s", output.PriorityColor(issue.PriorityLevel), output.ScoreColor(issue.PriorityScore)))
	if issue.SLADeadline != nil {
		ui.Field("SLA deadline", issue.SLADeadline.Local().Format(time.RFC1123))
	}
	for _, step := range out.Enrichment.Steps {
		if step.Err != "" {
			ui.VerboseLog("%s: %s (%s)", step.Name, step.Status, step.Err)
		} else {
			ui.VerboseLog("%s: %s in %s", step.Name, step.Status, step.Duration.Round(time.Millisecond))
		}
	}
	return nil
}

func issueListRun() error {
	filter := store.IssueListFilter{
		Category: issueCategory,
		Email:    issueEmail,
		Limit:    issueLimit,
	}
	if issueStatus != "" {
		st, err := models.ParseIssueStatus(issueStatus)
		if err != nil {
			return err
		}
		filter.Status = st
	}
	if issuePriority != "" {
		lvl, err := models.ParsePriorityLevel(issuePriority)
		if err != nil {
			return err
		}
		filter.PriorityLevel = lvl
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	list, err := svc.List(context.Background(), filter)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Category", "Status", "Priority", "Score", "SLA", "Upvotes"})
	for _, issue := range list {
		_ = table.Append([]string{
			shortID(issue.ID),
			issue.Title,
			issue.Category,
			output.StatusColor(issue.Status),
			output.PriorityColor(issue.PriorityLevel),
			output.ScoreColor(issue.PriorityScore),
			output.SLAColor(issue.SLAStatus),
			strconv.Itoa(issue.Upvotes),
		})
	}
	_ = table.Render()
	return nil
}

func issueShowRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	issue, err := svc.Find(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(issue.ID)), issue.Title)
	ui.Field("Status", output.StatusColor(issue.Status))
	ui.Field("Category", fmt.Sprintf("%s (%.0f%%)", issue.Category, issue.CategoryConfidence*100))
	ui.Field("Priority", fmt.Sprintf("%s %s", output.PriorityColor(issue.PriorityLevel), output.ScoreColor(issue.PriorityScore)))
	ui.Field("Reasoning", issue.PriorityReasoning)
	ui.Field("SLA", output.SLAColor(issue.SLAStatus))
	if issue.SLADeadline != nil {
		ui.Field("SLA deadline", issue.SLADeadline.Format(time.RFC3339))
	}
	ui.Field("Description", issue.Description)
	if issue.Location != nil {
		ui.Field("Location", issue.Location.Address)
		ui.Field("Area", strings.Join(nonEmpty(issue.Location.Ward, issue.Location.City, issue.Location.PostalCode), ", "))
	}
	ui.Field("Reporter", issue.Email)
	ui.Field("Phone", issue.Phone)
	ui.Field("Media", issue.MediaURL)
	ui.Field("Upvotes", strconv.Itoa(issue.Upvotes))
	ui.Field("Created", issue.CreatedAt.Format(time.RFC3339))
	if issue.ResolvedAt != nil {
		ui.Field("Resolved", fmt.Sprintf("%s (%d min)", issue.ResolvedAt.Format(time.RFC3339), issue.ResolutionMinutes()))
	}
	ui.Field("Full ID", issue.ID)

	if len(issue.StatusHistory) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"When", "Status", "By", "Comment"})
		for _, e := range issue.StatusHistory {
			_ = table.Append([]string{e.ChangedAt.Format(time.RFC3339), output.StatusColor(e.Status), e.ChangedBy, e.Comment})
		}
		_ = table.Render()
	}
	return nil
}

func issueStatusRun(id, rawStatus string) error {
	status, err := models.ParseIssueStatus(rawStatus)
	if err != nil {
		return err
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()
	issue, err := svc.Find(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would move issue %s from %s to %s", shortID(issue.ID), issue.Status, status)
		return nil
	}

	updated, err := svc.UpdateStatus(ctx, issue.ID, status, issueChangedBy, issueComment)
	if err != nil {
		return err
	}
	ui.Success("Issue %s is now %s", output.Cyan(shortID(updated.ID)), output.StatusColor(updated.Status))
	return nil
}

func issueUpvoteRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()
	issue, err := svc.Find(ctx, id)
	if err != nil {
		return err
	}

	updated, added, err := svc.Upvote(ctx, issue.ID, issueVoter)
	if err != nil {
		return err
	}
	if !added {
		ui.Info("%s already upvoted issue %s (%d upvotes)", issueVoter, shortID(updated.ID), updated.Upvotes)
		return nil
	}
	ui.Success("Upvoted issue %s (%d upvotes)", output.Cyan(shortID(updated.ID)), updated.Upvotes)
	return nil
}

func issuePriorityRun(cmd *cobra.Command, id string) error {
	var factors *models.PriorityFactors
	for _, name := range []string{"category-risk", "location-density", "citizen-upvotes", "age", "safety"} {
		if cmd.Flags().Changed(name) {
			factors = &models.PriorityFactors{
				CategoryRisk:    factorCategoryRisk,
				LocationDensity: factorLocationDensity,
				CitizenUpvotes:  factorCitizenUpvotes,
				AgeInDays:       factorAgeInDays,
				SafetyRating:    factorSafetyRating,
			}
			break
		}
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()
	issue, err := svc.Find(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would recompute priority for issue %s", shortID(issue.ID))
		return nil
	}

	updated, err := svc.RecomputePriority(ctx, issue.ID, factors)
	if err != nil {
		return err
	}
	ui.Success("Issue %s priority: %s %s", output.Cyan(shortID(updated.ID)),
		output.PriorityColor(updated.PriorityLevel), output.ScoreColor(updated.PriorityScore))
	return nil
}

func issueEditRun(cmd *cobra.Command, id string) error {
	patch := issues.Patch{UpdatedBy: issueChangedBy}
	flags := cmd.Flags()
	if flags.Changed("title") {
		patch.Title = &issueTitle
	}
	if flags.Changed("desc") {
		patch.Description = &issueDesc
	}
	if flags.Changed("phone") {
		patch.Phone = &issuePhone
	}
	if flags.Changed("media") {
		patch.MediaURL = &issueMedia
	}
	if flags.Changed("location") {
		patch.Location = &issueLocation
	}
	if flags.Changed("ward") {
		patch.Ward = &issueWard
	}
	if flags.Changed("city") {
		patch.City = &issueCity
	}
	if flags.Changed("postal-code") {
		patch.PostalCode = &issuePostal
	}
	if flags.Changed("category") {
		patch.Category = &issueCategory
	}
	if flags.Changed("notify") {
		patch.NotifyByEmail = &issueNotify
	}
	if patch == (issues.Patch{UpdatedBy: issueChangedBy}) {
		return fmt.Errorf("no updates specified (use --title, --desc, --phone, --media, --location, --ward, --city, --postal-code, --category, or --notify)")
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()
	issue, err := svc.Find(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would edit issue %s", shortID(issue.ID))
		return nil
	}

	_, changes, err := svc.Edit(ctx, issue.ID, patch)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		ui.Info("Issue %s unchanged", shortID(issue.ID))
		return nil
	}
	fields := make([]string, len(changes))
	for i, c := range changes {
		fields[i] = c.Field
	}
	ui.Success("Updated issue %s: %s", output.Cyan(shortID(issue.ID)), strings.Join(fields, ", "))
	return nil
}

func issueDeleteRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()
	issue, err := svc.Find(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete issue %s: %s", shortID(issue.ID), issue.Title)
		return nil
	}

	if err := svc.Delete(ctx, issue.ID); err != nil {
		return err
	}
	ui.Success("Deleted issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

// shortID returns a truncated ULID for display (first 12 chars).
func nonEmpty(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
