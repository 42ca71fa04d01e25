package cmd

import (
	"context"

	"github.com/spf13/cobra"

	awaazmcp "github.com/gauravmishra2744/Awaaj/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets assistants report and triage civic issues natively.
Configure an MCP client with:

  {
    "mcpServers": {
      "awaaz": { "command": "awaaz", "args": ["mcp"] }
    }
  }

Available tools: awaaz_report_issue, awaaz_list_issues, awaaz_get_issue,
awaaz_update_status, awaaz_upvote_issue, awaaz_overview`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := getService()
		if err != nil {
			return err
		}
		defer func() { _ = dataStore.Close() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return awaazmcp.NewServer(svc, buildVersion).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
