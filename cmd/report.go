package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pulse/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate and inspect operational reports",
}

var (
	reportWindow string
	reportTitle  string
	reportLimit  int
)

var reportGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new report over a time window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireCredential(cfg); err != nil {
			return err
		}

		client, err := newRPCClient(cfg)
		if err != nil {
			return err
		}

		params := map[string]any{"window": reportWindow}
		if reportTitle != "" {
			params["title"] = reportTitle
		}

		result, err := client.Call(cmd.Context(), "generate_report", params)
		if err != nil {
			return err
		}

		summaries, err := report.SummariesFromRPC(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.RenderTable(summaries))
		return nil
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List previously generated reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireCredential(cfg); err != nil {
			return err
		}

		client, err := newRPCClient(cfg)
		if err != nil {
			return err
		}

		params := map[string]any{}
		if reportLimit > 0 {
			params["limit"] = reportLimit
		}

		result, err := client.Call(cmd.Context(), "list_reports", params)
		if err != nil {
			return err
		}

		summaries, err := report.SummariesFromRPC(result)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No reports yet. Run 'pulse report generate' first.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.RenderTable(summaries))
		return nil
	},
}

var reportGetCmd = &cobra.Command{
	Use:   "get <report-id>",
	Short: "Fetch a report and render it as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid report id %q: %w", args[0], err)
		}

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireCredential(cfg); err != nil {
			return err
		}

		client, err := newRPCClient(cfg)
		if err != nil {
			return err
		}

		result, err := client.Call(cmd.Context(), "get_report", map[string]any{
			"report_id": id,
		})
		if err != nil {
			return err
		}

		r, err := report.FromRPC(result)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.RenderMarkdown(r))
		return nil
	},
}

func init() {
	reportGenerateCmd.Flags().StringVar(&reportWindow, "window", "24h", "report window, e.g. 24h, 7d, 30d")
	reportGenerateCmd.Flags().StringVar(&reportTitle, "title", "", "optional report title")
	reportListCmd.Flags().IntVar(&reportLimit, "limit", 0, "maximum number of reports to list")

	reportCmd.AddCommand(reportGenerateCmd)
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportGetCmd)
	rootCmd.AddCommand(reportCmd)
}
