package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var queryRange string

var queryCmd = &cobra.Command{
	Use:   "query <promql>",
	Short: "Run a PromQL query through the Pulse backend",
	Args:  cobra.ExactArgs(1),
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

		params := map[string]any{"query": args[0]}
		if queryRange != "" {
			params["range"] = queryRange
		}

		result, err := client.Call(cmd.Context(), "query_prometheus", params)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode query result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryRange, "range", "", "query range, e.g. 1h, 24h")
	rootCmd.AddCommand(queryCmd)
}
