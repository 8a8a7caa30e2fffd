package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pulse/internal/config"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		if cfg.Token == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No credential stored.")
			return nil
		}

		cfg.Token = nil
		if err := config.Save(path, cfg); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
