package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"pulse/internal/auth"
	"pulse/internal/config"
)

var loginNoBrowser bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the Pulse backend via your browser",
	Long: `login starts a local callback listener, opens the identity provider's
authorization page in your browser, and stores the resulting credential in
the pulse config file.`,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newRPCClient(cfg)
	if err != nil {
		return err
	}

	flow, err := auth.NewFlow(auth.FlowConfig{
		AuthorizeURL: cfg.AuthorizeURL,
		ClientID:     cfg.ClientID,
		CallbackPort: cfg.CallbackPort,
		Exchanger:    client,
	})
	if err != nil {
		return err
	}

	authURL, wait, err := flow.Start(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Open the following URL in your browser to log in:\n\n  %s\n\n", authURL)

	if !loginNoBrowser {
		// Best effort; the URL is printed either way.
		if err := auth.OpenBrowser(authURL); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser automatically: %v\n", err)
		}
	}

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(cmd.ErrOrStderr()))
	sp.Suffix = " Waiting for login to complete in your browser..."
	sp.Start()

	token, err := wait(cmd.Context())
	sp.Stop()
	if err != nil {
		return err
	}

	cfg.Token = token
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	client.SetCredential(token.AccessToken)

	fmt.Fprintln(cmd.OutOrStdout(), "Login successful.")
	if !token.ExpiresAt.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "Credential expires at %s.\n", token.ExpiresAt.Format(time.RFC3339))
	}

	return nil
}

func init() {
	loginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "print the login URL without opening a browser")
	rootCmd.AddCommand(loginCmd)
}
