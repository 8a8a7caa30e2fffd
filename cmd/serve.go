package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pulse/internal/config"
	"pulse/internal/mcpserver"
	"pulse/internal/rpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdin/stdout",
	Long: `serve exposes the Pulse backend as MCP tools over stdio, for use by AI
assistants. The config file is watched while serving so a credential
refreshed by 'pulse login' in another terminal is picked up without a
restart.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
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

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.NewServer(client, rootCmd.Version)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ServeStdio(ctx)
	})
	g.Go(func() error {
		return watchCredential(ctx, path, client)
	})

	return g.Wait()
}

// watchCredential reloads the stored credential when the config file changes.
// Watches the parent directory since editors and Save replace the file.
func watchCredential(ctx context.Context, path string, client *rpc.Client) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := config.Load(path)
			if err != nil {
				slog.Warn("failed to reload config", "path", path, "error", err)
				continue
			}
			client.SetCredential(cfg.Credential())
			slog.Debug("credential reloaded from config", "path", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
