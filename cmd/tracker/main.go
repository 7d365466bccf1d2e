package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mftcargo/tracker/cmd/tracker/cli"
	"github.com/mftcargo/tracker/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Cargo tracking back office",
	Long: `Runs the cargo tracking HTTP API.

Without a subcommand the API server is started. Configuration is read from
the environment (PG_DSN, REDIS_ADDR, JWT_SECRET, ...).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(serveCmd, cli.NewJobsCommand(5*time.Second))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
