package cmd

import (
	"context"
	"fmt"

	"argus/bootstrap"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the detection pipeline",
		Long: `Start the feed consumer, the correlation scheduler and the health/metrics
API, and run until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, logger, err := bootstrap.InitConfig(configFile)
	if err != nil {
		return err
	}
	sugar := logger.Sugar()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	app, err := bootstrap.NewApp(ctx, cfg, logger)
	if err != nil {
		sugar.Errorw("Startup failed", "error", err)
		_ = logger.Sync()
		return fmt.Errorf("startup failed: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start: %w", err)
	}

	sugar.Info("argus is running")
	app.WaitForShutdown()
	cancel()
	app.Shutdown()
	return nil
}
