package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"argus/bootstrap"

	"github.com/spf13/cobra"
)

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run the syslog collector",
		Long: `Listen for syslog lines on UDP and TCP, turn each into a feed event and
publish it on the configured feed transport.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap.InitConfig(configFile)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return bootstrap.RunCollector(ctx, cfg, logger.Sugar())
		},
	}
}
