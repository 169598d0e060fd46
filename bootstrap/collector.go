package bootstrap

import (
	"context"
	"fmt"

	"argus/config"
	"argus/ingest"

	"go.uber.org/zap"
)

// RunCollector serves the syslog listeners until ctx is cancelled
func RunCollector(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) error {
	publisher, err := InitPublisher(cfg, sugar)
	if err != nil {
		return fmt.Errorf("collector publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			sugar.Warnw("Publisher close error", "error", err)
		}
	}()

	collector, err := ingest.NewCollector(ingest.CollectorConfig{
		UDPAddr:       cfg.Collector.UDPAddr,
		TCPAddr:       cfg.Collector.TCPAddr,
		RateLimit:     cfg.Collector.RateLimit,
		Burst:         cfg.Collector.Burst,
		MaxSources:    cfg.Collector.MaxSources,
		MaxLineLength: cfg.Collector.MaxLineLength,
	}, publisher, sugar)
	if err != nil {
		return err
	}
	if err := collector.Start(ctx); err != nil {
		return err
	}
	sugar.Infow("Syslog collector started",
		"udp", cfg.Collector.UDPAddr,
		"tcp", cfg.Collector.TCPAddr,
		"transport", cfg.Feed.Transport)

	<-ctx.Done()
	sugar.Info("Stopping syslog collector")
	collector.Stop()
	return nil
}
