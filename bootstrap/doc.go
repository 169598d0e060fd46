// Package bootstrap wires configuration, storage, detection and transports
// into a running process and owns its lifecycle.
//
// Usage:
//
//	app, err := bootstrap.NewApp(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx, cancel := context.WithCancel(context.Background())
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	app.WaitForShutdown()
//	cancel()
//	app.Shutdown()
package bootstrap
