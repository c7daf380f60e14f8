// Package logging builds the service's zap logger.
//
// Production mode writes JSON with durations in milliseconds; development mode
// writes colored console lines at whatever level is configured. Every component
// receives a *zap.Logger and names its own child ("session", "extract",
// "completion", "analysis", "http").
//
//	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer logger.Sync()
package logging
