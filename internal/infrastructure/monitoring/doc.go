/*
Package monitoring collects Prometheus metrics on a private registry.

Metrics implements the recorder interfaces of the session store, the content
extractor, the completion client and the analysis orchestrator, so each
component reports its own events:

	metrics := monitoring.NewMetrics()
	store, _ := session.NewManager(cfg, logger, session.WithMetrics(metrics))
	client := completion.New(pcfg, logger, completion.WithMetrics(metrics))

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

HTTP series are labeled by route pattern. Snapshot returns running totals for
the health endpoint.
*/
package monitoring
