// Package config provides 12-factor configuration for the Bloom backend.
//
// Configuration is loaded from environment variables with defaults taken from
// struct tags. CLI flags can override the listen port and host.
//
// Configuration Sections:
//   - Server: listen address, connection cap, CORS origins, shutdown grace
//   - Provider: completion endpoint, API key, timeouts, retry budget, model catalog file
//   - Sessions: workspace directory, TTL, sweep interval, upload ceiling
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("listening on", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, MAX_CONNECTIONS, CORS_ORIGINS, SHUTDOWN_TIMEOUT
//   - GROQ_API_KEY, PROVIDER_BASE_URL, PROVIDER_TIMEOUT, PROVIDER_LONG_TIMEOUT,
//     PROVIDER_MAX_ELAPSED, PROVIDER_MAX_ATTEMPTS, PROVIDER_BACKOFF_BASE,
//     PROVIDER_BACKOFF_MAX, PROVIDER_RPS, PROVIDER_MODEL_CATALOG
//   - SESSION_DIR, SESSION_TTL, SESSION_SWEEP_INTERVAL, UPLOAD_MAX_BYTES
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
