/*
Package completion is the client for the remote OpenAI-compatible completion
provider (Groq by default).

# Transport

Requests go through resty on top of a retryablehttp round tripper:

  - At most MaxAttempts attempts (3 by default)
  - Backoff of BackoffBase doubled per retry (1s, 2s), stretched by Retry-After
  - Retried statuses: 408, 429, 500, 502, 503, 504, plus timeouts and
    connection errors
  - Per-attempt timeout chosen by Lane: short (30s) for prompts, long (120s) for
    file analysis and transcription
  - MaxElapsed (3m) bounds the whole sequence; the caller's context cancels it

A circuit breaker sits in front of the transport and opens after repeated
transient failures. An outbound rate limiter caps requests per second.

# Errors

Every failure is an *errs.Error of kind Timeout, Connection, RateLimit,
ProviderServer or Request with a fixed message. Provider response bodies are
logged at debug level and never returned.

# Models

Models are chosen per Category from a Catalog: the first entry wins, and unknown
or empty categories fall back to DefaultModel. LoadCatalog reads a YAML or TOML
override.
*/
package completion
