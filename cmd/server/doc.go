// Package main is the entry point for the Bloom backend server.
//
// The server accepts prompts, pasted content, images, audio and uploaded files,
// extracts what it can, and answers through an OpenAI-compatible completion
// provider, translating the answer when a non-English language is requested.
//
// Architecture:
//
//	Frontend → Bloom backend → Completion provider (Groq)
//	                        → Session workspaces (local disk)
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - CLI flags (override env vars)
//
// Usage:
//
//	GROQ_API_KEY=... ./server -port 8000
//
//	# Development mode (console logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
