// Package main is the entry point for the FocusGate gateway.
//
// The gateway is the background brain of a focus-keeping browser
// extension: every navigation the extension observes is streamed here
// over a WebSocket, gated against the active work session and the
// classification cache, and answered with a command to leave the tab
// alone, allow it, or rewrite it to an interstitial page.
//
// Architecture:
//
//	Extension (WebSocket) → Gateway → Analyzer Service (HTTP)
//	                              → Shared KV Store (memory or Redis)
//
// The server provides:
//   - WebSocket bridge for navigation signals and gating commands
//   - REST API for session control and verdict resolution
//   - Server-rendered block and analysis interstitial pages
//   - Prometheus metrics and request tracing
//
// Configuration:
//   - Environment variables (12-factor), optionally via a .env file
//   - Defaults for development
//
// Usage:
//
//	./gateway
//	./gateway -env production.env
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
