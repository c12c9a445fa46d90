// Package server exposes the read-only status surface of the sync engine.
//
// The main application entry point starts the Fiber app; this package
// defines its configuration and routes:
//
//   - GET /healthz            liveness probe, unauthenticated
//   - GET /status             engine state, suspensions, last cycle report
//   - GET /watermarks/:table  the persisted watermark map for one table
//
// Everything except the health probe requires the configured API key. The
// surface is strictly read-only: sync cycles are driven by the engine's
// own cadence and by the CLI, never over HTTP.
package server
