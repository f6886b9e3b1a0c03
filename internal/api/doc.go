// Package api implements the HTTP REST API and WebSocket server for the
// PWM output service.
//
// This package provides:
//   - REST endpoints for output state, history, device frequency and all-off
//   - WebSocket hub broadcasting output and frequency changes
//   - Optional JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The server is a read/write surface over the output manager. It registers
// itself as a manager observer so every state change, whatever its source
// (MQTT, API, restore), is pushed to connected WebSocket clients.
//
// # Security
//
// When a JWT secret is configured every /api/v1 route except /health,
// /metrics and /ws requires a Bearer token. WebSocket connections use
// single-use tickets so the token never appears in a URL. With no secret
// the API is open, which suits a service bound to a private network.
package api
