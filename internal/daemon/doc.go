// Package daemon coordinates the long-running scribe process.
//
// It wires configuration, queue storage, the workflow manager, the model
// cache, and the HTTP job intake into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon exposes queue maintenance
// helpers, accepts job submissions from both the HTTP API and IPC clients,
// and emits dependency health summaries.
//
// Keep orchestration logic here: individual workflow stages live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
