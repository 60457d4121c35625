// Package logging provides the slog construction and attribute helpers used
// across scribe. Console output uses a compact key=value handler; the json
// format emits machine-readable records with normalized ts/level/msg keys.
package logging
