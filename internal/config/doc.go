// Package config loads, validates, and normalizes scribe configuration.
//
// Configuration comes from a TOML file (~/.config/scribe/config.toml or a
// project-local scribe.toml), with defaults applied first and a small set of
// environment variables applied last so container deployments can override
// the file without editing it.
package config
