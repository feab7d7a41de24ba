// Package config loads and validates YAML configuration for the
// realtime session layer.
//
// Values wrapped in ${VAR} are expanded from the environment at load
// time. Missing optional fields fall back to the defaults in
// defaults.go; Validate rejects configurations the transport cannot
// honor.
package config
