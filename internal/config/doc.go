// Package config loads the transferd JSON configuration and applies
// defaults and environment overrides.
package config
