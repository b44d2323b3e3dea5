// Package config loads and validates lumenctl configuration.
//
// Configuration is layered: hardcoded defaults, then an optional YAML
// file, then LUMEN_* environment variable overrides. Secrets (the cloud
// token, AES keys, broker passwords) are expected via environment
// variables so they stay out of files.
package config
