// Package config loads and validates world client configuration.
//
// Configuration is YAML on disk. Field shapes are checked against an
// embedded CUE schema before the world address is parsed as a felt.
package config
