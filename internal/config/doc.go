// Package config holds the configuration of a ghcrawler run.
//
// Values come from three layers, later ones winning:
//  1. NewConfig defaults
//  2. the YAML configuration file (.ghcrawler, see FindConfigFile)
//  3. command line flags
//
// Validate reports problems as the sentinel errors in errors.go so callers
// can use errors.Is.
package config
