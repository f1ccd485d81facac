// Package config provides configuration structures and utilities for decision-scraper.
// It defines crawl limits, extraction provider settings, output preferences,
// the optional YAML config file with per-site overrides, and API key lookup
// from flags, the environment and .env files.
package config
