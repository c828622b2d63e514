// Copyright (c) 2026 ArsipKTP. All rights reserved.
// Author: dev@arsipdigital.id

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (extractor, archive, cache) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the ArsipKTP API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// AI field extraction (Gemini, API-key flavor)
	GeminiAPIKey string `env:"GEMINI_API_KEY,required"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	// Spreadsheet archive (Google Apps Script web app URL)
	ArchiveURL string `env:"ARCHIVE_URL,required"`

	// GeolocationURL is the single-shot IP geolocation endpoint queried at
	// startup. Empty disables provenance coordinates entirely.
	GeolocationURL string `env:"GEOLOCATION_URL" envDefault:"http://ip-api.com/json/"`

	// Key-Value Cache (Redis). Optional: empty disables the history
	// snapshot cache and the service runs purely in-memory.
	RedisURL string `env:"REDIS_URL"`

	// Cross-Origin Resource Sharing: comma-separated exact origins allowed
	// in addition to the production suffix check.
	ExtraOrigins []string `env:"EXTRA_ORIGINS" envSeparator:","`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the exact origins allowed on top of the production
// suffix check.
func (c *Config) AllowedOrigins() []string {
	return c.ExtraOrigins
}

// CacheEnabled reports whether the optional Redis snapshot cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}
