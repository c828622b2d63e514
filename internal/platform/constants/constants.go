// Copyright (c) 2026 ArsipKTP. All rights reserved.
// Author: dev@arsipdigital.id

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Collaborators: Deadlines for the AI extractor and spreadsheet archive.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "arsipktp-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	// Generous because capture uploads carry base64-encoded JPEG payloads.
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Collaborator Timing

const (
	// ExtractionTimeout bounds a single AI field-extraction call.
	ExtractionTimeout = 60 * time.Second

	// ArchiveTimeout bounds a single archive list or append call.
	ArchiveTimeout = 20 * time.Second

	// GeolocationTimeout bounds the single-shot startup coordinate fetch.
	GeolocationTimeout = 5 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldCount   = "count"
	FieldStatus  = "status"
	FieldChecks  = "checks"
)

// # Identity Record

const (
	// NIKLength is the exact digit count of a valid national identity number.
	NIKLength = 16

	// DefaultNationality pre-fills Kewarganegaraan on manual entry.
	DefaultNationality = "WNI"

	// DefaultValidity pre-fills BerlakuHingga on manual entry (lifetime cards).
	DefaultValidity = "SEUMUR HIDUP"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	// RedisKeyHistorySnapshot holds the last good archive listing for warm starts.
	RedisKeyHistorySnapshot = "archive:history_snapshot"

	// HistorySnapshotTTL caps the age of a warm-start snapshot.
	HistorySnapshotTTL = 24 * time.Hour
)
