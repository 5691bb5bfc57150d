package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Archive runs walk every chat in the account, so their route group gets a
// much longer deadline than the regular API.
const ArchiveRequestTimeout = 30 * time.Minute

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Bound on the durable read performed by status lookups.
const StatusReadTimeout = 5 * time.Second

// Background job intervals
const (
	ReconcileJobInterval    = 5 * time.Minute
	ReconcileJobConcurrency = 4
)

// Default rate limiting
const DefaultRateLimitPerMin = 60

// Live message notifications carry at most this many characters of body text.
const MessagePreviewMaxLen = 100
