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

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 15 * time.Minute

// Login throttling per client IP
const (
	LoginMaxAttempts = 5
	LoginWindow      = time.Minute
)

// Event stream keepalive
const EventHeartbeatInterval = 30 * time.Second

// Attendance watcher resubscribe backoff
const (
	AttendanceRetryMin = time.Second
	AttendanceRetryMax = 30 * time.Second
)

// Redis store re-reads watched paths on this interval in case a pub/sub
// message was lost.
const StoreResyncInterval = 30 * time.Second
