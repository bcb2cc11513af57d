package mcpgo

import (
	"time"

	"github.com/noot-app/nutrition-log-mcp-server/internal/logbook"
)

// HTTP server constants
const (
	// HTTP timeouts
	HTTPReadTimeout  = 15 * time.Second
	HTTPWriteTimeout = 15 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Shutdown timeout
	HTTPShutdownTimeout = 30 * time.Second

	// Health check results are reused for this long
	HealthCacheDuration = 10 * time.Second
)

// Tool limits
const (
	DefaultSearchLimit = 3
	MaxSearchLimit     = 10

	DefaultEntriesLimit = logbook.DefaultEntriesLimit
	MaxEntriesLimit     = logbook.MaxEntriesLimit
)
