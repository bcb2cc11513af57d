package query

import (
	"context"
	"log/slog"
	"os"

	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// QueryEngine defines the interface for querying the product database
type QueryEngine interface {
	SearchProductsByName(ctx context.Context, name string, limit int) ([]types.Product, error)
	SearchByBarcode(ctx context.Context, barcode string) (*types.Product, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// MockEnabled reports whether QUERY_ENGINE_MOCK=true
func MockEnabled() bool {
	return os.Getenv("QUERY_ENGINE_MOCK") == "true"
}

// NewQueryEngine creates a new query engine
// Uses mock engine if QUERY_ENGINE_MOCK environment variable is set
func NewQueryEngine(parquetPath string, logger *slog.Logger) (QueryEngine, error) {
	if MockEnabled() {
		logger.Warn("Using mock query engine", "reason", "QUERY_ENGINE_MOCK=true")
		return NewMockEngine(logger), nil
	}
	return NewEngine(parquetPath, logger)
}
