package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// Engine handles DuckDB queries against the parquet dataset
type Engine struct {
	db          *sql.DB
	parquetPath string
	log         *slog.Logger
}

// Ensure Engine implements QueryEngine interface
var _ QueryEngine = (*Engine)(nil)

// productColumns selects nested columns as JSON text so they scan into strings
const productColumns = `
		CAST(code AS VARCHAR),
		CAST(product_name AS VARCHAR),
		CAST(brands AS VARCHAR),
		CAST(to_json(nutriments) AS VARCHAR),
		CAST(link AS VARCHAR)`

// NewEngine creates a new query engine
func NewEngine(parquetPath string, logger *slog.Logger) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	return &Engine{
		db:          db,
		parquetPath: parquetPath,
		log:         logger,
	}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching name literally anywhere in a value
func containsPattern(name string) string {
	return "%" + likeEscaper.Replace(name) + "%"
}

// Close closes the database connection
func (e *Engine) Close() error {
	return e.db.Close()
}

// SearchProductsByName returns products whose name contains name (case-insensitive)
func (e *Engine) SearchProductsByName(ctx context.Context, name string, limit int) ([]types.Product, error) {
	start := time.Now()
	e.log.Debug("SearchProductsByName starting", "name", name, "limit", limit)

	query := `SELECT ` + productColumns + `
		FROM read_parquet(?)
		WHERE CAST(product_name AS VARCHAR) ILIKE ? ESCAPE '\'
		  AND nutriments IS NOT NULL
		LIMIT ?`

	rows, err := e.db.QueryContext(ctx, query, e.parquetPath, containsPattern(name), limit)
	if err != nil {
		e.log.Error("DuckDB query failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []types.Product
	for rows.Next() {
		p, err := e.scanProduct(rows)
		if err != nil {
			e.log.Error("Row scan failed", "error", err)
			continue
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		e.log.Error("Rows iteration failed", "error", err)
		return nil, fmt.Errorf("rows error: %w", err)
	}

	e.log.Info("SearchProductsByName completed", "count", len(results), "duration", time.Since(start))
	return results, nil
}

// SearchByBarcode searches for a product by barcode (exact match). It returns nil, nil when not found.
func (e *Engine) SearchByBarcode(ctx context.Context, barcode string) (*types.Product, error) {
	start := time.Now()
	e.log.Debug("SearchByBarcode starting", "barcode", barcode)

	query := `SELECT ` + productColumns + `
		FROM read_parquet(?)
		WHERE code = ?
		LIMIT 1`

	rows, err := e.db.QueryContext(ctx, query, e.parquetPath, barcode)
	if err != nil {
		e.log.Error("DuckDB barcode query failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("barcode query failed: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		e.log.Debug("No product found for barcode", "barcode", barcode, "duration", time.Since(start))
		return nil, rows.Err()
	}

	p, err := e.scanProduct(rows)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	e.log.Info("SearchByBarcode completed", "found", true, "duration", time.Since(start))
	return &p, nil
}

func (e *Engine) scanProduct(rows *sql.Rows) (types.Product, error) {
	var p types.Product
	var code, name, brands, nutriments, link sql.NullString

	if err := rows.Scan(&code, &name, &brands, &nutriments, &link); err != nil {
		return p, err
	}

	p.Code = code.String
	p.ProductName = name.String
	p.Brands = brands.String
	p.Link = link.String

	if nutriments.Valid && nutriments.String != "" {
		var parsed interface{}
		if err := json.Unmarshal([]byte(nutriments.String), &parsed); err != nil {
			e.log.Debug("Failed to parse nutriments JSON", "error", err, "code", p.Code)
		} else {
			p.Nutriments = parsed
		}
	}

	return p, nil
}

// HealthCheck tests the database connection and parquet file access
func (e *Engine) HealthCheck(ctx context.Context) error {
	start := time.Now()
	e.log.Debug("Testing DuckDB connection and parquet file")

	var count int64
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM read_parquet(?)`, e.parquetPath).Scan(&count); err != nil {
		e.log.Error("Health check failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("health check failed: %w", err)
	}

	e.log.Debug("Health check successful", "total_records", count, "duration", time.Since(start))
	return nil
}
