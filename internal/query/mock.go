package query

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// MockEngine is an in-memory QueryEngine for tests and local development
type MockEngine struct {
	mu       sync.Mutex
	products []types.Product
	err      error
	calls    int
	log      *slog.Logger
}

// NewMockEngine creates a mock engine seeded with a few common foods
func NewMockEngine(logger *slog.Logger) *MockEngine {
	return &MockEngine{
		log: logger,
		products: []types.Product{
			{
				Code:        "3017620422003",
				ProductName: "Nutella",
				Brands:      "Ferrero",
				Nutriments: map[string]interface{}{
					"energy-kcal_100g":   539.0,
					"fat_100g":           30.9,
					"carbohydrates_100g": 57.5,
					"sugars_100g":        56.3,
					"proteins_100g":      6.3,
				},
				Link: "https://world.openfoodfacts.org/product/3017620422003/nutella-ferrero",
			},
			{
				Code:        "0000000000017",
				ProductName: "Almonds",
				Brands:      "Orchard",
				Nutriments: map[string]interface{}{
					"energy-kcal_100g":   579.0,
					"carbohydrates_100g": 21.6,
					"sugars_100g":        4.0,
					"proteins_100g":      21.0,
				},
				Link: "https://example.com/almonds",
			},
			{
				Code:        "0000000000024",
				ProductName: "Apple",
				Brands:      "Orchard",
				Nutriments: []interface{}{
					map[string]interface{}{"name": "energy-kcal", "100g": 52.0},
					map[string]interface{}{"name": "carbohydrates", "100g": 13.8},
					map[string]interface{}{"name": "sugars", "100g": 10.4},
					map[string]interface{}{"name": "proteins", "100g": 0.3},
				},
				Link: "https://example.com/apple",
			},
		},
	}
}

// SearchProductsByName matches products whose name contains name
func (m *MockEngine) SearchProductsByName(ctx context.Context, name string, limit int) ([]types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return nil, m.err
	}

	var results []types.Product
	for _, product := range m.products {
		if !contains(product.ProductName, name) {
			continue
		}
		results = append(results, product)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// SearchByBarcode searches for a product by barcode
func (m *MockEngine) SearchByBarcode(ctx context.Context, barcode string) (*types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	for _, product := range m.products {
		if product.Code == barcode {
			p := product
			return &p, nil
		}
	}
	return nil, nil
}

// HealthCheck returns the configured error
func (m *MockEngine) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Close closes the mock engine (no-op)
func (m *MockEngine) Close() error {
	return nil
}

// SetError sets an error to be returned by the mock
func (m *MockEngine) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetProducts sets the products to be returned by the mock
func (m *MockEngine) SetProducts(products []types.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = products
}

// Calls returns how many searches were made
func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// contains checks if a string contains a substring (case-insensitive)
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
