// Package nutrition resolves a food name to per-100g macro values.
//
// Lookups try the nutrient cache, then the local Open Food Facts dataset, then
// (optionally) the remote Open Food Facts API. Every non-cache stage runs under a
// fixed timeout and is attempted exactly once.
package nutrition

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/noot-app/nutrition-log-mcp-server/internal/normalizer"
	"github.com/noot-app/nutrition-log-mcp-server/internal/storage"
	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// ErrNotFound is returned when no stage produced nutrient values for a food
var ErrNotFound = errors.New("food not found")

// Source names the stage that answered a lookup
type Source string

const (
	SourceCache   Source = "cache"
	SourceDataset Source = "dataset"
	SourceRemote  Source = "remote"
)

// DefaultSearchLimit caps how many candidate products a stage inspects
const DefaultSearchLimit = 10

// Cache stores resolved records keyed by folded food name
type Cache interface {
	GetCachedNutrients(ctx context.Context, key string) (*storage.CachedNutrients, error)
	PutCachedNutrients(ctx context.Context, c *storage.CachedNutrients) error
}

// ProductSearcher finds candidate products by name. query.QueryEngine and RemoteClient both satisfy it.
type ProductSearcher interface {
	SearchProductsByName(ctx context.Context, name string, limit int) ([]types.Product, error)
}

// Resolver runs the lookup chain
type Resolver struct {
	cache   Cache
	dataset ProductSearcher
	remote  ProductSearcher
	column  types.MacroColumn
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// Options configures a Resolver. Nil stages are skipped.
type Options struct {
	Cache       Cache
	Dataset     ProductSearcher
	Remote      ProductSearcher
	MacroColumn types.MacroColumn
	Timeout     time.Duration
}

// NewResolver creates a resolver
func NewResolver(opts Options, logger *slog.Logger) *Resolver {
	column := opts.MacroColumn
	if column == "" {
		column = types.MacroSugar
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		cache:   opts.Cache,
		dataset: opts.Dataset,
		remote:  opts.Remote,
		column:  column,
		timeout: timeout,
		log:     logger,
		now:     time.Now,
	}
}

// MacroColumn reports which nutriment fills SugarOrCarbs
func (r *Resolver) MacroColumn() types.MacroColumn {
	return r.column
}

// CacheKey identifies a cached record. SugarOrCarbs depends on the macro column,
// so records resolved for different columns never share a row.
func CacheKey(column types.MacroColumn, name string) string {
	return string(column) + ":" + normalizer.Fold(name)
}

// Lookup resolves name to a per-100g record
func (r *Resolver) Lookup(ctx context.Context, name string) (types.NutrientRecord, Source, error) {
	if normalizer.Fold(name) == "" {
		return types.NutrientRecord{}, "", ErrNotFound
	}
	key := CacheKey(r.column, name)

	if r.cache != nil {
		cached, err := r.cache.GetCachedNutrients(ctx, key)
		switch {
		case err == nil:
			r.log.Debug("Nutrient cache hit", "food", key, "origin", cached.Source)
			return cached.Record, SourceCache, nil
		case !errors.Is(err, storage.ErrCacheMiss):
			r.log.Warn("Nutrient cache read failed", "food", key, "error", err)
		}
	}

	stages := []struct {
		source   Source
		searcher ProductSearcher
	}{
		{SourceDataset, r.dataset},
		{SourceRemote, r.remote},
	}

	for _, stage := range stages {
		if stage.searcher == nil {
			continue
		}
		record, ok := r.search(ctx, stage.source, stage.searcher, name)
		if !ok {
			continue
		}
		r.store(ctx, key, record, stage.source)
		return record, stage.source, nil
	}

	r.log.Info("No nutrient data found", "food", name)
	return types.NutrientRecord{}, "", ErrNotFound
}

// search runs one stage under the lookup timeout. Errors and timeouts are misses.
func (r *Resolver) search(ctx context.Context, source Source, searcher ProductSearcher, name string) (types.NutrientRecord, bool) {
	start := time.Now()
	stageCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	products, err := searcher.SearchProductsByName(stageCtx, name, DefaultSearchLimit)
	if err != nil {
		r.log.Warn("Nutrient lookup stage failed", "source", source, "food", name, "error", err, "duration", time.Since(start))
		return types.NutrientRecord{}, false
	}

	for i := range products {
		if record, ok := products[i].NutrientRecord(r.column); ok {
			r.log.Debug("Nutrient lookup hit", "source", source, "food", name, "product", products[i].ProductName, "duration", time.Since(start))
			return record, true
		}
	}

	r.log.Debug("Nutrient lookup miss", "source", source, "food", name, "candidates", len(products), "duration", time.Since(start))
	return types.NutrientRecord{}, false
}

func (r *Resolver) store(ctx context.Context, key string, record types.NutrientRecord, source Source) {
	if r.cache == nil {
		return
	}
	err := r.cache.PutCachedNutrients(ctx, &storage.CachedNutrients{
		Key:       key,
		Record:    record,
		Source:    string(source),
		FetchedAt: r.now().UTC(),
	})
	if err != nil {
		r.log.Warn("Nutrient cache write failed", "food", key, "error", err)
	}
}
