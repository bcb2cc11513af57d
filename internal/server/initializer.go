package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/noot-app/nutrition-log-mcp-server/internal/config"
	"github.com/noot-app/nutrition-log-mcp-server/internal/dataset"
	"github.com/noot-app/nutrition-log-mcp-server/internal/logbook"
	"github.com/noot-app/nutrition-log-mcp-server/internal/normalizer"
	"github.com/noot-app/nutrition-log-mcp-server/internal/nutrition"
	"github.com/noot-app/nutrition-log-mcp-server/internal/query"
	"github.com/noot-app/nutrition-log-mcp-server/internal/storage"
	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// Components are the wired services shared by every transport
type Components struct {
	Engine   query.QueryEngine // nil when initialized offline
	Store    *storage.SQLiteStorage
	Resolver *nutrition.Resolver
	Logbook  *logbook.Service
	API      *API
}

// Close releases the engine and the store
func (c *Components) Close() error {
	var errs []error
	if c.Engine != nil {
		errs = append(errs, c.Engine.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}

// ServerInitializer handles common server initialization logic
type ServerInitializer struct {
	config      *config.Config
	log         *slog.Logger
	dataManager *dataset.Manager
}

// NewServerInitializer creates a new server initializer
func NewServerInitializer(cfg *config.Config, logger *slog.Logger) *ServerInitializer {
	return &ServerInitializer{
		config:      cfg,
		log:         logger,
		dataManager: dataset.NewManager(cfg, logger),
	}
}

// Initialize ensures the dataset and wires every component
func (si *ServerInitializer) Initialize(ctx context.Context) (*Components, error) {
	start := time.Now()
	si.log.Info("Initializing server...")

	if si.config.IsDevelopment() {
		si.log.Warn("🚧 DEVELOPMENT MODE ENABLED 🚧",
			"environment", si.config.Environment,
			"note", "Detailed error messages will be returned to clients")
	}

	if query.MockEnabled() {
		si.log.Info("Skipping dataset download for mock query engine")
	} else if err := si.dataManager.EnsureDataset(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure dataset: %w", err)
	}

	engine, err := query.NewQueryEngine(si.config.ParquetPath, si.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create query engine: %w", err)
	}

	if err := engine.HealthCheck(ctx); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to test connection: %w", err)
	}

	components, err := si.wire(engine)
	if err != nil {
		engine.Close()
		return nil, err
	}

	si.log.Info("Server initialized successfully", "duration", time.Since(start))
	return components, nil
}

// InitializeOffline wires the food log without the local dataset. Lookups use
// the nutrient cache and, when enabled, the remote API.
func (si *ServerInitializer) InitializeOffline() (*Components, error) {
	return si.wire(nil)
}

func (si *ServerInitializer) wire(engine query.QueryEngine) (*Components, error) {
	column, err := types.ParseMacroColumn(si.config.MacroColumn)
	if err != nil {
		return nil, fmt.Errorf("invalid MACRO_COLUMN: %w", err)
	}

	table := normalizer.DefaultTable
	if si.config.UnitWeightsPath != "" {
		table, err = normalizer.LoadTable(si.config.UnitWeightsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load unit weights: %w", err)
		}
		si.log.Info("Loaded unit weight table", "path", si.config.UnitWeightsPath, "entries", table.Len())
	}

	store, err := storage.NewSQLiteStorage(si.config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open food log: %w", err)
	}

	opts := nutrition.Options{
		Cache:       store,
		MacroColumn: column,
		Timeout:     si.config.LookupTimeout(),
	}
	if engine != nil {
		opts.Dataset = engine
	}
	if si.config.RemoteLookup {
		opts.Remote = nutrition.NewRemoteClient(si.config.OFFAPIURL, &http.Client{}, si.log)
	}
	resolver := nutrition.NewResolver(opts, si.log)

	svc := logbook.NewService(store, resolver, logbook.Options{
		Table:              table,
		DailyCalorieTarget: si.config.DailyCalorieTarget,
		MacroColumn:        column,
	}, si.log)

	return &Components{
		Engine:   engine,
		Store:    store,
		Resolver: resolver,
		Logbook:  svc,
		API:      NewAPI(svc, si.config.IsDevelopment(), si.log),
	}, nil
}

// RefreshDataset re-checks the dataset and downloads it when the remote copy changed
func (si *ServerInitializer) RefreshDataset(ctx context.Context) error {
	return si.dataManager.EnsureDataset(ctx)
}

// StartRefreshLoop re-checks the dataset every RefreshInterval until ctx is done
func (si *ServerInitializer) StartRefreshLoop(ctx context.Context) {
	interval := si.config.RefreshInterval()
	if interval <= 0 || query.MockEnabled() {
		return
	}
	si.log.Info("Starting refresh loop", "interval", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				si.log.Info("Refresh loop stopping due to context cancellation")
				return
			case <-ticker.C:
				si.log.Info("Refresh tick: checking dataset")
				if err := si.RefreshDataset(ctx); err != nil {
					si.log.Error("Refresh failed", "error", err)
				} else {
					si.log.Info("Refresh completed successfully")
				}
			}
		}
	}()
}
