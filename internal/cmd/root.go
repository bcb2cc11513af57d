package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noot-app/nutrition-log-mcp-server/internal/auth"
	"github.com/noot-app/nutrition-log-mcp-server/internal/config"
	"github.com/noot-app/nutrition-log-mcp-server/internal/dataset"
	"github.com/noot-app/nutrition-log-mcp-server/internal/mcpgo"
	"github.com/noot-app/nutrition-log-mcp-server/internal/server"
	"github.com/noot-app/nutrition-log-mcp-server/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nutrition-log-mcp-server",
		Short:   "Food logging MCP server backed by Open Food Facts",
		Version: version.String(),
		Long: `Nutrition Log MCP Server turns "I ate 3 cups of rice" into a food log
entry with calories, protein and sugar (or carbohydrates) scaled to the amount
eaten. Nutrient values per 100g come from a local cache, the Open Food Facts
Parquet dataset queried with DuckDB, and optionally the Open Food Facts API.

The server operates in three modes:

1. STDIO Mode (--stdio): For local Claude Desktop integration
   - Uses stdio pipes for communication
   - No authentication required

2. HTTP Mode (default): For remote deployment
   - Serves MCP at /mcp and a JSON API at /api
   - Requires Bearer token authentication (except /health)

3. Fetch Database Mode (--fetch-db): Download dataset and exit
   - Downloads/updates the Open Food Facts Parquet dataset
   - Exits after download completion (does not start server)

Available MCP Tools:
- log_food: Log a food with an amount and unit (grams or units)
- resolve_unit_weight: Show the grams assumed for one unit of a food
- lookup_nutrients: Per-100g calories, protein and sugar/carbs for a food
- daily_summary: Totals for a day against the calorie target
- list_entries: Food log entries, newest first
- search_products_by_name: Search the dataset by product name
- search_by_barcode: Find a product by barcode (UPC/EAN)

Authentication (HTTP Mode Only):
Use the AUTH_TOKEN environment variable to set the token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fetchDB, _ := cmd.Flags().GetBool("fetch-db")
			if fetchDB {
				return runFetchDBMode(cmd)
			}

			stdio, _ := cmd.Flags().GetBool("stdio")
			return runServer(cmd, stdio)
		},
	}

	cmd.Flags().Bool("stdio", false, "Run in stdio mode for local Claude Desktop integration (default: HTTP mode for remote deployment)")
	cmd.Flags().Bool("fetch-db", false, "Fetch the database and exit (useful for downloading the dataset without starting the server)")

	cmd.AddCommand(
		newLogCmd(),
		newEntriesCmd(),
		newSummaryCmd(),
		newExportCmd(),
		newWeightCmd(),
		newVerifyDBCmd(),
	)

	return cmd
}

// runFetchDBMode fetches the database and exits
func runFetchDBMode(cmd *cobra.Command) error {
	logger := config.NewTextLogger(os.Stdout)
	cfg := config.Load()

	logger.Info("🗄️  Starting database fetch",
		"mode", "fetch-db",
		"target_dir", filepath.Dir(cfg.ParquetPath))

	logger.Info("⚠️  Large dataset warning",
		"message", "The Open Food Facts dataset is approximately 4+ GB in size",
		"note", "Initial download may take several minutes depending on your internet connection")

	if err := dataset.NewManager(cfg, logger).EnsureDataset(cmd.Context()); err != nil {
		logger.Error("Failed to fetch dataset", "error", err)
		return err
	}

	logger.Info("✅ Database fetch completed successfully",
		"parquet_path", cfg.ParquetPath,
		"metadata_path", cfg.MetadataPath)

	return nil
}

// runServer initializes every component and serves MCP over stdio or HTTP
func runServer(cmd *cobra.Command, stdio bool) error {
	// Stdio mode logs to stderr so stdout stays reserved for MCP traffic
	logger := config.NewLogger(stdio)
	cfg := config.Load()

	if stdio {
		logger.Info("🔌 Starting Nutrition Log MCP Server in STDIO mode",
			"mode", "stdio",
			"auth", "not required for stdio mode",
			"transport", "stdio pipes")
	} else {
		logger.Info("🌐 Starting Nutrition Log MCP Server in HTTP mode",
			"mode", "http",
			"auth", "Bearer token required (except /health endpoint)",
			"transport", "HTTP/JSON-RPC 2.0",
			"port", cfg.Port)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initializer := server.NewServerInitializer(cfg, logger)
	components, err := initializer.Initialize(ctx)
	if err != nil {
		logger.Error("Failed to initialize server", "error", err)
		return err
	}
	defer components.Close()

	initializer.StartRefreshLoop(ctx)

	mcpSrv := mcpgo.NewServer(mcpgo.Deps{
		Engine:  components.Engine,
		Logbook: components.Logbook,
		Store:   components.Store,
		API:     components.API.Routes(),
	}, auth.NewBearerTokenAuth(cfg.AuthToken), logger)

	if stdio {
		return mcpSrv.ServeStdio()
	}
	return mcpSrv.ServeHTTP(ctx, ":"+cfg.Port)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// Run is the main entry point for the CLI application
func Run() error {
	return Execute()
}
