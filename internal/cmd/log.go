package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/noot-app/nutrition-log-mcp-server/internal/config"
	"github.com/noot-app/nutrition-log-mcp-server/internal/dataset"
	"github.com/noot-app/nutrition-log-mcp-server/internal/logbook"
	"github.com/noot-app/nutrition-log-mcp-server/internal/server"
	"github.com/noot-app/nutrition-log-mcp-server/internal/storage"
	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// withComponents wires the food log for a CLI subcommand. The local dataset is
// only opened when useDataset is set; otherwise lookups use the nutrient cache
// and the remote API.
func withComponents(cmd *cobra.Command, useDataset bool, fn func(c *server.Components) error) error {
	logger := config.NewTextLogger(cmd.ErrOrStderr())
	cfg := config.Load()
	initializer := server.NewServerInitializer(cfg, logger)

	var (
		components *server.Components
		err        error
	)
	if useDataset {
		components, err = initializer.Initialize(cmd.Context())
	} else {
		components, err = initializer.InitializeOffline()
	}
	if err != nil {
		return err
	}
	defer components.Close()

	return fn(components)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogCmd() *cobra.Command {
	var (
		amount     float64
		unit       string
		useDataset bool
	)

	cmd := &cobra.Command{
		Use:   "log FOOD",
		Short: "Log a food to the food log",
		Example: `  nutrition-log-mcp-server log "rice" --amount 3 --unit units
  nutrition-log-mcp-server log "greek yogurt" --amount 170 --unit grams`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, useDataset, func(c *server.Components) error {
				result, err := c.Logbook.LogFood(cmd.Context(), logbook.Submission{
					FoodName: args[0],
					Amount:   amount,
					Unit:     unit,
				})
				if err != nil {
					return err
				}
				for _, w := range result.Warnings {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().Float64VarP(&amount, "amount", "a", 1, "Amount eaten")
	cmd.Flags().StringVarP(&unit, "unit", "u", "units", "Unit of the amount: grams or units")
	cmd.Flags().BoolVar(&useDataset, "dataset", false, "Query the local Open Food Facts dataset (downloads it if missing)")
	return cmd
}

func newEntriesCmd() *cobra.Command {
	var filter storage.Filter

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List food log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, false, func(c *server.Components) error {
				entries, err := c.Logbook.Entries(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []*types.LogEntry{}
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}

	cmd.Flags().StringVar(&filter.StartDate, "start", "", "First date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.EndDate, "end", "", "Last date to include (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", logbook.DefaultEntriesLimit, "Maximum number of entries")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show daily totals against the calorie target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, false, func(c *server.Components) error {
				summary, err := c.Logbook.Summary(cmd.Context(), date)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to summarize (YYYY-MM-DD, default today)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		filter storage.Filter
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the food log as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, false, func(c *server.Components) error {
				w := cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("failed to create %s: %w", out, err)
					}
					defer f.Close()
					w = f
				}

				n, err := c.Logbook.Export(cmd.Context(), w, filter)
				if err != nil {
					return err
				}
				if out != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "exported %d entries to %s\n", n, out)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.StartDate, "start", "", "First date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.EndDate, "end", "", "Last date to include (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newWeightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weight FOOD",
		Short: "Show the grams assumed for one unit of a food",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, false, func(c *server.Components) error {
				return printJSON(cmd.OutOrStdout(), c.Logbook.UnitWeight(args[0]))
			})
		},
	}
}

func newVerifyDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-db",
		Short: "Check the local dataset against its recorded checksum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := config.NewTextLogger(cmd.ErrOrStderr())
			cfg := config.Load()
			return verifyDataset(cmd, dataset.NewManager(cfg, logger), logger)
		},
	}
}

func verifyDataset(cmd *cobra.Command, m *dataset.Manager, logger *slog.Logger) error {
	meta, err := m.Status()
	if err != nil {
		return fmt.Errorf("no dataset metadata, run --fetch-db first: %w", err)
	}
	if err := m.Verify(); err != nil {
		return err
	}
	logger.Info("Dataset verified", "downloaded_at", meta.DownloadedAt, "size", meta.Size, "etag", meta.ETag)
	return printJSON(cmd.OutOrStdout(), meta)
}
