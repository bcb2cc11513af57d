package logbook

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/noot-app/nutrition-log-mcp-server/internal/storage"
)

// Export writes the filtered log as CSV, oldest entry first. A zero Limit exports everything.
func (s *Service) Export(ctx context.Context, w io.Writer, f storage.Filter) (int, error) {
	limit := f.Limit
	f, err := normalizeFilter(f)
	if err != nil {
		return 0, err
	}
	f.Limit = limit
	if f.Limit < 0 {
		f.Limit = 0
	}

	entries, err := s.store.ListEntries(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("failed to list entries: %w", err)
	}

	cw := csv.NewWriter(w)
	header := []string{"date", "time", "food_name", "amount", "unit", "calories", "protein", string(s.column)}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		row := []string{
			e.Date,
			e.Time,
			e.FoodName,
			formatFloat(e.Amount),
			string(e.Unit),
			formatFloat(e.Calories),
			formatFloat(e.Protein),
			formatFloat(e.SugarOrCarbs),
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(entries), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
