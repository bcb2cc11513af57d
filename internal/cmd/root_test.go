package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noot-app/nutrition-log-mcp-server/internal/logbook"
	"github.com/noot-app/nutrition-log-mcp-server/internal/nutrition"
	"github.com/noot-app/nutrition-log-mcp-server/internal/storage"
	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// setupEnv points the CLI at a fresh food log with remote lookups off
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "food-log.db")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("REMOTE_LOOKUP", "false")
	t.Setenv("UNIT_WEIGHTS_PATH", "")
	t.Setenv("MACRO_COLUMN", "sugar")
	t.Setenv("LOG_LEVEL", "error")
	return dbPath
}

func seedCache(t *testing.T, dbPath, food string, record types.NutrientRecord) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutCachedNutrients(context.Background(), &storage.CachedNutrients{
		Key:       nutrition.CacheKey(types.MacroSugar, food),
		Record:    record,
		Source:    "dataset",
		FetchedAt: time.Now(),
	}))
}

// execute runs a fresh command tree so flag state never leaks between tests
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCmdHelp(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "nutrition-log-mcp-server [flags]")
	assert.Contains(t, out, "--stdio")
	assert.Contains(t, out, "--fetch-db")
	for _, sub := range []string{"log", "entries", "summary", "export", "weight", "verify-db"} {
		assert.Contains(t, out, sub)
	}
}

func TestWeightCmd(t *testing.T) {
	tests := []struct {
		name    string
		food    string
		grams   float64
		matched bool
	}{
		{name: "known food", food: "Banana", grams: 120, matched: true},
		{name: "unknown food uses default", food: "zzz mystery", grams: 100, matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)

			out, _, err := execute(t, "weight", tt.food)
			require.NoError(t, err)

			var uw logbook.UnitWeight
			require.NoError(t, json.Unmarshal([]byte(out), &uw))
			assert.Equal(t, tt.grams, uw.Grams)
			assert.Equal(t, tt.matched, uw.Matched)
		})
	}
}

func TestLogCmd(t *testing.T) {
	t.Run("logs from the nutrient cache", func(t *testing.T) {
		dbPath := setupEnv(t)
		seedCache(t, dbPath, "almonds", types.NutrientRecord{Calories: 579, Protein: 21, SugarOrCarbs: 4})

		out, _, err := execute(t, "log", "Almonds", "--amount", "30", "--unit", "grams")
		require.NoError(t, err)

		var result logbook.Result
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		require.NotNil(t, result.Entry)
		assert.Equal(t, 30.0, result.Entry.Grams)
		assert.Equal(t, 174.0, result.Entry.Calories)
		assert.Equal(t, 6.3, result.Entry.Protein)
		assert.Equal(t, 1.2, result.Entry.SugarOrCarbs)
		assert.EqualValues(t, "cache", result.Source)

		out, _, err = execute(t, "entries")
		require.NoError(t, err)
		var entries []*types.LogEntry
		require.NoError(t, json.Unmarshal([]byte(out), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "Almonds", entries[0].FoodName)
	})

	t.Run("unmatched unit weight is reported on stderr", func(t *testing.T) {
		dbPath := setupEnv(t)
		seedCache(t, dbPath, "zzz mystery", types.NutrientRecord{Calories: 100})

		_, stderr, err := execute(t, "log", "zzz mystery", "--amount", "2")
		require.NoError(t, err)
		assert.Contains(t, stderr, "warning: unit weight for")
	})

	t.Run("unknown food fails without logging", func(t *testing.T) {
		setupEnv(t)

		_, _, err := execute(t, "log", "nothing cached", "--amount", "1", "--unit", "grams")
		require.Error(t, err)

		out, _, err := execute(t, "entries")
		require.NoError(t, err)
		assert.JSONEq(t, "[]", out)
	})

	t.Run("invalid unit is rejected", func(t *testing.T) {
		setupEnv(t)

		_, _, err := execute(t, "log", "rice", "--unit", "cups")
		require.Error(t, err)
		assert.ErrorIs(t, err, logbook.ErrInvalidSubmission)
	})
}

func TestSummaryAndExportCmd(t *testing.T) {
	dbPath := setupEnv(t)
	seedCache(t, dbPath, "apple", types.NutrientRecord{Calories: 52, Protein: 0.3, SugarOrCarbs: 10.4})

	_, _, err := execute(t, "log", "apple", "--amount", "200", "--unit", "grams")
	require.NoError(t, err)

	today := time.Now().Format(types.DateLayout)
	out, _, err := execute(t, "summary", "--date", today)
	require.NoError(t, err)

	var summary types.DailySummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Entries)
	assert.Equal(t, 104.0, summary.Calories)

	csvPath := filepath.Join(t.TempDir(), "log.csv")
	_, stderr, err := execute(t, "export", "--out", csvPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "exported 1 entries")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "date,time,food_name,amount,unit,calories,protein,sugar\n")
	assert.Contains(t, string(data), ",apple,200,grams,104,0.6,20.8\n")
}

func TestVerifyDBCmdWithoutDataset(t *testing.T) {
	setupEnv(t)

	_, _, err := execute(t, "verify-db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run --fetch-db first")
}
