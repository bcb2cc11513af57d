package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "food-log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entryAt(id, food string, at time.Time, kcal float64) *types.LogEntry {
	return &types.LogEntry{
		ID:                id,
		LoggedAt:          at,
		Date:              at.Format(types.DateLayout),
		Time:              at.Format(types.TimeLayout),
		FoodName:          food,
		Amount:            1,
		Unit:              types.UnitUnits,
		Grams:             180,
		Calories:          kcal,
		Protein:           0.5,
		SugarOrCarbs:      18.7,
		MacroColumn:       types.MacroSugar,
		UnitWeightMatched: true,
	}
}

func TestSQLiteStorage_AppendAndList(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	morning := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	noon := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	nextDay := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendEntry(ctx, entryAt("a", "apple", morning, 94)))
	require.NoError(t, s.AppendEntry(ctx, entryAt("b", "banana", noon, 107)))
	require.NoError(t, s.AppendEntry(ctx, entryAt("c", "pear", nextDay, 103)))

	t.Run("newest first", func(t *testing.T) {
		entries, err := s.ListEntries(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "c", entries[0].ID)
		assert.Equal(t, "b", entries[1].ID)
		assert.Equal(t, "a", entries[2].ID)
	})

	t.Run("round trips all fields", func(t *testing.T) {
		entries, err := s.ListEntries(ctx, Filter{StartDate: "2026-03-02"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, entryAt("c", "pear", nextDay, 103), entries[0])
	})

	t.Run("date range and limit", func(t *testing.T) {
		entries, err := s.ListEntries(ctx, Filter{StartDate: "2026-03-01", EndDate: "2026-03-01", Limit: 1})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "b", entries[0].ID)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := s.AppendEntry(ctx, entryAt("a", "apple", morning, 1))
		assert.Error(t, err)
	})
}

func TestSQLiteStorage_AppendOnly(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.AppendEntry(ctx, entryAt("a", "apple", time.Now().UTC(), 94)))

	_, err := s.db.ExecContext(ctx, "UPDATE food_log SET calories = 0 WHERE id = 'a'")
	assert.ErrorContains(t, err, "append-only")

	_, err = s.db.ExecContext(ctx, "DELETE FROM food_log")
	assert.ErrorContains(t, err, "append-only")
}

func TestSQLiteStorage_DailyTotals(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendEntry(ctx, entryAt("a", "apple", day, 94)))
	require.NoError(t, s.AppendEntry(ctx, entryAt("b", "apple", day.Add(time.Hour), 95)))

	totals, err := s.DailyTotals(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Entries)
	assert.InDelta(t, 189, totals.Calories, 1e-9)
	assert.InDelta(t, 1.0, totals.Protein, 1e-9)
	assert.InDelta(t, 37.4, totals.SugarOrCarbs, 1e-9)

	empty, err := s.DailyTotals(ctx, "1999-01-01")
	require.NoError(t, err)
	assert.Equal(t, Totals{}, empty)
}

func TestSQLiteStorage_NutrientCache(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.GetCachedNutrients(ctx, "almonds")
	assert.ErrorIs(t, err, ErrCacheMiss)

	fetched := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutCachedNutrients(ctx, &CachedNutrients{
		Key:       "almonds",
		Record:    types.NutrientRecord{Calories: 579, Protein: 21, SugarOrCarbs: 4.4},
		Source:    "dataset",
		FetchedAt: fetched,
	}))

	got, err := s.GetCachedNutrients(ctx, "almonds")
	require.NoError(t, err)
	assert.Equal(t, types.NutrientRecord{Calories: 579, Protein: 21, SugarOrCarbs: 4.4}, got.Record)
	assert.Equal(t, "dataset", got.Source)
	assert.True(t, fetched.Equal(got.FetchedAt))

	// Upsert replaces the cached values
	require.NoError(t, s.PutCachedNutrients(ctx, &CachedNutrients{
		Key:       "almonds",
		Record:    types.NutrientRecord{Calories: 600},
		Source:    "remote",
		FetchedAt: fetched.Add(time.Hour),
	}))
	got, err = s.GetCachedNutrients(ctx, "almonds")
	require.NoError(t, err)
	assert.Equal(t, 600.0, got.Record.Calories)
	assert.Equal(t, "remote", got.Source)
}

func TestSQLiteStorage_Ping(t *testing.T) {
	s := newTestStorage(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNewSQLiteStorage_Memory(t *testing.T) {
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AppendEntry(context.Background(), entryAt("m", "egg", time.Now().UTC(), 78)))
	entries, err := s.ListEntries(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewSQLiteStorage_BusyTimeout(t *testing.T) {
	for _, path := range []string{":memory:", filepath.Join(t.TempDir(), "log.db")} {
		s, err := NewSQLiteStorage(path)
		require.NoError(t, err)

		var timeout int64
		require.NoError(t, s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, BusyTimeout.Milliseconds(), timeout, path)
		require.NoError(t, s.Close())
	}
}
