// Package logbook turns food submissions into gram-normalized log entries and
// reports daily totals against a calorie target.
package logbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noot-app/nutrition-log-mcp-server/internal/normalizer"
	"github.com/noot-app/nutrition-log-mcp-server/internal/nutrition"
	"github.com/noot-app/nutrition-log-mcp-server/internal/storage"
	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// ErrInvalidSubmission wraps every validation failure of a submission or query
var ErrInvalidSubmission = errors.New("invalid submission")

const (
	DefaultEntriesLimit = 20
	MaxEntriesLimit     = 500
)

// Store is the persistence the service needs
type Store interface {
	AppendEntry(ctx context.Context, e *types.LogEntry) error
	ListEntries(ctx context.Context, f storage.Filter) ([]*types.LogEntry, error)
	DailyTotals(ctx context.Context, date string) (storage.Totals, error)
}

// NutrientLookup resolves a food name to per-100g values
type NutrientLookup interface {
	Lookup(ctx context.Context, name string) (types.NutrientRecord, nutrition.Source, error)
}

// Submission is one "I ate this" request
type Submission struct {
	FoodName string
	Amount   float64
	Unit     string
	// At defaults to the current time
	At time.Time
}

// Result is a logged entry plus any non-fatal warnings
type Result struct {
	Entry    *types.LogEntry  `json:"entry"`
	Source   nutrition.Source `json:"source"`
	Warnings []string         `json:"warnings,omitempty"`
}

// UnitWeight describes how a food name resolves against the unit weight table
type UnitWeight struct {
	Food       string  `json:"food"`
	Grams      float64 `json:"grams"`
	Matched    bool    `json:"matched"`
	Key        string  `json:"key,omitempty"`
	Suggestion string  `json:"suggestion,omitempty"`
}

// Service logs food and aggregates the log
type Service struct {
	store  Store
	lookup NutrientLookup
	table  *normalizer.Table
	target float64
	column types.MacroColumn
	log    *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Options configures a Service
type Options struct {
	// Table defaults to normalizer.DefaultTable
	Table              *normalizer.Table
	DailyCalorieTarget float64
	MacroColumn        types.MacroColumn
}

// NewService creates a logbook service
func NewService(store Store, lookup NutrientLookup, opts Options, logger *slog.Logger) *Service {
	table := opts.Table
	if table == nil {
		table = normalizer.DefaultTable
	}
	column := opts.MacroColumn
	if column == "" {
		column = types.MacroSugar
	}
	return &Service{
		store:  store,
		lookup: lookup,
		table:  table,
		target: opts.DailyCalorieTarget,
		column: column,
		log:    logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// MacroColumn is the nutriment stored in LogEntry.SugarOrCarbs
func (s *Service) MacroColumn() types.MacroColumn {
	return s.column
}

// LogFood validates sub, resolves nutrients, normalizes to grams and appends the entry.
// Nothing is appended when validation or lookup fails.
func (s *Service) LogFood(ctx context.Context, sub Submission) (*Result, error) {
	name := strings.TrimSpace(sub.FoodName)
	if name == "" {
		return nil, fmt.Errorf("%w: food name is required", ErrInvalidSubmission)
	}
	if math.IsNaN(sub.Amount) || math.IsInf(sub.Amount, 0) || sub.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive number", ErrInvalidSubmission)
	}
	unit, err := types.ParseUnit(sub.Unit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}

	record, source, err := s.lookup.Lookup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", name, err)
	}

	result := &Result{Source: source}
	weight, matched := normalizer.DefaultUnitWeight, true
	if unit == types.UnitUnits {
		weight, matched = normalizer.ResolveWeight(name, s.table)
		if !matched {
			warning := s.unmatchedWarning(name)
			result.Warnings = append(result.Warnings, warning)
			s.log.Warn("Unit weight not found, using default", "food", name, "default_grams", normalizer.DefaultUnitWeight)
		}
	}

	grams := normalizer.Normalize(sub.Amount, unit, weight)
	eaten := normalizer.ApplyFactor(record, grams)

	at := sub.At
	if at.IsZero() {
		at = s.now()
	}

	entry := &types.LogEntry{
		ID:                s.newID(),
		LoggedAt:          at,
		Date:              at.Format(types.DateLayout),
		Time:              at.Format(types.TimeLayout),
		FoodName:          name,
		Amount:            sub.Amount,
		Unit:              unit,
		Grams:             grams,
		Calories:          roundTo(eaten.Calories, 0),
		Protein:           roundTo(eaten.Protein, 1),
		SugarOrCarbs:      roundTo(eaten.SugarOrCarbs, 1),
		MacroColumn:       s.column,
		UnitWeightMatched: matched,
	}

	if err := s.store.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append entry: %w", err)
	}

	s.log.Info("Food logged",
		"id", entry.ID,
		"food", entry.FoodName,
		"grams", entry.Grams,
		"calories", entry.Calories,
		"source", source)

	result.Entry = entry
	return result, nil
}

func (s *Service) unmatchedWarning(name string) string {
	warning := fmt.Sprintf("unit weight for %q not found; assumed %g g per unit", name, normalizer.DefaultUnitWeight)
	if closest, ok := s.table.Closest(name); ok {
		warning += fmt.Sprintf(" (did you mean %q?)", closest)
	}
	return warning
}

// UnitWeight reports the grams one unit of food resolves to
func (s *Service) UnitWeight(food string) UnitWeight {
	food = strings.TrimSpace(food)
	match := s.table.Lookup(food)
	uw := UnitWeight{
		Food:    food,
		Grams:   match.Grams,
		Matched: match.Matched,
		Key:     match.Key,
	}
	if !match.Matched {
		uw.Suggestion, _ = s.table.Closest(food)
	}
	return uw
}

// Nutrients resolves per-100g values without logging anything
func (s *Service) Nutrients(ctx context.Context, food string) (types.NutrientRecord, nutrition.Source, error) {
	food = strings.TrimSpace(food)
	if food == "" {
		return types.NutrientRecord{}, "", fmt.Errorf("%w: food name is required", ErrInvalidSubmission)
	}
	return s.lookup.Lookup(ctx, food)
}

// Entries lists logged entries newest first
func (s *Service) Entries(ctx context.Context, f storage.Filter) ([]*types.LogEntry, error) {
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// Summary aggregates date (YYYY-MM-DD, empty for today) against the daily target
func (s *Service) Summary(ctx context.Context, date string) (*types.DailySummary, error) {
	if date == "" {
		date = s.now().Format(types.DateLayout)
	} else if err := validateDate(date); err != nil {
		return nil, err
	}

	totals, err := s.store.DailyTotals(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", date, err)
	}

	summary := &types.DailySummary{
		Date:         date,
		Entries:      totals.Entries,
		Calories:     roundTo(totals.Calories, 0),
		Protein:      roundTo(totals.Protein, 1),
		SugarOrCarbs: roundTo(totals.SugarOrCarbs, 1),
		Target:       s.target,
		Remaining:    math.Max(s.target-totals.Calories, 0),
	}
	if s.target > 0 {
		summary.Progress = totals.Calories / s.target
	}
	return summary, nil
}

func normalizeFilter(f storage.Filter) (storage.Filter, error) {
	for _, d := range []string{f.StartDate, f.EndDate} {
		if d == "" {
			continue
		}
		if err := validateDate(d); err != nil {
			return f, err
		}
	}
	if f.StartDate != "" && f.EndDate != "" && f.StartDate > f.EndDate {
		return f, fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidSubmission, f.StartDate, f.EndDate)
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultEntriesLimit
	case f.Limit > MaxEntriesLimit:
		f.Limit = MaxEntriesLimit
	}
	return f, nil
}

func validateDate(date string) error {
	if _, err := time.Parse(types.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidSubmission, date)
	}
	return nil
}

// roundTo rounds half away from zero
func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
