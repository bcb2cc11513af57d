// Package normalizer converts a logged quantity into grams and scales per-100g
// nutrient values to the amount eaten.
//
// Every function here is pure: no I/O, no shared state, safe for concurrent use.
package normalizer

import (
	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// DefaultUnitWeight is the weight in grams assumed for one unit when no table key matches
const DefaultUnitWeight = 100.0

// ResolveWeight returns the single-unit weight of the first table key found in
// foodName. Keys are scanned in declared order. When nothing matches it returns
// (DefaultUnitWeight, false); callers should surface that as a warning.
func ResolveWeight(foodName string, table *Table) (float64, bool) {
	m := table.Lookup(foodName)
	return m.Grams, m.Matched
}

// Normalize converts amount to grams eaten. Amount must be positive; it is not
// validated here.
func Normalize(amount float64, unit types.Unit, resolvedWeight float64) float64 {
	if unit == types.UnitUnits {
		return amount * resolvedWeight
	}
	return amount
}

// ApplyFactor scales every field of a per-100g record to gramsEaten. No rounding.
func ApplyFactor(record types.NutrientRecord, gramsEaten float64) types.NutrientRecord {
	factor := gramsEaten / 100.0
	return types.NutrientRecord{
		Calories:     record.Calories * factor,
		Protein:      record.Protein * factor,
		SugarOrCarbs: record.SugarOrCarbs * factor,
	}
}
