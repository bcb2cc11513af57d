package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidUnit is returned when a unit selector is neither grams nor units
var ErrInvalidUnit = errors.New("unit must be \"grams\" or \"units\"")

// ErrInvalidMacroColumn is returned for an unknown macro column name
var ErrInvalidMacroColumn = errors.New("macro column must be \"sugar\" or \"carbs\"")

// NutrientRecord holds macro values per 100 grams of a food
type NutrientRecord struct {
	Calories     float64 `json:"calories"`
	Protein      float64 `json:"protein"`
	SugarOrCarbs float64 `json:"sugar_or_carbs"`
}

// Unit is the quantity selector of a log submission
type Unit string

const (
	UnitGrams Unit = "grams"
	UnitUnits Unit = "units"
)

// ParseUnit accepts exactly "grams" or "units", ignoring case and surrounding whitespace
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case UnitGrams:
		return UnitGrams, nil
	case UnitUnits:
		return UnitUnits, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidUnit, s)
	}
}

// MacroColumn selects which carbohydrate figure fills NutrientRecord.SugarOrCarbs
type MacroColumn string

const (
	MacroSugar MacroColumn = "sugar"
	MacroCarbs MacroColumn = "carbs"
)

// ParseMacroColumn parses a macro column name
func ParseMacroColumn(s string) (MacroColumn, error) {
	switch MacroColumn(strings.ToLower(strings.TrimSpace(s))) {
	case MacroSugar:
		return MacroSugar, nil
	case MacroCarbs:
		return MacroCarbs, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidMacroColumn, s)
	}
}

// NutrimentKey returns the Open Food Facts per-100g nutriment key for the column
func (c MacroColumn) NutrimentKey() string {
	if c == MacroCarbs {
		return "carbohydrates"
	}
	return "sugars"
}

// LogEntry is one gram-normalized meal event. Entries are never mutated once stored.
type LogEntry struct {
	ID                string      `json:"id"`
	LoggedAt          time.Time   `json:"logged_at"`
	Date              string      `json:"date"`
	Time              string      `json:"time"`
	FoodName          string      `json:"food_name"`
	Amount            float64     `json:"amount"`
	Unit              Unit        `json:"unit"`
	Grams             float64     `json:"grams"`
	Calories          float64     `json:"calories"`
	Protein           float64     `json:"protein"`
	SugarOrCarbs      float64     `json:"sugar_or_carbs"`
	MacroColumn       MacroColumn `json:"macro_column"`
	UnitWeightMatched bool        `json:"unit_weight_matched"`
}

// DailySummary aggregates the entries of one calendar day
type DailySummary struct {
	Date         string  `json:"date"`
	Entries      int     `json:"entries"`
	Calories     float64 `json:"calories"`
	Protein      float64 `json:"protein"`
	SugarOrCarbs float64 `json:"sugar_or_carbs"`
	Target       float64 `json:"target"`
	Remaining    float64 `json:"remaining"`
	Progress     float64 `json:"progress"`
}

// DateLayout and TimeLayout are the storage formats of LogEntry.Date and LogEntry.Time
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)
