package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUnit(t *testing.T) {
	tests := []struct {
		input    string
		expected Unit
		wantErr  bool
	}{
		{"grams", UnitGrams, false},
		{"GRAMS", UnitGrams, false},
		{" units ", UnitUnits, false},
		{"Units", UnitUnits, false},
		{"g", "", true},
		{"unit", "", true},
		{"", "", true},
		{"kg", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			unit, err := ParseUnit(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidUnit)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, unit)
		})
	}
}

func TestParseMacroColumn(t *testing.T) {
	col, err := ParseMacroColumn("Carbs")
	assert.NoError(t, err)
	assert.Equal(t, MacroCarbs, col)
	assert.Equal(t, "carbohydrates", col.NutrimentKey())

	col, err = ParseMacroColumn("sugar")
	assert.NoError(t, err)
	assert.Equal(t, "sugars", col.NutrimentKey())

	_, err = ParseMacroColumn("fat")
	assert.ErrorIs(t, err, ErrInvalidMacroColumn)
}
