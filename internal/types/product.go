package types

import (
	"math"
	"strconv"
	"strings"
)

// Product represents a product from the Open Food Facts dataset
// This is the canonical Product struct used throughout the application
type Product struct {
	Code        string `json:"code"`
	ProductName string `json:"product_name"`
	Brands      string `json:"brands"`
	// Nutriments is either the flat API map ("energy-kcal_100g": 579) or the
	// parquet list of {"name": ..., "100g": ...} objects
	Nutriments  interface{} `json:"nutriments"`
	Link        string      `json:"link"`
	Ingredients interface{} `json:"ingredients"`
}

// SimplifiedProduct represents a lean product structure for reduced token consumption
type SimplifiedProduct struct {
	Code        string          `json:"code"`
	ProductName string          `json:"product_name"`
	Brands      string          `json:"brands"`
	Link        string          `json:"link"`
	Per100g     *NutrientRecord `json:"per_100g,omitempty"`
}

// ToSimplified converts a full Product to a SimplifiedProduct
func (p *Product) ToSimplified(column MacroColumn) SimplifiedProduct {
	simplified := SimplifiedProduct{
		Code:        p.Code,
		ProductName: p.ProductName,
		Brands:      p.Brands,
		Link:        p.Link,
	}
	if rec, ok := p.NutrientRecord(column); ok {
		simplified.Per100g = &rec
	}
	return simplified
}

// NutrientRecord extracts per-100g macros. ok is false when no energy value is present.
func (p *Product) NutrientRecord(column MacroColumn) (NutrientRecord, bool) {
	values := p.per100g()
	if len(values) == 0 {
		return NutrientRecord{}, false
	}

	kcal, ok := values["energy-kcal"]
	if !ok {
		kj, hasKJ := values["energy-kj"]
		if !hasKJ {
			kj, hasKJ = values["energy"]
		}
		if !hasKJ {
			return NutrientRecord{}, false
		}
		kcal = kj / 4.184
	}

	return NutrientRecord{
		Calories:     kcal,
		Protein:      values["proteins"],
		SugarOrCarbs: values[column.NutrimentKey()],
	}, true
}

// per100g flattens both nutriment shapes into name -> value per 100g
func (p *Product) per100g() map[string]float64 {
	out := make(map[string]float64)

	switch n := p.Nutriments.(type) {
	case map[string]interface{}:
		for key, raw := range n {
			if name, found := strings.CutSuffix(key, "_100g"); found {
				if v, ok := toFloat(raw); ok {
					out[name] = v
				}
				continue
			}
			// Nested form: {"proteins": {"100g": 21}}
			if obj, ok := raw.(map[string]interface{}); ok {
				if v, ok := toFloat(obj["100g"]); ok {
					out[key] = v
				}
			}
		}
	case []interface{}:
		for _, item := range n {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := obj["name"].(string)
			if name == "" {
				continue
			}
			if v, ok := toFloat(obj["100g"]); ok {
				out[name] = v
			}
		}
	}

	return out
}

func toFloat(raw interface{}) (float64, bool) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
