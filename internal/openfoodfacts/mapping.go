package openfoodfacts

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"nutrilab/internal/schema"
)

// Candidate keys per field, most preferred first. The first one holding a
// usable value wins.
var (
	nameKeys        = [][]string{{"product_name"}, {"product_name_en"}, {"generic_name"}}
	imageURLKeys    = [][]string{{"image_small_url"}, {"image_url"}, {"image_front_small_url"}}
	descriptionKeys = [][]string{{"categories"}}
	energyKeys      = [][]string{{"nutriments", "energy_100g"}, {"nutriments", "energy-kj_100g"}, {"energy_100g"}}

	macronutrientKeys = map[schema.MacronutrientField][][]string{
		schema.Fat:           {{"nutriments", "fat_100g"}},
		schema.SaturatedFat:  {{"nutriments", "saturated-fat_100g"}, {"nutriments", "saturated_fat_100g"}},
		schema.Carbohydrates: {{"nutriments", "carbohydrates_100g"}},
		schema.Sugars:        {{"nutriments", "sugars_100g"}},
		schema.Fiber:         {{"nutriments", "fiber_100g"}},
		schema.Proteins:      {{"nutriments", "proteins_100g"}},
	}
)

// mapProduct converts an upstream product document. Absent or unusable
// fields stay unset; mapping never fails.
func mapProduct(barcode string, doc map[string]any) schema.Product {
	product := schema.Product{
		Barcode:     barcode,
		ImageURL:    coalesceString(doc, imageURLKeys),
		Description: coalesceString(doc, descriptionKeys),
		Energy:      coalesceFloat(doc, energyKeys),
		Ingredients: mapIngredients(doc["ingredients"]),
	}
	if name := coalesceString(doc, nameKeys); name != nil {
		product.Name = *name
	}
	for _, field := range schema.MacronutrientFields {
		product.Macronutrients.Set(field, coalesceFloat(doc, macronutrientKeys[field]))
	}
	return product
}

// mapIngredients walks the nested ingredient list with an explicit stack so
// hostile nesting depth cannot exhaust the goroutine stack. Sibling order
// and depth are preserved. Entries that are not objects are skipped.
func mapIngredients(raw any) []*schema.IngredientNode {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil
	}

	type frame struct {
		items []any
		dst   *[]*schema.IngredientNode
	}

	var roots []*schema.IngredientNode
	stack := []frame{{items: items, dst: &roots}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, item := range f.items {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			node := &schema.IngredientNode{}
			if text, ok := entry["text"].(string); ok {
				node.Name = text
			}
			if pct, ok := coerceFloat(entry["percent"]); ok {
				node.Percentage = &pct
			}
			*f.dst = append(*f.dst, node)

			if children, ok := entry["ingredients"].([]any); ok && len(children) > 0 {
				stack = append(stack, frame{items: children, dst: &node.Ingredients})
			}
		}
	}
	return roots
}

func lookup(doc map[string]any, path []string) (any, bool) {
	var current any = doc
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

func coalesceString(doc map[string]any, candidates [][]string) *string {
	for _, path := range candidates {
		value, ok := lookup(doc, path)
		if !ok {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return &s
		}
	}
	return nil
}

func coalesceFloat(doc map[string]any, candidates [][]string) *float64 {
	for _, path := range candidates {
		value, ok := lookup(doc, path)
		if !ok {
			continue
		}
		if f, ok := coerceFloat(value); ok {
			return &f
		}
	}
	return nil
}

// coerceFloat accepts JSON numbers and numeric strings. Anything else, and
// values that are not finite, report false.
func coerceFloat(value any) (float64, bool) {
	var (
		parsed float64
		err    error
	)
	switch v := value.(type) {
	case float64:
		parsed = v
	case json.Number:
		parsed, err = strconv.ParseFloat(v.String(), 64)
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, false
		}
		parsed, err = strconv.ParseFloat(v, 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}
