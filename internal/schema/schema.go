// Package schema holds the validated product contracts shared by the
// ingredient codec, the Open Food Facts normalizer and the HTTP layer.
package schema

// Product is the strict internal representation of a product record.
type Product struct {
	Barcode        string            `json:"barcode"`
	Name           string            `json:"name"`
	ImageURL       *string           `json:"image_url"`
	Description    *string           `json:"description"`
	Energy         *float64          `json:"energy"`
	Macronutrients Macronutrients    `json:"macronutrients"`
	Vitamins       []Vitamin         `json:"vitamins,omitempty"`
	Ingredients    []*IngredientNode `json:"ingredients,omitempty"`
}

// Vitamin is the per-100g amount of one catalog vitamin. An empty Unit
// falls back to the catalog default when stored.
type Vitamin struct {
	Name   string   `json:"name"`
	Amount *float64 `json:"amount"`
	Unit   string   `json:"unit,omitempty"`
}

// IngredientNode is the nested, transient form of an ingredient.
type IngredientNode struct {
	Name         string            `json:"name"`
	Percentage   *float64          `json:"percentage"`
	Ingredients  []*IngredientNode `json:"ingredients,omitempty"`
	HasReference bool              `json:"has_reference"`
}

// Macronutrients carries the per-100g macronutrient amounts of a product.
// More information on: Regulation (EU) No 1169/2011.
type Macronutrients struct {
	Fat           *float64 `json:"fat"`
	SaturatedFat  *float64 `json:"saturated_fat"`
	Carbohydrates *float64 `json:"carbohydrates"`
	Sugars        *float64 `json:"sugars"`
	Fiber         *float64 `json:"fiber"`
	Proteins      *float64 `json:"proteins"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to v.
func String(v string) *string {
	return &v
}
