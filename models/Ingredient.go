package models

import "time"

// Ingredient is one row of a product's ingredient forest. Rows reference
// their parent row of the same product; roots have a nil ParentID.
type Ingredient struct {
	ID             uint     `gorm:"primaryKey" json:"id"`
	ProductBarcode string   `gorm:"size:14;not null;index" json:"product_barcode"`
	ParentID       *uint    `gorm:"index" json:"parent_id,omitempty"`
	Name           string   `gorm:"not null" json:"name"`
	Percentage     *float64 `json:"percentage"`

	// --- Reference Link ---
	// Set when the name matches a canonical catalog entry.
	ReferenceID *uint          `json:"reference_id,omitempty"`
	Reference   *IngredientRef `gorm:"foreignKey:ReferenceID" json:"reference,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IngredientRef is a canonical ingredient name used to flag known ingredients.
type IngredientRef struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}
