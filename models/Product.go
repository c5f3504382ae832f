package models

import "time"

// DefaultEnergyUnit is the unit energy values are stored in.
const DefaultEnergyUnit = "kJ"

// Product is a food product addressed by its barcode.
type Product struct {
	Barcode     string   `gorm:"primaryKey;size:14" json:"barcode"`
	Name        string   `gorm:"size:100;not null" json:"name"`
	ImageURL    string   `json:"image_url"`
	Description string   `gorm:"type:text" json:"description"`
	Energy      *float64 `json:"energy"`
	EnergyUnit  string   `gorm:"size:10;not null;default:kJ" json:"energy_unit"`

	Macronutrients []ProductMacronutrient `gorm:"foreignKey:ProductBarcode;references:Barcode" json:"macronutrients,omitempty"`
	Vitamins       []ProductVitamin       `gorm:"foreignKey:ProductBarcode;references:Barcode" json:"vitamins,omitempty"`
	Ingredients    []Ingredient           `gorm:"foreignKey:ProductBarcode;references:Barcode" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
