package models

// Vitamin units offered for the per-100g vitamin amounts.
const (
	VitaminUnitMilligram = "mg"
	VitaminUnitMicrogram = "µg"
	DefaultVitaminUnit   = VitaminUnitMilligram
)

// Vitamin is a catalog entry for one vitamin.
type Vitamin struct {
	Name        string `gorm:"primaryKey;size:100" json:"name"`
	CommonName  string `gorm:"size:100" json:"common_name"`
	DefaultUnit string `gorm:"size:10;not null;default:mg" json:"default_unit"`
}

// ProductVitamin holds the per-100g amount of one vitamin for a product.
type ProductVitamin struct {
	ID             uint     `gorm:"primaryKey" json:"id"`
	ProductBarcode string   `gorm:"size:14;not null;uniqueIndex:idx_product_vitamin" json:"product_barcode"`
	VitaminName    string   `gorm:"size:100;not null;uniqueIndex:idx_product_vitamin" json:"vitamin"`
	Amount         *float64 `json:"amount"`
	Unit           string   `gorm:"size:10;not null;default:mg" json:"unit"`
}

// ValidVitaminUnit reports whether unit is one of the supported vitamin units.
func ValidVitaminUnit(unit string) bool {
	switch unit {
	case VitaminUnitMilligram, VitaminUnitMicrogram:
		return true
	default:
		return false
	}
}
