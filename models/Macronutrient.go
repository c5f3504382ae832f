package models

// DefaultMacronutrientUnit is the unit macronutrient amounts are stored in.
const DefaultMacronutrientUnit = "g"

// Macronutrient is a catalog entry describing one macronutrient field.
type Macronutrient struct {
	Name        string `gorm:"primaryKey;size:100" json:"name"`
	Label       string `gorm:"size:100" json:"label"`
	Description string `gorm:"type:text" json:"description"`
	NameInForm  string `gorm:"size:100" json:"name_in_form"`
	OrderIndex  int    `gorm:"not null;default:0" json:"order_index"`
}

// ProductMacronutrient holds the per-100g amount of one macronutrient for a product.
type ProductMacronutrient struct {
	ID                uint     `gorm:"primaryKey" json:"id"`
	ProductBarcode    string   `gorm:"size:14;not null;uniqueIndex:idx_product_macronutrient" json:"product_barcode"`
	MacronutrientName string   `gorm:"size:100;not null;uniqueIndex:idx_product_macronutrient" json:"macronutrient"`
	Amount            *float64 `json:"amount"`
	Unit              string   `gorm:"size:10;not null;default:g" json:"unit"`

	Macronutrient *Macronutrient `gorm:"foreignKey:MacronutrientName;references:Name" json:"-"`
}
