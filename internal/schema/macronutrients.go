package schema

import "fmt"

// MacronutrientField identifies one of the macronutrient columns.
type MacronutrientField string

const (
	Fat           MacronutrientField = "fat"
	SaturatedFat  MacronutrientField = "saturated_fat"
	Carbohydrates MacronutrientField = "carbohydrates"
	Sugars        MacronutrientField = "sugars"
	Fiber         MacronutrientField = "fiber"
	Proteins      MacronutrientField = "proteins"
)

// MacronutrientFields lists every macronutrient in display order.
var MacronutrientFields = []MacronutrientField{
	Fat,
	SaturatedFat,
	Carbohydrates,
	Sugars,
	Fiber,
	Proteins,
}

// Label returns the human-readable name of the field.
func (f MacronutrientField) Label() string {
	switch f {
	case Fat:
		return "Fat"
	case SaturatedFat:
		return "of which Saturates"
	case Carbohydrates:
		return "Carbohydrates"
	case Sugars:
		return "of which Sugars"
	case Fiber:
		return "Fiber"
	case Proteins:
		return "Proteins"
	default:
		return string(f)
	}
}

// FormName returns the form input prefix used for the field.
func (f MacronutrientField) FormName() string {
	return "macronutrients_" + string(f)
}

// ParseMacronutrientField resolves a field name.
func ParseMacronutrientField(name string) (MacronutrientField, error) {
	for _, field := range MacronutrientFields {
		if string(field) == name {
			return field, nil
		}
	}
	return "", fmt.Errorf("unknown macronutrient %q", name)
}

// Get returns the amount stored for field.
func (m Macronutrients) Get(field MacronutrientField) *float64 {
	switch field {
	case Fat:
		return m.Fat
	case SaturatedFat:
		return m.SaturatedFat
	case Carbohydrates:
		return m.Carbohydrates
	case Sugars:
		return m.Sugars
	case Fiber:
		return m.Fiber
	case Proteins:
		return m.Proteins
	default:
		return nil
	}
}

// Set stores value for field. Unknown fields are ignored.
func (m *Macronutrients) Set(field MacronutrientField, value *float64) {
	switch field {
	case Fat:
		m.Fat = value
	case SaturatedFat:
		m.SaturatedFat = value
	case Carbohydrates:
		m.Carbohydrates = value
	case Sugars:
		m.Sugars = value
	case Fiber:
		m.Fiber = value
	case Proteins:
		m.Proteins = value
	}
}
