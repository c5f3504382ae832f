// Package products persists products together with their macronutrient
// amounts and ingredient trees.
package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nutrilab/internal/ingredients"
	applog "nutrilab/internal/log"
	"nutrilab/internal/schema"
	"nutrilab/models"
)

// ErrNotFound reports an unknown barcode.
var ErrNotFound = errors.New("products: product not found")

// ErrUnknownVitamin reports a vitamin name missing from the catalog.
var ErrUnknownVitamin = errors.New("products: unknown vitamin")

const maxNameLength = 100

// Repository reads and writes products through gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a Repository using db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save creates or replaces the product in one transaction. Macronutrients
// left unset and vitamins absent from the payload are removed, and the
// ingredient forest replaces the stored one.
func (r *Repository) Save(ctx context.Context, product schema.Product) (models.Product, error) {
	barcode := strings.TrimSpace(product.Barcode)
	if barcode == "" {
		return models.Product{}, errors.New("products: barcode must not be empty")
	}

	row := models.Product{
		Barcode:     barcode,
		Name:        truncate(strings.TrimSpace(product.Name), maxNameLength),
		ImageURL:    deref(product.ImageURL),
		Description: deref(product.Description),
		Energy:      product.Energy,
		EnergyUnit:  models.DefaultEnergyUnit,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "barcode"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "image_url", "description", "energy", "energy_unit", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert product %s: %w", barcode, err)
		}

		if err := saveMacronutrients(tx, barcode, product.Macronutrients); err != nil {
			return err
		}

		if err := saveVitamins(tx, barcode, product.Vitamins); err != nil {
			return err
		}

		if err := ingredients.ReplaceTree(ctx, tx, barcode, product.Ingredients); err != nil {
			return fmt.Errorf("save ingredients for %s: %w", barcode, err)
		}

		return tx.Preload("Macronutrients").Preload("Vitamins").First(&row, "barcode = ?", barcode).Error
	})
	if err != nil {
		return models.Product{}, err
	}

	applog.Info(ctx, "product saved",
		"barcode", barcode,
		"ingredients", ingredients.Count(product.Ingredients),
		"macronutrients", len(row.Macronutrients),
		"vitamins", len(row.Vitamins),
	)
	return row, nil
}

func saveMacronutrients(tx *gorm.DB, barcode string, values schema.Macronutrients) error {
	var unset []string
	for _, field := range schema.MacronutrientFields {
		amount := values.Get(field)
		if amount == nil {
			unset = append(unset, string(field))
			continue
		}
		row := models.ProductMacronutrient{
			ProductBarcode:    barcode,
			MacronutrientName: string(field),
			Amount:            amount,
			Unit:              models.DefaultMacronutrientUnit,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_barcode"}, {Name: "macronutrient_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "unit"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert %s for %s: %w", field, barcode, err)
		}
	}

	if len(unset) == 0 {
		return nil
	}
	if err := tx.Where("product_barcode = ? AND macronutrient_name IN ?", barcode, unset).
		Delete(&models.ProductMacronutrient{}).Error; err != nil {
		return fmt.Errorf("clear macronutrients for %s: %w", barcode, err)
	}
	return nil
}

func saveVitamins(tx *gorm.DB, barcode string, values []schema.Vitamin) error {
	var catalog []models.Vitamin
	if err := tx.Find(&catalog).Error; err != nil {
		return fmt.Errorf("load vitamin catalog: %w", err)
	}
	defaults := make(map[string]string, len(catalog))
	for _, v := range catalog {
		defaults[v.Name] = v.DefaultUnit
	}

	keep := make([]string, 0, len(values))
	for _, v := range values {
		name := strings.TrimSpace(v.Name)
		defaultUnit, ok := defaults[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownVitamin, v.Name)
		}
		unit := strings.TrimSpace(v.Unit)
		if unit == "" {
			unit = defaultUnit
		}
		row := models.ProductVitamin{
			ProductBarcode: barcode,
			VitaminName:    name,
			Amount:         v.Amount,
			Unit:           unit,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_barcode"}, {Name: "vitamin_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "unit"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert vitamin %s for %s: %w", name, barcode, err)
		}
		keep = append(keep, name)
	}

	stale := tx.Where("product_barcode = ?", barcode)
	if len(keep) > 0 {
		stale = stale.Where("vitamin_name NOT IN ?", keep)
	}
	if err := stale.Delete(&models.ProductVitamin{}).Error; err != nil {
		return fmt.Errorf("clear vitamins for %s: %w", barcode, err)
	}
	return nil
}

// Load returns the product with its nutrient amounts and ingredient forest.
func (r *Repository) Load(ctx context.Context, barcode string) (schema.Product, error) {
	var row models.Product
	err := r.db.WithContext(ctx).
		Preload("Macronutrients").
		Preload("Vitamins", func(db *gorm.DB) *gorm.DB { return db.Order("vitamin_name asc") }).
		First(&row, "barcode = ?", barcode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return schema.Product{}, ErrNotFound
	}
	if err != nil {
		return schema.Product{}, fmt.Errorf("load product %s: %w", barcode, err)
	}

	tree, err := ingredients.LoadTree(ctx, r.db, barcode)
	if err != nil {
		return schema.Product{}, err
	}

	product := schema.Product{
		Barcode:     row.Barcode,
		Name:        row.Name,
		ImageURL:    optional(row.ImageURL),
		Description: optional(row.Description),
		Energy:      row.Energy,
		Ingredients: tree,
	}
	for _, m := range row.Macronutrients {
		field, err := schema.ParseMacronutrientField(m.MacronutrientName)
		if err != nil {
			applog.Warn(ctx, "ignoring unknown macronutrient", "barcode", barcode, "name", m.MacronutrientName)
			continue
		}
		product.Macronutrients.Set(field, m.Amount)
	}
	for _, v := range row.Vitamins {
		product.Vitamins = append(product.Vitamins, schema.Vitamin{Name: v.VitaminName, Amount: v.Amount, Unit: v.Unit})
	}
	return product, nil
}

// List returns every product ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	if err := r.db.WithContext(ctx).Order("name asc").Order("barcode asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return rows, nil
}

// Delete removes the product and everything attached to it.
func (r *Repository) Delete(ctx context.Context, barcode string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("barcode = ?", barcode).Delete(&models.Product{})
		if result.Error != nil {
			return fmt.Errorf("delete product %s: %w", barcode, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		for _, model := range []any{&models.Ingredient{}, &models.ProductMacronutrient{}, &models.ProductVitamin{}} {
			if err := tx.Where("product_barcode = ?", barcode).Delete(model).Error; err != nil {
				return fmt.Errorf("delete product %s: %w", barcode, err)
			}
		}

		applog.Info(ctx, "product deleted", "barcode", barcode)
		return nil
	})
}

// Macronutrients returns the macronutrient catalog in display order.
func (r *Repository) Macronutrients(ctx context.Context) ([]models.Macronutrient, error) {
	var rows []models.Macronutrient
	if err := r.db.WithContext(ctx).Order("order_index asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list macronutrients: %w", err)
	}
	return rows, nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
