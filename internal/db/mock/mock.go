package mock

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	appdb "nutrilab/internal/db"
	applog "nutrilab/internal/log"
	"nutrilab/internal/products"
	"nutrilab/internal/schema"
	"nutrilab/models"
)

// DemoBarcode identifies the seeded demo product.
const DemoBarcode = "3229820794556"

// New returns an in-memory sqlite database seeded with representative pantry data.
func New(ctx context.Context) (*gorm.DB, error) {
	return NewNamed(ctx, "nutrilab-mock")
}

// NewNamed is New with a caller-chosen database name, so tests sharing a
// process do not see each other's rows.
func NewNamed(ctx context.Context, name string) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database", "name", name)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Shared-cache sqlite locks whole tables, so writers must not overlap.
	sqlDB.SetMaxOpenConns(1)

	if err := appdb.AutoMigrate(db); err != nil {
		return nil, err
	}
	if err := appdb.SeedCatalog(ctx, db); err != nil {
		return nil, err
	}

	if err := seed(ctx, db); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return db, nil
}

var referenceNames = []string{
	"Wheat flour",
	"Sugar",
	"Salt",
	"Cocoa mass",
	"Cocoa butter",
	"Palm oil",
	"Soy lecithin",
	"Whole milk powder",
	"Hazelnuts",
	"Oat flakes",
}

func seed(ctx context.Context, db *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	refs := make([]models.IngredientRef, 0, len(referenceNames))
	for _, name := range referenceNames {
		refs = append(refs, models.IngredientRef{Name: name})
	}
	if err := db.WithContext(ctx).Create(&refs).Error; err != nil {
		return err
	}

	repo := products.NewRepository(db)

	biscuits := schema.Product{
		Barcode:     DemoBarcode,
		Name:        "Chocolate Chip Biscuits",
		ImageURL:    schema.String("https://images.openfoodfacts.org/images/products/322/982/079/4556/front_en.3.200.jpg"),
		Description: schema.String("Snacks, Sweet snacks, Biscuits and cakes, Biscuits"),
		Energy:      schema.Float(2063),
		Macronutrients: schema.Macronutrients{
			Fat:           schema.Float(23),
			SaturatedFat:  schema.Float(11),
			Carbohydrates: schema.Float(63),
			Sugars:        schema.Float(33),
			Fiber:         schema.Float(3.1),
			Proteins:      schema.Float(6.2),
		},
		Ingredients: []*schema.IngredientNode{
			{Name: "Wheat flour", Percentage: schema.Float(48)},
			{Name: "Chocolate chips", Percentage: schema.Float(22), Ingredients: []*schema.IngredientNode{
				{Name: "Sugar"},
				{Name: "Cocoa mass"},
				{Name: "Cocoa butter"},
				{Name: "Emulsifier", Ingredients: []*schema.IngredientNode{
					{Name: "Soy lecithin"},
				}},
			}},
			{Name: "Sugar", Percentage: schema.Float(18)},
			{Name: "Palm oil"},
			{Name: "Salt", Percentage: schema.Float(0.6)},
		},
	}

	muesli := schema.Product{
		Barcode: "4006381333931",
		Name:    "Crunchy Oat Muesli",
		Energy:  schema.Float(1680),
		Macronutrients: schema.Macronutrients{
			Fat:      schema.Float(9.8),
			Sugars:   schema.Float(14),
			Proteins: schema.Float(9.1),
		},
		Ingredients: []*schema.IngredientNode{
			{Name: "Oat flakes", Percentage: schema.Float(61)},
			{Name: "Hazelnuts", Percentage: schema.Float(8)},
			{Name: "Honey"},
		},
	}

	for _, product := range []schema.Product{biscuits, muesli} {
		if _, err := repo.Save(ctx, product); err != nil {
			return err
		}
	}

	applog.Debug(ctx, "mock database seeded")
	return nil
}
