package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nutrilab/internal/config"
	applog "nutrilab/internal/log"
	"nutrilab/internal/schema"
	"nutrilab/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	gormschema "gorm.io/gorm/schema"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("database URL must not be empty")
	}

	gormCfg := &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Warn),
		NamingStrategy: gormschema.NamingStrategy{
			SingularTable: false,
		},
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	db, err := gorm.Open(dialector(cfg.URL), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	return db, nil
}

// dialector picks sqlite for sqlite:// and file: URLs and postgres otherwise.
func dialector(url string) gorm.Dialector {
	url = strings.TrimSpace(url)
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "file:"):
		return sqlite.Open(url)
	default:
		return postgres.Open(url)
	}
}

func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database handle is nil")
	}

	return db.AutoMigrate(
		&models.Product{},
		&models.Macronutrient{},
		&models.ProductMacronutrient{},
		&models.Vitamin{},
		&models.ProductVitamin{},
		&models.IngredientRef{},
		&models.Ingredient{},
	)
}

var vitaminCatalog = []models.Vitamin{
	{Name: "A", DefaultUnit: models.VitaminUnitMilligram},
	{Name: "B1", CommonName: "Thiamine", DefaultUnit: models.VitaminUnitMilligram},
	{Name: "B2", CommonName: "Riboflavin", DefaultUnit: models.VitaminUnitMilligram},
	{Name: "B3", CommonName: "Niacin", DefaultUnit: models.VitaminUnitMilligram},
	{Name: "B5", CommonName: "Pantothenic Acid", DefaultUnit: models.VitaminUnitMilligram},
	{Name: "B6", CommonName: "Pyridoxine", DefaultUnit: models.VitaminUnitMilligram},
	{Name: "B7", CommonName: "Biotin", DefaultUnit: models.VitaminUnitMicrogram},
	{Name: "B9", CommonName: "Folate", DefaultUnit: models.VitaminUnitMicrogram},
	{Name: "B12", CommonName: "Cobalamin", DefaultUnit: models.VitaminUnitMicrogram},
	{Name: "C", DefaultUnit: models.VitaminUnitMilligram},
	{Name: "D", DefaultUnit: models.VitaminUnitMicrogram},
	{Name: "E", DefaultUnit: models.VitaminUnitMilligram},
	{Name: "K", DefaultUnit: models.VitaminUnitMicrogram},
}

// SeedCatalog inserts the macronutrient and vitamin catalogs. Existing rows are left untouched.
func SeedCatalog(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database handle is nil")
	}

	macronutrients := make([]models.Macronutrient, 0, len(schema.MacronutrientFields))
	for idx, field := range schema.MacronutrientFields {
		macronutrients = append(macronutrients, models.Macronutrient{
			Name:       string(field),
			Label:      field.Label(),
			NameInForm: field.FormName(),
			OrderIndex: idx,
		})
	}

	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&macronutrients).Error; err != nil {
		return fmt.Errorf("seed macronutrients: %w", err)
	}

	vitamins := append([]models.Vitamin(nil), vitaminCatalog...)
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&vitamins).Error; err != nil {
		return fmt.Errorf("seed vitamins: %w", err)
	}

	applog.Debug(ctx, "nutrient catalog seeded", "macronutrients", len(macronutrients), "vitamins", len(vitamins))
	return nil
}

func Configure(cfg config.DatabaseConfig) (*gorm.DB, error) {
	database, err := Initialize(cfg)
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(database); err != nil {
		return nil, err
	}

	if err := SeedCatalog(context.Background(), database); err != nil {
		return nil, err
	}

	DB = database

	return database, nil
}

func MustConfigure(cfg config.DatabaseConfig) *gorm.DB {
	database, err := Configure(cfg)
	if err != nil {
		panic(err)
	}

	return database
}

func Get() *gorm.DB {
	return DB
}
