package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gorm.io/gorm"

	"nutrilab/internal/config"
	"nutrilab/internal/db"
	applog "nutrilab/internal/log"
	"nutrilab/internal/openfoodfacts"
	"nutrilab/internal/products"
)

var (
	loadConfigFunc   = config.Load
	openDatabaseFunc = db.Configure
	newFetcherFunc   = newFetcher
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("import_products", flag.ContinueOnError)
	flags.SetOutput(stderr)
	csvPath := flags.String("csv", "", "CSV file listing barcodes")
	fixtures := flags.String("fixtures", "", "directory of <barcode>.json product files used instead of Open Food Facts")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	barcodes := flags.Args()
	if *csvPath != "" {
		fromFile, err := readBarcodes(*csvPath)
		if err != nil {
			fmt.Fprintf(stderr, "import failed: read csv: %v\n", err)
			return 1
		}
		barcodes = append(barcodes, fromFile...)
	}
	if len(barcodes) == 0 {
		fmt.Fprintln(stderr, "import failed: no barcodes given")
		return 2
	}

	cfg, err := loadConfigFunc()
	if err != nil {
		fmt.Fprintf(stderr, "import failed: load config: %v\n", err)
		return 1
	}

	database, err := openDatabaseFunc(cfg.Database)
	if err != nil {
		fmt.Fprintf(stderr, "import failed: open database: %v\n", err)
		return 1
	}

	fetcher, err := newFetcherFunc(cfg, *fixtures)
	if err != nil {
		fmt.Fprintf(stderr, "import failed: %v\n", err)
		return 1
	}

	imported, failed := importAll(ctx, database, fetcher, barcodes, stderr)
	fmt.Fprintf(stdout, "Imported %d of %d products\n", imported, imported+failed)
	if failed > 0 {
		return 1
	}
	return 0
}

// importAll saves each barcode on its own. A failure is reported and the
// remaining barcodes are still processed.
func importAll(ctx context.Context, database *gorm.DB, fetcher openfoodfacts.Fetcher, barcodes []string, stderr io.Writer) (int, int) {
	repo := products.NewRepository(database)
	imported, failed := 0, 0
	for _, barcode := range barcodes {
		if err := importOne(ctx, repo, fetcher, barcode); err != nil {
			applog.Warn(ctx, "product import failed", "barcode", barcode, "error", err)
			fmt.Fprintf(stderr, "%s: %v\n", barcode, err)
			failed++
			continue
		}
		imported++
	}
	return imported, failed
}

func importOne(ctx context.Context, repo *products.Repository, fetcher openfoodfacts.Fetcher, barcode string) error {
	product, err := fetcher.FetchProduct(ctx, barcode)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if _, err := repo.Save(ctx, product); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func newFetcher(cfg config.Config, fixtures string) (openfoodfacts.Fetcher, error) {
	if strings.TrimSpace(fixtures) != "" {
		if info, err := os.Stat(fixtures); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("fixtures directory %q is not readable", fixtures)
		}
		return openfoodfacts.LocalFetcher{Dir: fixtures}, nil
	}
	return openfoodfacts.NewClient(openfoodfacts.Config{
		BaseURL:       cfg.OpenFoodFacts.BaseURL,
		APIVersion:    cfg.OpenFoodFacts.APIVersion,
		UserAgent:     cfg.OpenFoodFacts.UserAgent,
		Timeout:       cfg.OpenFoodFacts.Timeout,
		RatePerMinute: cfg.OpenFoodFacts.RatePerMinute,
		RateBurst:     cfg.OpenFoodFacts.RateBurst,
	})
}

// readBarcodes returns the barcode column of a CSV file. A header row naming
// a "barcode" column selects that column; otherwise the first column is used
// and every row is data.
func readBarcodes(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("csv is empty")
	}

	column := 0
	for idx, name := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(name), "barcode") {
			column = idx
			rows = rows[1:]
			break
		}
	}

	barcodes := make([]string, 0, len(rows))
	for _, row := range rows {
		if column >= len(row) {
			continue
		}
		if value := strings.TrimSpace(row[column]); value != "" {
			barcodes = append(barcodes, value)
		}
	}
	return barcodes, nil
}
