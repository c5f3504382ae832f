package openfoodfacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"nutrilab/internal/schema"
)

// FetchLocalProduct maps an OFF-style JSON file of the form
// {"product": {...}} without contacting upstream. The barcode is taken from
// product.code, or from the file name when the record has none.
func FetchLocalProduct(path string) (schema.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Product{}, fmt.Errorf("read product file %s: %w", path, err)
	}

	var doc struct {
		Product map[string]any `json:"product"`
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return schema.Product{}, fmt.Errorf("%w: %s: %v", ErrUpstreamMalformedResponse, path, err)
	}
	if doc.Product == nil {
		return schema.Product{}, fmt.Errorf("%w: %s has no product", ErrUpstreamInconsistentSuccess, path)
	}

	barcode, ok := productCode(doc.Product)
	if !ok {
		barcode = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return mapProduct(barcode, doc.Product), nil
}

// LocalFetcher serves products from <Dir>/<barcode>.json fixture files.
type LocalFetcher struct {
	Dir string
}

// FetchProduct implements Fetcher.
func (f LocalFetcher) FetchProduct(_ context.Context, barcode string) (schema.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" || strings.ContainsAny(barcode, `/\`) {
		return schema.Product{}, fmt.Errorf("%w: invalid barcode %q", ErrProductNotFound, barcode)
	}

	product, err := FetchLocalProduct(filepath.Join(f.Dir, barcode+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return schema.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, barcode)
	}
	if err != nil {
		return schema.Product{}, err
	}
	if product.Barcode != barcode {
		return schema.Product{}, &BarcodeMismatchError{Requested: barcode, Returned: product.Barcode}
	}
	return product, nil
}
