package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nutrilab/internal/ingredients"
	applog "nutrilab/internal/log"
	"nutrilab/internal/products"
	"nutrilab/internal/schema"
	"nutrilab/models"
)

const maxPayloadBytes = 1 << 20

type productListResponse struct {
	Products []models.Product `json:"products"`
}

// ListProducts returns every stored product without ingredients.
func ListProducts(w http.ResponseWriter, r *http.Request) {
	if !requireRepository(w, r) {
		return
	}

	rows, err := repository.List(r.Context())
	if err != nil {
		applog.Error(r.Context(), "failed to list products", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, productListResponse{Products: rows})
}

// GetProduct returns one product with its annotated ingredient tree.
func GetProduct(w http.ResponseWriter, r *http.Request) {
	if !requireRepository(w, r) {
		return
	}
	respondWithProduct(w, r, http.StatusOK, r.PathValue("barcode"))
}

// CreateProduct stores a product submitted as JSON.
func CreateProduct(w http.ResponseWriter, r *http.Request) {
	if !requireRepository(w, r) {
		return
	}

	payload, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	if err := validateProduct(payload); err != nil {
		applog.Debug(r.Context(), "rejecting product payload", "barcode", payload.Barcode, "error", err)
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := repository.Load(r.Context(), payload.Barcode); err == nil {
		writeJSONError(w, http.StatusConflict, "product already exists")
		return
	} else if !errors.Is(err, products.ErrNotFound) {
		applog.Error(r.Context(), "failed to check existing product", "barcode", payload.Barcode, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to save product")
		return
	}

	saveAndRespond(w, r, http.StatusCreated, payload)
}

// UpdateProduct replaces an existing product with the submitted JSON.
func UpdateProduct(w http.ResponseWriter, r *http.Request) {
	if !requireRepository(w, r) {
		return
	}

	barcode := r.PathValue("barcode")
	payload, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	if payload.Barcode == "" {
		payload.Barcode = barcode
	}
	if payload.Barcode != barcode {
		writeJSONError(w, http.StatusBadRequest, "barcode in body does not match path")
		return
	}
	if err := validateProduct(payload); err != nil {
		applog.Debug(r.Context(), "rejecting product payload", "barcode", barcode, "error", err)
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := repository.Load(r.Context(), barcode); errors.Is(err, products.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "product not found")
		return
	} else if err != nil {
		applog.Error(r.Context(), "failed to load product", "barcode", barcode, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to save product")
		return
	}

	saveAndRespond(w, r, http.StatusOK, payload)
}

// DeleteProduct removes a product and its ingredients.
func DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if !requireRepository(w, r) {
		return
	}

	barcode := r.PathValue("barcode")
	err := repository.Delete(r.Context(), barcode)
	if errors.Is(err, products.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		applog.Error(r.Context(), "failed to delete product", "barcode", barcode, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (schema.Product, bool) {
	var payload schema.Product
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid product payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid product payload")
		return schema.Product{}, false
	}
	payload.Barcode = strings.TrimSpace(payload.Barcode)
	payload.Name = strings.TrimSpace(payload.Name)
	return payload, true
}

// validateProduct checks a user-submitted product.
func validateProduct(p schema.Product) error {
	if err := products.ValidateEAN13(p.Barcode); err != nil {
		return err
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Energy != nil && *p.Energy < 0 {
		return errors.New("energy must not be negative")
	}
	for _, field := range schema.MacronutrientFields {
		if v := p.Macronutrients.Get(field); v != nil && (*v < 0 || *v > 100) {
			return fmt.Errorf("%s must be between 0 and 100", field)
		}
	}

	seen := make(map[string]bool, len(p.Vitamins))
	for _, v := range p.Vitamins {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return errors.New("vitamin name is required")
		}
		if seen[name] {
			return fmt.Errorf("vitamin %q listed more than once", name)
		}
		seen[name] = true
		if v.Unit != "" && !models.ValidVitaminUnit(v.Unit) {
			return fmt.Errorf("vitamin %q has unsupported unit %q", name, v.Unit)
		}
		if v.Amount != nil && *v.Amount < 0 {
			return fmt.Errorf("vitamin %q amount must not be negative", name)
		}
	}

	stack := append([]*schema.IngredientNode(nil), p.Ingredients...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}
		if strings.TrimSpace(node.Name) == "" {
			return errors.New("ingredient name is required")
		}
		if node.Percentage != nil && (*node.Percentage < 0 || *node.Percentage > 100) {
			return fmt.Errorf("ingredient %q percentage must be between 0 and 100", node.Name)
		}
		stack = append(stack, node.Ingredients...)
	}
	return nil
}

func saveAndRespond(w http.ResponseWriter, r *http.Request, status int, product schema.Product) {
	if _, err := repository.Save(r.Context(), product); err != nil {
		if errors.Is(err, ingredients.ErrCycle) {
			writeJSONError(w, http.StatusBadRequest, "ingredient tree contains a cycle")
			return
		}
		if errors.Is(err, products.ErrUnknownVitamin) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		applog.Error(r.Context(), "failed to save product", "barcode", product.Barcode, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to save product")
		return
	}
	respondWithProduct(w, r, status, product.Barcode)
}

// respondWithProduct loads the stored product and annotates its ingredients
// against the reference catalog, read once per request.
func respondWithProduct(w http.ResponseWriter, r *http.Request, status int, barcode string) {
	product, err := repository.Load(r.Context(), barcode)
	if errors.Is(err, products.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		applog.Error(r.Context(), "failed to load product", "barcode", barcode, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	product.Ingredients = ingredients.AnnotateAll(product.Ingredients, loadReferences(r))
	writeJSON(w, status, product)
}

func loadReferences(r *http.Request) ingredients.ReferenceSet {
	if database == nil {
		return ingredients.NewReferenceSet()
	}
	refs, err := ingredients.LoadReferenceSet(r.Context(), database)
	if err != nil {
		applog.Warn(r.Context(), "reference catalog unavailable", "error", err)
		return ingredients.NewReferenceSet()
	}
	return refs
}
